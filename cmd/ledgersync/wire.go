package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/ledgersync/internal/adapters/driven/config"
	"github.com/custodia-labs/ledgersync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/ledgersync/internal/adapters/driven/env"
	"github.com/custodia-labs/ledgersync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ledgersync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ledgersync/internal/adapters/driving/cli"
	"github.com/custodia-labs/ledgersync/internal/adapters/driving/oauth"
	"github.com/custodia-labs/ledgersync/internal/connectors/quickbooks"
	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/services"
	"github.com/custodia-labs/ledgersync/internal/logger"
	"github.com/custodia-labs/ledgersync/internal/metrics"
	"github.com/custodia-labs/ledgersync/internal/resilience"
)

// build wires adapters into services for one CLI invocation.
func build(ctx context.Context, cfg *config.Config, opts cli.Options) (*cli.Services, error) {
	secrets, err := file.NewSecretStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	settings, err := file.NewTokenSettings(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	// Process environment wins over the working directory's .env, which wins
	// over the user-scoped .env in the data directory.
	lookups := []driven.EnvironmentLookup{env.NewProcess()}
	if cfg.EnvFile != "" {
		lookups = append(lookups, env.NewDotEnv(cfg.EnvFile))
	}
	lookups = append(lookups, env.NewDotEnv(filepath.Join(cfg.DataDir, ".env")))

	resolver := services.NewCredentialResolver(secrets, lookups, services.CredentialResolverOptions{
		ReadyTimeout: cfg.SecretsReadyTimeout,
	})

	tokenOpts := cfg.Token()
	tokenOpts.Scopes = quickbooks.Scopes()
	tokenOpts.SkipBrowser = opts.SkipBrowser
	tokens := services.NewTokenManager(
		resolver,
		settings,
		oauth.NewListener(),
		oauth.SystemBrowser{},
		quickbooks.Endpoint(),
		tokenOpts,
	)

	// Missing credentials are reported by the command that needs them;
	// "auth configure" must still work without them.
	environment := domain.EnvironmentSandbox
	if creds, err := resolver.Resolve(ctx); err == nil {
		environment = creds.Environment
	} else {
		logger.Debug("Credentials unavailable, assuming %s: %v", environment, err)
	}

	var closers []func() error
	var store driven.RecordStore
	if opts.DryRun {
		logger.Info("Dry run: records are kept in memory")
		store = memory.NewRecordStore()
	} else {
		db, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open record store: %w", err)
		}
		store = db
		closers = append(closers, db.Close)
	}

	httpClient := oauth2.NewClient(ctx, tokens.TokenSource(ctx))
	client := quickbooks.NewClient(httpClient, quickbooks.BaseURL(environment), tokens.TenantID)

	breakers := resilience.NewRegistry(cfg.CircuitBreaker())
	orchestrator := services.NewSyncOrchestrator(
		tokens,
		client,
		resilience.NewRateLimiter(cfg.RateLimit()),
		breakers.For(""),
		store,
		cfg.Sync(),
	)

	if cfg.MetricsTextfile != "" {
		path := cfg.MetricsTextfile
		closers = append(closers, func() error {
			if err := metrics.WriteTextfile(path); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			return nil
		})
	}

	return &cli.Services{
		Tokens:  tokens,
		Sync:    orchestrator,
		History: store,
		Secrets: secrets,
		Close: func() error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c())
			}
			return errors.Join(errs...)
		},
	}, nil
}
