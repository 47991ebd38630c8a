package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// DefaultSecretsReadyTimeout bounds the wait for the host's secrets-ready signal.
const DefaultSecretsReadyTimeout = 35 * time.Second

// Secret store keys. Each field has a current name and a legacy name; the
// first non-empty value wins.
const (
	SecretClientID     = "ledgersync.client_id"
	SecretClientSecret = "ledgersync.client_secret"
	SecretTenantID     = "ledgersync.tenant_id"
	SecretRedirectURI  = "ledgersync.redirect_uri"
	SecretEnvironment  = "ledgersync.environment"
)

// Environment variable names consulted after the secret store.
const (
	EnvClientID     = "LEDGERSYNC_CLIENT_ID"
	EnvClientSecret = "LEDGERSYNC_CLIENT_SECRET"
	EnvTenantID     = "LEDGERSYNC_TENANT_ID"
	EnvRedirectURI  = "LEDGERSYNC_REDIRECT_URI"
	EnvEnvironment  = "LEDGERSYNC_ENVIRONMENT"
)

// credentialField describes where one Credentials field may come from.
type credentialField struct {
	secrets []string
	env     string
}

var (
	clientIDField     = credentialField{[]string{SecretClientID, "QuickBooks:ClientId"}, EnvClientID}
	clientSecretField = credentialField{[]string{SecretClientSecret, "QuickBooks:ClientSecret"}, EnvClientSecret}
	tenantIDField     = credentialField{[]string{SecretTenantID, "QuickBooks:RealmId"}, EnvTenantID}
	redirectURIField  = credentialField{[]string{SecretRedirectURI, "QuickBooks:RedirectUri"}, EnvRedirectURI}
	environmentField  = credentialField{[]string{SecretEnvironment, "QuickBooks:Environment"}, EnvEnvironment}
)

// CredentialResolverOptions configures a CredentialResolver.
type CredentialResolverOptions struct {
	// SecretsReady is closed by the host once secrets are provisioned.
	// Nil means the secret store is ready immediately.
	SecretsReady <-chan struct{}
	// ReadyTimeout bounds the wait on SecretsReady.
	ReadyTimeout time.Duration
}

// CredentialResolver loads the OAuth app registration once per process.
type CredentialResolver struct {
	secrets      driven.SecretStore
	env          []driven.EnvironmentLookup
	ready        <-chan struct{}
	readyTimeout time.Duration

	mu     sync.Mutex
	cached *domain.Credentials
}

// NewCredentialResolver creates a resolver reading secrets first, then each
// environment layer in order. secrets may be nil.
func NewCredentialResolver(
	secrets driven.SecretStore,
	env []driven.EnvironmentLookup,
	opts CredentialResolverOptions,
) *CredentialResolver {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultSecretsReadyTimeout
	}
	return &CredentialResolver{
		secrets:      secrets,
		env:          env,
		ready:        opts.SecretsReady,
		readyTimeout: opts.ReadyTimeout,
	}
}

// Resolve returns the credentials, loading them on first use.
// Failures are not cached; the next call tries again.
func (r *CredentialResolver) Resolve(ctx context.Context) (domain.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached, nil
	}

	if err := r.awaitSecrets(ctx); err != nil {
		return domain.Credentials{}, err
	}

	envName := r.lookup(ctx, environmentField)
	environment, err := domain.ParseEnvironment(envName)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("%w: resolve environment: %w", domain.ErrInvalidConfiguration, err)
	}

	creds := domain.Credentials{
		ClientID:     r.lookup(ctx, clientIDField),
		ClientSecret: r.lookup(ctx, clientSecretField),
		TenantID:     r.lookup(ctx, tenantIDField),
		Environment:  environment,
		RedirectURI:  r.lookup(ctx, redirectURIField),
	}
	if creds.RedirectURI == "" {
		creds.RedirectURI = domain.DefaultRedirectURI
	}
	if err := creds.Validate(); err != nil {
		return domain.Credentials{}, err
	}

	logger.Debug("Resolved credentials: %s", creds)
	r.cached = &creds
	return creds, nil
}

// RememberTenant stores a tenant id discovered during authorization.
// The write is opportunistic: callers should log, not fail, on error.
func (r *CredentialResolver) RememberTenant(ctx context.Context, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil
	}

	r.mu.Lock()
	if r.cached != nil {
		r.cached.TenantID = tenantID
	}
	r.mu.Unlock()

	if r.secrets == nil {
		return nil
	}
	if err := r.secrets.SetSecret(ctx, SecretTenantID, tenantID); err != nil {
		return fmt.Errorf("save tenant id: %w", err)
	}
	return nil
}

// awaitSecrets blocks until the host signals the secret store is ready.
func (r *CredentialResolver) awaitSecrets(ctx context.Context) error {
	if r.ready == nil {
		return nil
	}

	timer := time.NewTimer(r.readyTimeout)
	defer timer.Stop()

	select {
	case <-r.ready:
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %s", domain.ErrSecretsInitTimeout, r.readyTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lookup returns the first non-empty value for field across all sources.
func (r *CredentialResolver) lookup(ctx context.Context, field credentialField) string {
	if r.secrets != nil {
		for _, key := range field.secrets {
			value, ok, err := r.secrets.GetSecret(ctx, key)
			if err != nil {
				logger.Warn("Secret store lookup of %s failed: %v", key, err)
				continue
			}
			if ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}

	for _, layer := range r.env {
		if value, ok := layer.Lookup(field.env); ok && strings.TrimSpace(value) != "" {
			logger.Debug("%s read from %s environment", field.env, layer.Name())
			return strings.TrimSpace(value)
		}
	}
	return ""
}
