package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driving"
	"github.com/custodia-labs/ledgersync/internal/logger"
	"github.com/custodia-labs/ledgersync/internal/metrics"
)

// Ensure TokenManager implements the interface.
var _ driving.TokenLifecycle = (*TokenManager)(nil)

const (
	// DefaultCallbackTimeout bounds the wait for the browser redirect.
	DefaultCallbackTimeout = 5 * time.Minute

	// DefaultFallbackPort is bound when the redirect URI's port is taken.
	DefaultFallbackPort = 8766

	// DefaultRefreshRetries is the number of retries after a transient refresh failure.
	DefaultRefreshRetries = 3

	// DefaultRefreshBaseDelay is the first retry delay; it doubles on each retry.
	DefaultRefreshBaseDelay = 2 * time.Second

	// defaultAccessTokenLifetime applies when the token endpoint omits expires_in.
	defaultAccessTokenLifetime = time.Hour
)

// CredentialProvider supplies the OAuth app registration.
type CredentialProvider interface {
	Resolve(ctx context.Context) (domain.Credentials, error)
	RememberTenant(ctx context.Context, tenantID string) error
}

// TokenManagerOptions configures a TokenManager.
type TokenManagerOptions struct {
	// Scopes requested during authorization.
	Scopes []string
	// SafetyMargin is how long before expiry a token is refreshed.
	SafetyMargin time.Duration
	// CallbackTimeout bounds the interactive flow.
	CallbackTimeout time.Duration
	// FallbackPort is used when the redirect URI's port is unavailable.
	FallbackPort int
	// RefreshRetries is the number of retries after a transient refresh failure.
	RefreshRetries int
	// RefreshBaseDelay is the first retry delay.
	RefreshBaseDelay time.Duration
	// SkipBrowser prints the authorization URL instead of launching a browser.
	SkipBrowser bool
	// URLWriter receives the authorization URL when it is printed. Defaults to stderr.
	URLWriter io.Writer
	// HTTPClient is used for token endpoint calls. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// tokenCall is an in-flight token operation shared by concurrent callers.
type tokenCall struct {
	done chan struct{}
	err  error
}

// TokenManager owns the token state: it authorizes interactively, refreshes
// silently and is the only writer of the state.
type TokenManager struct {
	creds    CredentialProvider
	settings driven.TokenSettings
	listener driven.CallbackListener
	browser  driven.BrowserLauncher
	endpoint oauth2.Endpoint
	opts     TokenManagerOptions
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    domain.TokenState
	phase    domain.AuthPhase
	loaded   bool
	inflight *tokenCall
}

// NewTokenManager creates a token manager. browser may be nil, in which case
// the authorization URL is always printed.
func NewTokenManager(
	creds CredentialProvider,
	settings driven.TokenSettings,
	listener driven.CallbackListener,
	browser driven.BrowserLauncher,
	endpoint oauth2.Endpoint,
	opts TokenManagerOptions,
) *TokenManager {
	if opts.SafetyMargin <= 0 {
		opts.SafetyMargin = domain.DefaultSafetyMargin
	}
	if opts.CallbackTimeout <= 0 {
		opts.CallbackTimeout = DefaultCallbackTimeout
	}
	if opts.FallbackPort <= 0 {
		opts.FallbackPort = DefaultFallbackPort
	}
	if opts.RefreshRetries < 0 {
		opts.RefreshRetries = 0
	}
	if opts.RefreshBaseDelay <= 0 {
		opts.RefreshBaseDelay = DefaultRefreshBaseDelay
	}
	if opts.URLWriter == nil {
		opts.URLWriter = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	// The token endpoint expects client credentials as HTTP Basic auth.
	if endpoint.AuthStyle == oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = oauth2.AuthStyleInHeader
	}

	return &TokenManager{
		creds:    creds,
		settings: settings,
		listener: listener,
		browser:  browser,
		endpoint: endpoint,
		opts:     opts,
		now:      opts.Now,
		sleep:    sleepContext,
		phase:    domain.PhaseNoToken,
	}
}

// EnsureValid returns immediately when the access token has at least the
// safety margin left. Otherwise it refreshes, or authorizes interactively
// when there is no refresh token.
func (m *TokenManager) EnsureValid(ctx context.Context) error {
	if err := m.load(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	valid := m.state.ValidFor(m.now(), m.opts.SafetyMargin)
	m.mu.Unlock()
	if valid {
		return nil
	}

	return m.run(ctx, m.ensure)
}

// AcquireInteractive runs the browser authorization flow regardless of the
// current state. Returns true once tokens have been obtained.
func (m *TokenManager) AcquireInteractive(ctx context.Context) (bool, error) {
	if err := m.load(ctx); err != nil {
		return false, err
	}
	if err := m.run(ctx, m.authorize); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh exchanges the refresh token for a new access token.
func (m *TokenManager) Refresh(ctx context.Context) error {
	if err := m.load(ctx); err != nil {
		return err
	}
	return m.run(ctx, m.refresh)
}

// Disconnect forgets both tokens and their expiry. The tenant id is kept.
func (m *TokenManager) Disconnect(ctx context.Context) error {
	if err := m.load(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = m.state.Cleared()
	m.phase = domain.PhaseNoToken
	state := m.state
	m.mu.Unlock()

	if err := m.settings.SaveToken(ctx, state); err != nil {
		return fmt.Errorf("save token state: %w", err)
	}
	logger.Info("Disconnected; tokens cleared")
	return nil
}

// Status reports the token state without exposing token values.
func (m *TokenManager) Status(ctx context.Context) (domain.TokenStatus, error) {
	if err := m.load(ctx); err != nil {
		return domain.TokenStatus{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.TokenStatus{
		Phase:              m.phase,
		HasAccessToken:     m.state.HasAccessToken(),
		HasRefreshToken:    m.state.HasRefreshToken(),
		AccessTokenExpiry:  m.state.AccessTokenExpiry,
		RefreshTokenExpiry: m.state.RefreshTokenExpiry,
		TenantID:           m.state.TenantID,
	}, nil
}

// TenantID returns the tenant the current tokens belong to.
func (m *TokenManager) TenantID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.TenantID
}

// load reads the persisted token state on first use.
func (m *TokenManager) load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return nil
	}

	state, err := m.settings.LoadToken(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load token state: %w", err)
	}
	m.state = state
	m.phase = phaseOf(state)
	m.loaded = true
	return nil
}

// run executes fn unless another token operation is in flight, in which case
// it waits for that operation and returns its result.
func (m *TokenManager) run(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	if call := m.inflight; call != nil {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	call := &tokenCall{done: make(chan struct{})}
	m.inflight = call
	m.mu.Unlock()

	call.err = fn(ctx)

	m.mu.Lock()
	m.inflight = nil
	m.mu.Unlock()
	close(call.done)

	return call.err
}

// ensure re-checks validity under single-flight and picks refresh or authorize.
func (m *TokenManager) ensure(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state.ValidFor(m.now(), m.opts.SafetyMargin) {
		return nil
	}
	if !state.HasRefreshToken() {
		logger.Info("No refresh token; starting interactive authorization")
		return m.authorize(ctx)
	}
	return m.refresh(ctx)
}

// authorize runs the interactive authorization code flow.
func (m *TokenManager) authorize(ctx context.Context) error {
	creds, err := m.creds.Resolve(ctx)
	if err != nil {
		return err
	}

	state, err := generateState()
	if err != nil {
		return fmt.Errorf("generate state: %w", err)
	}

	m.setPhase(domain.PhaseAuthorizing)
	defer m.settlePhase()

	session, err := m.listener.Listen(ctx, creds.RedirectURI, m.opts.FallbackPort, state)
	if err != nil {
		return fmt.Errorf("start callback listener: %w", err)
	}
	defer session.Close()

	cfg := m.oauthConfig(creds, session.RedirectURI())
	m.presentURL(cfg.AuthCodeURL(state))

	waitCtx, cancel := context.WithTimeout(ctx, m.opts.CallbackTimeout)
	defer cancel()

	result, err := session.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", domain.ErrCallbackTimeout, m.opts.CallbackTimeout)
		}
		return err
	}

	exchangedAt := m.now()
	tok, err := cfg.Exchange(m.httpContext(ctx), result.Code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	tenant := result.TenantID
	if tenant == "" {
		tenant = creds.TenantID
	}
	if tenant == "" {
		tenant = m.TenantID()
	}
	if result.TenantID != "" && result.TenantID != creds.TenantID {
		if err := m.creds.RememberTenant(ctx, result.TenantID); err != nil {
			logger.Warn("Could not persist tenant id: %v", err)
		}
	}

	next, err := m.stateFromToken(tok, exchangedAt, "", tenant)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	m.commit(ctx, next)
	logger.Info("Authorized tenant %s; access token valid until %s",
		tenant, next.AccessTokenExpiry.Format(time.RFC3339))
	return nil
}

// refresh exchanges the refresh token, retrying transient failures with
// exponential backoff. A 4xx from the token endpoint clears the state.
func (m *TokenManager) refresh(ctx context.Context) error {
	creds, err := m.creds.Resolve(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	current := m.state
	m.mu.Unlock()
	if !current.HasRefreshToken() {
		return fmt.Errorf("%w: no refresh token", domain.ErrAuthorizationRequired)
	}

	m.setPhase(domain.PhaseRefreshing)
	defer m.settlePhase()

	cfg := m.oauthConfig(creds, creds.RedirectURI)
	httpCtx := m.httpContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= m.opts.RefreshRetries; attempt++ {
		if attempt > 0 {
			delay := m.opts.RefreshBaseDelay << (attempt - 1)
			logger.Warn("Token refresh failed (attempt %d/%d): %v; retrying in %s",
				attempt, m.opts.RefreshRetries+1, lastErr, delay)
			if err := m.sleep(ctx, delay); err != nil {
				return err
			}
		}

		refreshedAt := m.now()
		tok, err := cfg.TokenSource(httpCtx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
		if err == nil {
			next, perr := m.stateFromToken(tok, refreshedAt, current.RefreshToken, current.TenantID)
			if perr == nil {
				if next.RefreshTokenExpiry.IsZero() {
					next.RefreshTokenExpiry = current.RefreshTokenExpiry
				}
				m.commit(ctx, next)
				metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
				logger.Debug("Access token refreshed; valid until %s", next.AccessTokenExpiry.Format(time.RFC3339))
				return nil
			}
			err = perr
		}

		if isPermanentRefreshError(err) {
			m.clearAfterRejection(ctx)
			metrics.TokenRefreshTotal.WithLabelValues("permanent").Inc()
			return fmt.Errorf("%w: %w", domain.ErrRefreshTokenInvalid, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}

	metrics.TokenRefreshTotal.WithLabelValues("transient").Inc()
	return fmt.Errorf("%w after %d attempts: %w", domain.ErrTokenRefreshTransient, m.opts.RefreshRetries+1, lastErr)
}

// clearAfterRejection drops the rejected tokens so the next EnsureValid
// goes interactive instead of refreshing again.
func (m *TokenManager) clearAfterRejection(ctx context.Context) {
	m.mu.Lock()
	m.state = m.state.Cleared()
	m.phase = domain.PhaseRefreshFailed
	state := m.state
	m.mu.Unlock()

	logger.Warn("Refresh token rejected; re-authorization required")
	m.persist(ctx, state)
}

// stateFromToken builds the next state from a token endpoint response.
// Expiry is computed from issuedAt, the time the request was sent.
func (m *TokenManager) stateFromToken(tok *oauth2.Token, issuedAt time.Time, fallbackRefresh, tenant string) (domain.TokenState, error) {
	if tok == nil || tok.AccessToken == "" {
		return domain.TokenState{}, errors.New("token response missing access_token")
	}

	next := domain.TokenState{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TenantID:     tenant,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = fallbackRefresh
	}

	switch {
	case tok.ExpiresIn > 0:
		next.AccessTokenExpiry = issuedAt.Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
	case !tok.Expiry.IsZero():
		next.AccessTokenExpiry = tok.Expiry.UTC()
	default:
		next.AccessTokenExpiry = issuedAt.Add(defaultAccessTokenLifetime).UTC()
	}

	if secs := extraSeconds(tok.Extra("x_refresh_token_expires_in")); secs > 0 {
		next.RefreshTokenExpiry = issuedAt.Add(time.Duration(secs) * time.Second).UTC()
	}
	return next, nil
}

// commit replaces the state in one step and asks the settings port to persist it.
func (m *TokenManager) commit(ctx context.Context, next domain.TokenState) {
	m.mu.Lock()
	m.state = next
	m.phase = domain.PhaseAuthorized
	m.mu.Unlock()

	m.persist(ctx, next)
}

// persist saves state. Failure is logged; the in-memory state stays authoritative.
func (m *TokenManager) persist(ctx context.Context, state domain.TokenState) {
	if err := m.settings.SaveToken(context.WithoutCancel(ctx), state); err != nil {
		logger.Warn("Could not persist token state: %v", err)
	}
}

func (m *TokenManager) setPhase(phase domain.AuthPhase) {
	m.mu.Lock()
	m.phase = phase
	m.mu.Unlock()
}

// settlePhase leaves a transitional phase once an operation ends.
func (m *TokenManager) settlePhase() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == domain.PhaseAuthorizing || m.phase == domain.PhaseRefreshing {
		m.phase = phaseOf(m.state)
	}
}

func (m *TokenManager) oauthConfig(creds domain.Credentials, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     m.endpoint,
		RedirectURL:  redirectURI,
		Scopes:       m.opts.Scopes,
	}
}

func (m *TokenManager) httpContext(ctx context.Context) context.Context {
	if m.opts.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.opts.HTTPClient)
}

// presentURL opens the browser, or prints the URL when the browser is
// skipped or fails to launch.
func (m *TokenManager) presentURL(authURL string) {
	if !m.opts.SkipBrowser && m.browser != nil {
		err := m.browser.Open(authURL)
		if err == nil {
			fmt.Fprintln(m.opts.URLWriter, "Opening browser for authorization...")
			return
		}
		logger.Warn("Could not open browser: %v", err)
	}
	fmt.Fprintf(m.opts.URLWriter, "Open this URL to authorize:\n\n  %s\n\n", authURL)
}

func phaseOf(state domain.TokenState) domain.AuthPhase {
	if state.HasAccessToken() || state.HasRefreshToken() {
		return domain.PhaseAuthorized
	}
	return domain.PhaseNoToken
}

// isPermanentRefreshError reports whether the token endpoint rejected the
// request with a 4xx status.
func isPermanentRefreshError(err error) bool {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) || rerr.Response == nil {
		return false
	}
	code := rerr.Response.StatusCode
	return code >= http.StatusBadRequest && code < http.StatusInternalServerError
}

// extraSeconds converts a numeric token response field to seconds.
func extraSeconds(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		secs, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return secs
	default:
		return 0
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
