package driven

import "context"

// CallbackResult carries what the provider redirected back with.
type CallbackResult struct {
	// Code is the authorization code to exchange.
	Code string
	// TenantID is the company identifier, when the provider includes one.
	TenantID string
}

// CallbackListener opens a loopback listener for the OAuth redirect.
type CallbackListener interface {
	// Listen binds to the redirect URI's port, falling back to fallbackPort
	// when the configured port is unavailable. The session must be closed.
	Listen(ctx context.Context, redirectURI string, fallbackPort int, expectedState string) (CallbackSession, error)
}

// CallbackSession is one bound listener awaiting a single redirect.
type CallbackSession interface {
	// RedirectURI is the URI actually bound, which differs from the
	// configured one when the fallback port was used.
	RedirectURI() string

	// Wait blocks until the redirect arrives or ctx ends.
	Wait(ctx context.Context) (CallbackResult, error)

	// Close stops the listener. Safe to call more than once.
	Close() error
}

// BrowserLauncher opens a URL in the user's browser.
type BrowserLauncher interface {
	Open(url string) error
}
