// Package oauth provides the OAuth loopback callback listener and browser launcher.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure the listener and server implement the callback ports.
var (
	_ driven.CallbackListener = (*Listener)(nil)
	_ driven.CallbackSession  = (*CallbackServer)(nil)
)

// DefaultCallbackPath is used when the redirect URI has no path.
const DefaultCallbackPath = "/callback"

// Listener opens CallbackServers for the authorization flow.
type Listener struct{}

// NewListener creates a callback listener.
func NewListener() *Listener {
	return &Listener{}
}

// Listen binds to the redirect URI's port, or to fallbackPort if that fails.
func (l *Listener) Listen(
	_ context.Context,
	redirectURI string,
	fallbackPort int,
	expectedState string,
) (driven.CallbackSession, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("%w: redirect uri %q: %v", domain.ErrInvalidInput, redirectURI, err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("%w: redirect uri %q must use http on loopback", domain.ErrInvalidInput, redirectURI)
	}

	port := 80
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("%w: redirect uri port %q", domain.ErrInvalidInput, p)
		}
	}
	path := u.Path
	if path == "" {
		path = DefaultCallbackPath
	}

	server := NewCallbackServer(u.Hostname(), port, path, expectedState)
	err = server.Start()
	if err == nil {
		return server, nil
	}
	if fallbackPort <= 0 || fallbackPort == port {
		return nil, err
	}

	logger.Warn("Callback port %d unavailable (%v); using fallback port %d", port, err, fallbackPort)
	server = NewCallbackServer(u.Hostname(), fallbackPort, path, expectedState)
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("fallback port: %w", err)
	}
	return server, nil
}

// CallbackServer handles one OAuth redirect callback.
// It starts a local HTTP server to receive the authorization code.
type CallbackServer struct {
	mu            sync.Mutex
	host          string
	port          int
	path          string
	expectedState string
	resultChan    chan driven.CallbackResult
	errChan       chan error
	server        *http.Server
	listener      net.Listener
	closeOnce     sync.Once
	closeErr      error
}

// NewCallbackServer creates a new OAuth callback server.
// The expectedState is used to validate the callback matches the request.
func NewCallbackServer(host string, port int, path, expectedState string) *CallbackServer {
	if host == "" {
		host = "localhost"
	}
	if path == "" {
		path = DefaultCallbackPath
	}
	return &CallbackServer{
		host:          host,
		port:          port,
		path:          path,
		expectedState: expectedState,
		resultChan:    make(chan driven.CallbackResult, 1),
		errChan:       make(chan error, 1),
	}
}

// Start starts the callback server on the configured port.
// If port is 0, a random available port will be chosen.
func (s *CallbackServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	// Store the actual port (important when port was 0)
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.fail(err)
		}
	}()

	logger.Debug("Callback listener on %s", s.RedirectURI())
	return nil
}

// handleCallback processes the OAuth callback request. A page is always
// written back so the browser is never left blank.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Check for error from provider
	if errParam := query.Get("error"); errParam != "" {
		errDesc := query.Get("error_description")
		s.fail(fmt.Errorf("%w: %s %s", domain.ErrAuthorizationDenied, errParam, errDesc))
		_, _ = fmt.Fprint(w, resultHTML("Authorization failed", html.EscapeString(firstOf(errDesc, errParam))))
		return
	}

	// Validate state parameter
	if query.Get("state") != s.expectedState {
		s.fail(domain.ErrStateMismatch)
		_, _ = fmt.Fprint(w, resultHTML("Authorization failed", "Invalid state parameter."))
		return
	}

	// Extract authorization code
	code := query.Get("code")
	if code == "" {
		s.fail(domain.ErrMissingCode)
		_, _ = fmt.Fprint(w, resultHTML("Authorization failed", "No authorization code was received."))
		return
	}

	select {
	case s.resultChan <- driven.CallbackResult{Code: code, TenantID: query.Get("realmId")}:
	default:
	}

	_, _ = fmt.Fprint(w, resultHTML("Authorization successful!", "You can close this window and return to the application."))
}

// fail reports an error to Wait without blocking on repeat callbacks.
func (s *CallbackServer) fail(err error) {
	select {
	case s.errChan <- err:
	default:
	}
}

// Wait blocks until the callback arrives or ctx ends.
func (s *CallbackServer) Wait(ctx context.Context) (driven.CallbackResult, error) {
	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errChan:
		return driven.CallbackResult{}, err
	case <-ctx.Done():
		return driven.CallbackResult{}, ctx.Err()
	}
}

// Close shuts down the callback server. Safe to call more than once.
func (s *CallbackServer) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.closeErr = s.server.Shutdown(ctx)
		}
	})
	return s.closeErr
}

// Port returns the port the server is listening on.
func (s *CallbackServer) Port() int {
	return s.port
}

// RedirectURI returns the redirect URI for this callback server.
func (s *CallbackServer) RedirectURI() string {
	return fmt.Sprintf("http://%s:%d%s", s.host, s.port, s.path)
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

//nolint:misspell // CSS properties use American spelling
func resultHTML(title, message string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>ledgersync - Authorization</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
            margin: 0;
            background: #FAFAFA;
        }
        .container {
            text-align: center;
            background: white;
            padding: 48px 64px;
            border-radius: 16px;
            border: 1px solid #C7C8CC;
            box-shadow: 0 4px 24px rgba(0,0,0,0.08);
        }
        h1 {
            color: #333F50;
            margin: 0 0 8px 0;
            font-size: 24px;
            font-weight: 600;
        }
        p {
            color: #7B8088;
            margin: 0;
            font-size: 16px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>`, title, message)
}
