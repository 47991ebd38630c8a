package services

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenSourceAdapter adapts the TokenManager to oauth2.TokenSource so API
// clients can authenticate through oauth2.Transport.
type TokenSourceAdapter struct {
	manager *TokenManager
	ctx     context.Context
}

// TokenSource returns an oauth2.TokenSource backed by the manager.
// Every Token call goes through EnsureValid, which is free while the
// current token has more than the safety margin left.
func (m *TokenManager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &TokenSourceAdapter{manager: m, ctx: ctx}
}

// Token implements oauth2.TokenSource interface.
func (t *TokenSourceAdapter) Token() (*oauth2.Token, error) {
	if err := t.manager.EnsureValid(t.ctx); err != nil {
		return nil, err
	}

	t.manager.mu.Lock()
	defer t.manager.mu.Unlock()
	return &oauth2.Token{
		AccessToken: t.manager.state.AccessToken,
		TokenType:   "Bearer",
		Expiry:      t.manager.state.AccessTokenExpiry.Add(-t.manager.opts.SafetyMargin),
	}, nil
}
