package quickbooks

import (
	"golang.org/x/oauth2"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

const (
	// AuthURL is the authorization endpoint.
	AuthURL = "https://appcenter.intuit.com/connect/oauth2"

	// TokenURL is the token endpoint for code exchange and refresh.
	TokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	// ScopeAccounting grants read and write access to accounting data.
	ScopeAccounting = "com.intuit.quickbooks.accounting"

	// SandboxBaseURL is the API host for development companies.
	SandboxBaseURL = "https://sandbox-quickbooks.api.intuit.com"

	// ProductionBaseURL is the API host for live companies.
	ProductionBaseURL = "https://quickbooks.api.intuit.com"

	// MinorVersion pins the API schema revision.
	MinorVersion = "75"
)

// Endpoint returns the OAuth2 endpoints. Client credentials are sent as
// HTTP Basic auth.
func Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   AuthURL,
		TokenURL:  TokenURL,
		AuthStyle: oauth2.AuthStyleInHeader,
	}
}

// Scopes returns the scopes requested during authorization.
func Scopes() []string {
	return []string{ScopeAccounting}
}

// BaseURL returns the API host for env.
func BaseURL(env domain.Environment) string {
	if env == domain.EnvironmentProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}
