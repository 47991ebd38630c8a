package domain

import (
	"fmt"
	"strings"
)

// Environment selects which deployment of the accounting service is used.
type Environment string

const (
	// EnvironmentSandbox targets the development sandbox.
	EnvironmentSandbox Environment = "sandbox"
	// EnvironmentProduction targets live company data.
	EnvironmentProduction Environment = "production"
)

// DefaultRedirectURI is the loopback callback used when none is configured.
const DefaultRedirectURI = "http://localhost:8765/callback"

// ParseEnvironment parses an environment name. Empty input yields sandbox.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(EnvironmentSandbox), "development":
		return EnvironmentSandbox, nil
	case string(EnvironmentProduction), "prod":
		return EnvironmentProduction, nil
	default:
		return "", fmt.Errorf("%w: unknown environment %q", ErrInvalidInput, s)
	}
}

// Credentials stores the OAuth app registration for the accounting service.
// Loaded once per process by the credential resolver and never mutated afterwards.
type Credentials struct {
	// ClientID is the OAuth client identifier. Required.
	ClientID string
	// ClientSecret may be empty for public clients.
	ClientSecret string
	// TenantID is the company (realm) identifier, if already known.
	TenantID string
	// Environment selects sandbox or production endpoints.
	Environment Environment
	// RedirectURI is the loopback URI registered with the provider.
	RedirectURI string
}

// Validate returns ErrMissingCredentials when the client id is absent.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: client id is not configured", ErrMissingCredentials)
	}
	return nil
}

// String redacts the client secret.
func (c Credentials) String() string {
	secret := ""
	if c.ClientSecret != "" {
		secret = "****"
	}
	return fmt.Sprintf("Credentials{ClientID:%s ClientSecret:%s TenantID:%s Environment:%s RedirectURI:%s}",
		c.ClientID, secret, c.TenantID, c.Environment, c.RedirectURI)
}
