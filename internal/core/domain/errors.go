package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown entity type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Configuration Errors.

	// ErrMissingCredentials indicates the OAuth client id is not configured.
	ErrMissingCredentials = errors.New("credentials not configured")

	// ErrInvalidConfiguration indicates a configured value, such as the environment, is not recognised.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrSecretsInitTimeout indicates the host never signalled that secrets were provisioned.
	ErrSecretsInitTimeout = errors.New("secret store initialization timed out")

	// Authorization Errors.

	// ErrAuthorizationRequired indicates interactive authorization is needed.
	ErrAuthorizationRequired = errors.New("authorization required")

	// ErrAuthorizationDenied indicates the user or provider refused authorization.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrStateMismatch indicates the callback carried a different anti-forgery state.
	ErrStateMismatch = errors.New("authorization state mismatch")

	// ErrMissingCode indicates the callback carried no authorization code.
	ErrMissingCode = errors.New("no authorization code received")

	// ErrCallbackTimeout indicates the browser never redirected back in time.
	ErrCallbackTimeout = errors.New("timed out waiting for authorization callback")

	// Token Refresh Errors.

	// ErrRefreshTokenInvalid indicates the refresh token was rejected; re-authorization is required.
	ErrRefreshTokenInvalid = errors.New("refresh token invalid or expired")

	// ErrTokenRefreshTransient indicates refresh failed after retries for a recoverable reason.
	ErrTokenRefreshTransient = errors.New("token refresh failed")

	// Resilience Errors.

	// ErrRateLimitExceeded indicates no permit could be obtained in time.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrCircuitOpen indicates the remote service is considered unhealthy.
	ErrCircuitOpen = errors.New("circuit open")
)

// IsConfigurationError reports whether err is fatal misconfiguration that must not be retried.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrSecretsInitTimeout)
}

// IsAuthorizationError reports whether err can be resolved by re-running interactive authorization.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrAuthorizationRequired) ||
		errors.Is(err, ErrAuthorizationDenied) ||
		errors.Is(err, ErrStateMismatch) ||
		errors.Is(err, ErrMissingCode) ||
		errors.Is(err, ErrCallbackTimeout) ||
		errors.Is(err, ErrRefreshTokenInvalid)
}
