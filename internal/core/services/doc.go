// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// CredentialResolver finds the OAuth client registration, TokenManager owns
// the access/refresh token lifecycle, and SyncOrchestrator pulls every
// entity type through the rate limiter and circuit breaker.
package services
