// Package domain defines the core business entities for ledgersync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Credentials: OAuth client registration for the accounting service
//   - TokenState: Access/refresh tokens and their expiry
//   - EntityType: The record collections that can be synchronised
//   - Record: An opaque remote record with a few extracted fields
//   - SyncResult: The aggregated outcome of one sync invocation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
