// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - TokenSettings: Token persistence owned by the host application
//   - CallbackListener: Loopback listener for the OAuth redirect
//   - BrowserLauncher: Opens the authorization URL for the user
//   - AccountingClient: Remote accounting service queries
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SecretStore: Without it, credentials come from the environment only.
//   - EnvironmentLookup: Zero sources means only the secret store is consulted.
//   - RecordStore: Without it, synced records are counted but not persisted.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
