// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - Store: TOML key/value file with dot-notation keys
//   - TokenSettings: token state persisted to settings.toml
//   - SecretStore: client credentials persisted to secrets.toml
package file
