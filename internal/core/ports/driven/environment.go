package driven

// EnvironmentLookup is one layer of environment variable resolution.
// Layers are consulted in order; the first layer holding a value wins.
type EnvironmentLookup interface {
	// Name identifies the layer in log output (e.g. "process", "dotenv").
	Name() string

	// Lookup returns the variable's value and whether it was set.
	Lookup(key string) (string, bool)
}
