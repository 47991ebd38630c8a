// Package env provides environment variable lookup layers for credential resolution.
package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
	"github.com/custodia-labs/ledgersync/internal/logger"
)

// Ensure both layers implement the interface.
var (
	_ driven.EnvironmentLookup = (*Process)(nil)
	_ driven.EnvironmentLookup = (*DotEnv)(nil)
)

// Process looks variables up in the process environment.
type Process struct {
	lookup func(string) (string, bool)
}

// NewProcess creates a process environment layer.
func NewProcess() *Process {
	return &Process{lookup: os.LookupEnv}
}

// Name identifies the layer.
func (p *Process) Name() string { return "process" }

// Lookup returns the variable's value. Empty values count as unset.
func (p *Process) Lookup(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// DotEnv looks variables up in a .env file, the user-scoped layer.
// The file is read once, on first lookup. A missing file behaves as empty.
type DotEnv struct {
	path string

	once sync.Once
	vars map[string]string
	err  error
}

// NewDotEnv creates a layer backed by the .env file at path.
func NewDotEnv(path string) *DotEnv {
	return &DotEnv{path: path}
}

// Name identifies the layer.
func (d *DotEnv) Name() string { return "dotenv" }

// Lookup returns the variable's value. Empty values count as unset.
func (d *DotEnv) Lookup(key string) (string, bool) {
	d.once.Do(d.load)
	v, ok := d.vars[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Err returns the error from reading the file, if any. A missing file is not an error.
func (d *DotEnv) Err() error {
	d.once.Do(d.load)
	return d.err
}

func (d *DotEnv) load() {
	if d.path == "" {
		return
	}
	vars, err := godotenv.Read(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No dotenv file at %s", d.path)
			return
		}
		d.err = fmt.Errorf("read %s: %w", d.path, err)
		logger.Warn("Ignoring dotenv file: %v", d.err)
		return
	}
	d.vars = vars
}
