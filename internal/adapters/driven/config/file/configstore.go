package file

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultDirName is the directory under the user's home used when none is given.
const DefaultDirName = ".ledgersync"

// Store is a TOML file holding dot-notation keys.
// Nested tables are flattened on load and rebuilt on save.
type Store struct {
	mu       sync.RWMutex
	filePath string
	data     map[string]any
}

// NewStore opens name within dir, creating the directory if needed.
// If dir is empty, defaults to ~/.ledgersync.
func NewStore(dir, name string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, DefaultDirName)
	}

	// Ensure directory exists
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	s := &Store{
		filePath: filepath.Join(dir, name),
		data:     make(map[string]any),
	}

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Get retrieves a value by key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok
}

// GetString retrieves a string value. Missing or non-string values yield "".
func (s *Store) GetString(key string) string {
	val, ok := s.Get(key)
	if !ok {
		return ""
	}

	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}

// HasPrefix reports whether any key starts with prefix.
func (s *Store) HasPrefix(prefix string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Set stores a value and persists immediately.
func (s *Store) Set(key string, value any) error {
	return s.SetMany(map[string]any{key: value})
}

// SetMany stores several values with a single write.
func (s *Store) SetMany(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.data[k] = v
	}
	return s.save()
}

// save writes the file (caller must hold lock).
func (s *Store) save() error {
	data, err := toml.Marshal(nestMap(s.data))
	if err != nil {
		return err
	}

	// Write with restricted permissions
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(s.filePath, 0600)
}

// Load reads the TOML file. A missing file yields an empty store.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = make(map[string]any)
			return nil
		}
		return err
	}

	var loaded map[string]any
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return err
	}

	if loaded == nil {
		loaded = make(map[string]any)
	}

	s.data = flattenMap(loaded, "")
	return nil
}

// flattenMap converts nested maps to dot-notation keys.
// E.g., {"a": {"b": 1}} becomes {"a.b": 1}.
func flattenMap(m map[string]any, prefix string) map[string]any {
	result := make(map[string]any)

	for key, value := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nested, ok := value.(map[string]any); ok {
			for k, v := range flattenMap(nested, fullKey) {
				result[k] = v
			}
		} else {
			result[fullKey] = value
		}
	}

	return result
}

// nestMap is the inverse of flattenMap. Keys are placed shallowest first, so a
// key that is both a value and a table prefix keeps its value and the deeper
// key stays under its full dotted name.
func nestMap(flat map[string]any) map[string]any {
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		di, dj := strings.Count(keys[i], "."), strings.Count(keys[j], ".")
		if di != dj {
			return di < dj
		}
		return keys[i] < keys[j]
	})

	result := make(map[string]any)
	for _, key := range keys {
		parts := strings.Split(key, ".")
		node := result
		for _, part := range parts[:len(parts)-1] {
			next, exists := node[part]
			if !exists {
				next = make(map[string]any)
				node[part] = next
			}
			child, isMap := next.(map[string]any)
			if !isMap {
				node = nil
				break
			}
			node = child
		}
		if node == nil {
			result[key] = flat[key]
			continue
		}
		node[parts[len(parts)-1]] = flat[key]
	}

	return result
}

// Path returns the file path.
func (s *Store) Path() string {
	return s.filePath
}
