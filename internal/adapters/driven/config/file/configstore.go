package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// configFile is the settings file written inside the config directory.
const configFile = "config.toml"

// ConfigStore persists settings to a TOML file. Dotted keys map onto TOML
// tables, so "rag.top_k" is written as top_k under [rag]. Reads are served
// from the flattened values loaded at open time.
type ConfigStore struct {
	*memory.ConfigStore

	mu       sync.Mutex // serialises writes to the file
	filePath string
}

// NewConfigStore opens configDir/config.toml, creating the directory when
// needed. An empty configDir means ~/.docchat. A missing file is an empty
// configuration.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configDir = filepath.Join(home, ".docchat")
	}
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	path := filepath.Join(configDir, configFile)
	values, err := readTOML(path)
	if err != nil {
		return nil, err
	}
	return &ConfigStore{
		ConfigStore: memory.NewConfigStoreFrom(values),
		filePath:    path,
	}, nil
}

// Set stores one value and rewrites the file.
func (s *ConfigStore) Set(key string, value any) error {
	return s.SetMany(map[string]any{key: value})
}

// SetMany stores every value and rewrites the file once.
func (s *ConfigStore) SetMany(values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Snapshot()
	for k, v := range values {
		if d, ok := v.(time.Duration); ok {
			v = d.String()
		}
		next[k] = v
	}
	data, err := toml.Marshal(nest(next))
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.filePath, err)
	}
	// The file can hold API keys.
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", s.filePath, err)
	}
	return s.ConfigStore.SetMany(values)
}

// Path returns the TOML file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	flat := make(map[string]any)
	flatten(tree, "", flat)
	return flat, nil
}

// flatten writes nested tables into out under dotted keys.
func flatten(tree map[string]any, prefix string, out map[string]any) {
	for k, v := range tree {
		if prefix != "" {
			k = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(table, k, out)
			continue
		}
		out[k] = v
	}
}

// nest is the inverse of flatten.
func nest(flat map[string]any) map[string]any {
	tree := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return tree
}
