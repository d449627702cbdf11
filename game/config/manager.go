package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
	"github.com/wricardo/mcp-training/tilemerge/game/service"
)

var (
	ErrConfigNotFound = service.ErrConfigNotFound
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// DefaultName is the variant used when a session names none
const DefaultName = "classic"

// extensions are tried in order when resolving a variant name
var extensions = []string{".json", ".yaml", ".yml"}

// Manager handles variant loading and caching
type Manager struct {
	configDir     string
	defaultConfig *engine.Variant
	configs       map[string]*engine.Variant
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*engine.Variant),
	}
	m.loadDefaultConfig()

	return m, nil
}

// configID strips a known extension from a file or variant name
func configID(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range extensions {
		if ext == known {
			return strings.TrimSuffix(name, filepath.Ext(name))
		}
	}
	return name
}

// LoadConfig loads a variant by name. The name may carry its file extension.
func (m *Manager) LoadConfig(name string) (*engine.Variant, error) {
	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
	}

	m.mu.RLock()
	if v, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return v, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if v, exists := m.configs[id]; exists {
		return v, nil
	}

	candidates := extensions
	if id != name {
		candidates = []string{filepath.Ext(name)}
	}

	for _, ext := range candidates {
		path := filepath.Join(m.configDir, id+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		v, err := engine.ParseVariant(path, data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		m.configs[id] = v
		return v, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, name)
}

// ListConfigs returns information about all valid variant files, sorted by ID
func (m *Manager) ListConfigs() ([]*service.ConfigInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	configs := []*service.ConfigInfo{}
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		id := configID(entry.Name())
		if id == entry.Name() || seen[id] {
			continue
		}

		v, err := m.LoadConfig(entry.Name())
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Skipping invalid variant file")
			continue
		}
		seen[id] = true

		configs = append(configs, &service.ConfigInfo{
			Filename:    entry.Name(),
			ConfigID:    id,
			Name:        v.Name,
			Description: v.Description,
			GridSize:    v.GridSize,
			TargetTile:  v.TargetTile,
		})
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].ConfigID < configs[j].ConfigID })
	return configs, nil
}

// GetDefault returns the default variant
func (m *Manager) GetDefault() *engine.Variant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default variant by name
func (m *Manager) SetDefault(name string) error {
	v, err := m.LoadConfig(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = v
	return nil
}

// RefreshCache drops every cached variant and reloads the default from disk
func (m *Manager) RefreshCache() error {
	m.mu.Lock()
	m.configs = make(map[string]*engine.Variant)
	m.mu.Unlock()

	m.loadDefaultConfig()
	return nil
}

// loadDefaultConfig picks classic, then the first valid file, then the
// built-in classic rules
func (m *Manager) loadDefaultConfig() {
	v, err := m.LoadConfig(DefaultName)
	if err != nil {
		configs, listErr := m.ListConfigs()
		if listErr == nil && len(configs) > 0 {
			v, err = m.LoadConfig(configs[0].Filename)
		}
	}
	if err != nil || v == nil {
		log.Debug().Str("dir", m.configDir).Msg("No usable variant files, using built-in classic rules")
		v = engine.DefaultVariant()
	}

	m.mu.Lock()
	m.defaultConfig = v
	m.mu.Unlock()
}

// SaveConfig validates a variant and writes it to disk. Names ending in .yaml
// or .yml are written as YAML, anything else as JSON.
func (m *Manager) SaveConfig(name string, v *engine.Variant) error {
	if v == nil {
		return fmt.Errorf("%w: variant is nil", ErrInvalidConfig)
	}
	v.ApplyDefaults()
	if err := engine.ValidateVariant(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	id := configID(name)
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: bad name %q", ErrInvalidConfig, name)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if id == name {
		ext = ".json"
	}

	var (
		data []byte
		err  error
	)
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.configDir, id+ext), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = v
	m.mu.Unlock()

	return nil
}
