package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ChangeCallback is invoked after a successful UpdateConfig, with the
// prior and new configuration snapshots.
type ChangeCallback func(oldConfig, newConfig *Config)

// ConfigGetter returns the current configuration.
type ConfigGetter func() *Config

// Manager owns the live configuration, its backing file, and the set of
// subsystems (Retention Engine, Stream State Manager) that want to react
// to a reload without a process restart.
type Manager struct {
	mu         sync.RWMutex
	current    *Config
	configFile string
	callbacks  []ChangeCallback
}

// NewManager wraps an already-loaded Config.
func NewManager(cfg *Config, configFile string) *Manager {
	return &Manager{current: cfg, configFile: configFile}
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// GetConfigGetter adapts GetConfig to the ConfigGetter function type.
func (m *Manager) GetConfigGetter() ConfigGetter {
	return m.GetConfig
}

// UpdateConfig validates and installs a new configuration, then notifies
// every registered callback with a deep copy of the prior configuration.
func (m *Manager) UpdateConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	var old *Config
	if m.current != nil {
		old = m.current.DeepCopy()
	}
	m.current = cfg
	callbacks := make([]ChangeCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, cfg)
	}
	return nil
}

// OnConfigChange registers a callback fired on every future UpdateConfig.
func (m *Manager) OnConfigChange(cb ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// SetCustomConfigPath overrides the path used by SaveConfig. An empty
// path is a silent no-op rather than clearing the existing path.
func (m *Manager) SetCustomConfigPath(path string) {
	if path == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configFile = path
}

// SaveConfig writes the current configuration to its backing file.
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	cfg, path := m.current, m.configFile
	m.mu.RUnlock()
	if cfg == nil {
		return fmt.Errorf("config: no configuration to save")
	}
	return SaveToFile(cfg, path)
}

// SaveToFile marshals cfg as YAML and writes it to filename, creating
// parent directories as needed.
func SaveToFile(cfg *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("config: no file path provided")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// LoadConfig reads configFile (or "./config.yaml" if empty) via viper,
// merging onto the documented defaults, writing a fresh default file if
// none exists, and validating the result.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	target := configFile
	if target == "" {
		target = "./config.yaml"
	}
	viper.SetConfigFile(target)

	if err := viper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := SaveToFile(cfg, target); err != nil {
				return nil, fmt.Errorf("config: write default: %w", err)
			}
			viper.SetConfigFile(target)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("config: read newly created file: %w", err)
			}
		} else {
			return nil, fmt.Errorf("config: read %s: %w", target, err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	applyStreamDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// applyStreamDefaults fills a stream entry's booleans to the documented
// defaults (streaming_enabled=true) when the entry's section in the
// document never set them. viper zero-values unset bools, so entries are
// patched up only when the loaded document omitted the key entirely; a
// document that explicitly sets streaming_enabled=false is left alone.
func applyStreamDefaults(cfg *Config) {
	for i := range cfg.Streams {
		key := fmt.Sprintf("streams.%d.streaming_enabled", i)
		if !viper.IsSet(key) {
			cfg.Streams[i].StreamingEnabled = true
		}
	}
}
