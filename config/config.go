// Package config implements the settings store consumed by the cluster
// supervisor: the station callsign, the ordered cluster list, and the
// notification transport settings, persisted as a YAML file.
package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings is the complete persisted configuration.
type Settings struct {
	StationCallsign string          `yaml:"station_callsign"`
	Clusters        []ClusterConfig `yaml:"clusters"`
	MQTT            MQTTConfig      `yaml:"mqtt"`
}

// ClusterConfig describes one configured cluster connection.
type ClusterConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Callsign      string `yaml:"callsign,omitempty"` // falls back to StationCallsign
	Enabled       bool   `yaml:"enabled"`
	AutoReconnect bool   `yaml:"auto_reconnect"`
}

// MQTTConfig contains notification transport settings.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	SpotTopic   string `yaml:"spot_topic"`
	StatusTopic string `yaml:"status_topic"`
}

// Store reads and writes Settings at a fixed path. A missing file loads as
// empty settings so the supervisor can synthesize and persist defaults on
// first run.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the settings file. A missing file is not an error.
func (s *Store) Load() (*Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &settings, nil
}

// Save writes the settings back to the same file.
func (s *Store) Save(settings *Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Cluster returns the cluster config with the given id.
func (s *Settings) Cluster(id string) (ClusterConfig, bool) {
	for _, c := range s.Clusters {
		if c.ID == id {
			return c, true
		}
	}
	return ClusterConfig{}, false
}
