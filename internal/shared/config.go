package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig   `toml:"credentials"`
	Database    DatabaseConfig      `toml:"database"`
	Server      ServerConfig        `toml:"server"`
	Media       []MediaServerConfig `toml:"media_server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Plex PlexConfig `toml:"plex"`
}

// PlexConfig contains the plex.tv client identity used for the PIN handshake.
type PlexConfig struct {
	ClientID string `toml:"client_id"`
	Product  string `toml:"product"`
	Token    string `toml:"token"`
}

// MediaServerConfig describes one configured media server.
type MediaServerConfig struct {
	Name  string `toml:"name"`
	Type  string `toml:"type"` // "plex" or "jellyfin"
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig writes the configuration to the specified path as TOML.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindServer returns the configured media server with the given name.
func (c *Config) FindServer(name string) (*MediaServerConfig, error) {
	for i := range c.Media {
		if c.Media[i].Name == name {
			return &c.Media[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrServerNotFound, name)
}
