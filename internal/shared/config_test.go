package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./usher.db" {
			t.Errorf("expected database path ./usher.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Credentials.Plex.ClientID != "usher-cli" {
			t.Errorf("expected plex client_id usher-cli, got %s", config.Credentials.Plex.ClientID)
		}

		if len(config.Media) != 2 {
			t.Fatalf("expected 2 example media servers, got %d", len(config.Media))
		}

		if config.Media[0].Type != "plex" || config.Media[1].Type != "jellyfin" {
			t.Errorf("expected plex + jellyfin example servers, got %s + %s", config.Media[0].Type, config.Media[1].Type)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("expected error when config file already exists")
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("FindServer", func(t *testing.T) {
		config := DefaultConfig()

		srv, err := config.FindServer("plex-main")
		if err != nil {
			t.Fatalf("expected to find plex-main: %v", err)
		}
		if srv.Type != "plex" {
			t.Errorf("expected plex type, got %s", srv.Type)
		}

		if _, err := config.FindServer("missing"); !errors.Is(err, ErrServerNotFound) {
			t.Errorf("expected ErrServerNotFound, got %v", err)
		}
	})
}
