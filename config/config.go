// Package config loads the ambient runtime configuration: listen address,
// log level, control-bus adapter settings, and the layout document path.
// This is deliberately separate from the document package's JSON layout
// file: persistence is always JSON, while ambient config is TOML.
package config

import (
	"github.com/BurntSushi/toml"
)

// ServerConfig controls the HTTP/WebSocket operator surface.
type ServerConfig struct {
	Address string `toml:"address"`
}

// LogConfig controls the shared log15 root logger.
type LogConfig struct {
	Level string `toml:"level"`
}

// BusConfig selects and parameterizes the control-bus adapter.
type BusConfig struct {
	Kind    string `toml:"kind"`    // "frame" for busif.FrameAdapter, "none" to run without a bus
	Address string `toml:"address"` // TCP host:port; the "frame" adapter is always dialled over TCP
}

// PersistenceConfig names the layout document on disk.
type PersistenceConfig struct {
	DocumentPath string `toml:"document_path"`
}

// Config is the complete ambient configuration loaded at startup.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
	Bus         BusConfig         `toml:"bus"`
	Persistence PersistenceConfig `toml:"persistence"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Server:      ServerConfig{Address: ":8080"},
		Log:         LogConfig{Level: "info"},
		Bus:         BusConfig{Kind: "none"},
		Persistence: PersistenceConfig{DocumentPath: "layout.json"},
	}
}

// Load decodes a TOML file at path into a Config seeded with Default's
// values, so a partial file only overrides what it names.
func Load(path string) (Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
