/*
Package config loads the service configuration.

PURPOSE:
  One TOML file describes the whole deployment: server address, database
  path, logging, the directory service, and the accrual rule constants.
  Every field has a production default so an empty file (or none at all)
  yields a runnable service.

SEE ALSO:
  - accrual: Consumer of the [accrual] section
  - cmd/server: Flag overrides on top of the loaded file
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/greenride/seed-engine/accrual"
)

// Config is the root of the TOML configuration file.
type Config struct {
	Server    Server         `toml:"server"`
	Database  Database       `toml:"database"`
	Log       Log            `toml:"log"`
	Directory Directory      `toml:"directory"`
	Accrual   accrual.Config `toml:"accrual"`
}

// Server configures the HTTP listener.
type Server struct {
	Port int `toml:"port"`
}

// Database configures the SQLite store.
type Database struct {
	Path string `toml:"path"`
}

// Log configures structured logging.
type Log struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Directory configures the user directory client. An empty URL disables
// email filtering.
type Directory struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Timeout returns the lookup timeout as a duration.
func (d Directory) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Default returns the production defaults.
func Default() Config {
	return Config{
		Server:    Server{Port: 8080},
		Database:  Database{Path: "./data/seeds.db"},
		Log:       Log{Level: "info"},
		Directory: Directory{TimeoutSeconds: 5},
		Accrual:   accrual.DefaultConfig(),
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file
// is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
