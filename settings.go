package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aquamarinepk/customers/internal/aqm"
)

const (
	driverMongo  = "mongo"
	driverMemory = "memory"
)

// Settings is the typed view of the loaded configuration.
type Settings struct {
	HTTP struct {
		Port        string        `koanf:"port"`
		Timeout     time.Duration `koanf:"timeout"`
		DebugRoutes bool          `koanf:"debug_routes"`
	} `koanf:"http"`
	Log struct {
		Level string `koanf:"level"`
	} `koanf:"log"`
	Store struct {
		Driver string `koanf:"driver"`
	} `koanf:"store"`
	Mongo struct {
		URI            string        `koanf:"uri"`
		Database       string        `koanf:"database"`
		Collection     string        `koanf:"collection"`
		ConnectTimeout time.Duration `koanf:"connect_timeout"`
		OpTimeout      time.Duration `koanf:"op_timeout"`
	} `koanf:"mongo"`
	Seed struct {
		Enabled bool `koanf:"enabled"`
	} `koanf:"seed"`
	Telemetry struct {
		Tracing bool `koanf:"tracing"`
	} `koanf:"telemetry"`
}

// applyDefaults fills keys the operator left unset. The listen port honours
// the conventional PORT variable before falling back to :3000.
func applyDefaults(cfg *aqm.Config) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	cfg.SetDefault("http.port", aqm.NormalizePort(port, ":3000"))
	cfg.SetDefault("http.timeout", "0s")
	cfg.SetDefault("http.debug_routes", false)
	cfg.SetDefault("log.level", "info")
	cfg.SetDefault("store.driver", driverMongo)
	cfg.SetDefault("mongo.database", "sample_analytics")
	cfg.SetDefault("mongo.collection", "customers")
	cfg.SetDefault("mongo.connect_timeout", "10s")
	cfg.SetDefault("mongo.op_timeout", "0s")
	cfg.SetDefault("seed.enabled", false)
	cfg.SetDefault("telemetry.tracing", false)
}

func loadSettings(cfg *aqm.Config) (Settings, error) {
	applyDefaults(cfg)

	var s Settings
	if err := cfg.Unmarshal("", &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	s.Store.Driver = strings.ToLower(strings.TrimSpace(s.Store.Driver))
	return s, s.validate()
}

func (s Settings) validate() error {
	switch s.Store.Driver {
	case driverMemory:
		return nil
	case driverMongo:
		if s.Mongo.URI == "" {
			return errors.New("mongo.uri is required when store.driver is mongo")
		}
		if s.Mongo.Database == "" || s.Mongo.Collection == "" {
			return errors.New("mongo.database and mongo.collection must not be empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown store.driver %q", s.Store.Driver)
	}
}
