package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	server "plaza/server"
	"plaza/server/internal/proximity"
)

// Config is the process configuration, populated from PLAZA_* environment
// variables. Zero values fall back to the defaults declared in the tags.
type Config struct {
	Addr            string        `env:"PLAZA_ADDR" envDefault:":8080"`
	JWTSecret       string        `env:"PLAZA_JWT_SECRET"`
	AllowGuests     bool          `env:"PLAZA_ALLOW_GUESTS" envDefault:"true"`
	DBPath          string        `env:"PLAZA_DB_PATH"`
	LogPath         string        `env:"PLAZA_LOG_PATH"`
	EventLogPath    string        `env:"PLAZA_EVENT_LOG_PATH"`
	EventSinks      []string      `env:"PLAZA_EVENT_SINKS" envSeparator:"," envDefault:"console"`
	ProximityRadius float64       `env:"PLAZA_PROXIMITY_RADIUS" envDefault:"4"`
	MaxOccupancy    int           `env:"PLAZA_MAX_OCCUPANCY" envDefault:"30"`
	ShutdownGrace   time.Duration `env:"PLAZA_SHUTDOWN_GRACE" envDefault:"10s"`
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.JWTSecret == "" && !c.AllowGuests {
		return fmt.Errorf("guests are disabled but PLAZA_JWT_SECRET is unset")
	}
	if c.ProximityRadius <= 0 {
		return fmt.Errorf("proximity radius must be positive, got %v", c.ProximityRadius)
	}
	if c.MaxOccupancy <= 0 {
		return fmt.Errorf("max occupancy must be positive, got %d", c.MaxOccupancy)
	}
	return nil
}

func (c Config) proximityRadius() float64 {
	if c.ProximityRadius > 0 {
		return c.ProximityRadius
	}
	return proximity.DefaultRadius
}

func (c Config) maxOccupancy() int {
	if c.MaxOccupancy > 0 {
		return c.MaxOccupancy
	}
	return server.DefaultRealmCapacity
}
