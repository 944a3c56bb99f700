package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"occupancy-service/internal/domain/occupancy"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Detector DetectorConfig `mapstructure:"detector"`
	Counting CountingConfig `mapstructure:"counting"`
	Cameras  []CameraConfig `mapstructure:"cameras"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig configures the optional event archive. An empty DSN
// disables archival; history then comes from the in-memory logs only.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type DetectorConfig struct {
	URL        string        `mapstructure:"url"`
	Confidence float64       `mapstructure:"confidence"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CountingConfig struct {
	Cooldown      time.Duration `mapstructure:"cooldown"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EventCapacity int           `mapstructure:"event_capacity"`
}

type CameraConfig struct {
	ID          string     `mapstructure:"id"`
	Name        string     `mapstructure:"name"`
	SourceURL   string     `mapstructure:"source_url"`
	Line        LineConfig `mapstructure:"entrance_line"`
	LeftToRight string     `mapstructure:"left_to_right"`
}

type LineConfig struct {
	X1 float64 `mapstructure:"x1"`
	Y1 float64 `mapstructure:"y1"`
	X2 float64 `mapstructure:"x2"`
	Y2 float64 `mapstructure:"y2"`
}

// ToDomain converts the camera entry to its domain form. Call only
// after Validate has accepted the config.
func (c CameraConfig) ToDomain() occupancy.Camera {
	return occupancy.Camera{
		ID:        c.ID,
		Name:      c.Name,
		SourceURL: c.SourceURL,
		EntranceLine: occupancy.Line{
			P1: occupancy.Point{X: c.Line.X1, Y: c.Line.Y1},
			P2: occupancy.Point{X: c.Line.X2, Y: c.Line.Y2},
		},
		LeftToRight: occupancy.Direction(c.LeftToRight),
	}
}

// Load reads the config file at path, or ./config.yaml when path is
// empty. Environment variables prefixed OCCUPANCY_ override defaulted
// and explicitly bound keys (viper only maps env vars into Unmarshal
// for keys it already knows about).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("detector.confidence", 0.5)
	v.SetDefault("detector.timeout", 5*time.Second)
	v.SetDefault("counting.cooldown", 2*time.Second)
	v.SetDefault("counting.idle_timeout", 30*time.Second)
	v.SetDefault("counting.event_capacity", 1000)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("OCCUPANCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Undefaulted keys need an explicit bind to be visible to env
	// overrides; these are the ones usually injected at deploy time.
	for _, key := range []string{"auth.jwt_secret", "database.dsn", "detector.url"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	// The admin endpoints are always JWT-guarded; an empty secret would
	// make every token forgeable.
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Detector.URL == "" {
		return fmt.Errorf("detector.url is required")
	}
	if c.Detector.Confidence <= 0 || c.Detector.Confidence > 1 {
		return fmt.Errorf("detector.confidence must be in (0, 1], got %v", c.Detector.Confidence)
	}
	if c.Counting.Cooldown <= 0 {
		return fmt.Errorf("counting.cooldown must be positive")
	}
	if c.Counting.EventCapacity <= 0 {
		return fmt.Errorf("counting.event_capacity must be positive")
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera is required")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" {
			return fmt.Errorf("cameras[%d]: id is required", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("cameras[%d]: duplicate camera id %q", i, cam.ID)
		}
		seen[cam.ID] = true
		if cam.SourceURL == "" {
			return fmt.Errorf("camera %s: source_url is required", cam.ID)
		}
		if err := cam.Line.validate(); err != nil {
			return fmt.Errorf("camera %s: %w", cam.ID, err)
		}
		switch occupancy.Direction(cam.LeftToRight) {
		case occupancy.DirectionIn, occupancy.DirectionOut:
		default:
			return fmt.Errorf("camera %s: left_to_right must be %q or %q, got %q",
				cam.ID, occupancy.DirectionIn, occupancy.DirectionOut, cam.LeftToRight)
		}
	}
	return nil
}

func (l LineConfig) validate() error {
	for _, v := range []float64{l.X1, l.Y1, l.X2, l.Y2} {
		if v < 0 || v > 1 {
			return fmt.Errorf("entrance_line coordinates must be normalized to [0, 1], got %v", v)
		}
	}
	if l.X1 == l.X2 && l.Y1 == l.Y2 {
		return fmt.Errorf("entrance_line endpoints must differ")
	}
	return nil
}
