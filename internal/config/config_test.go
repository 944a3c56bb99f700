package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occupancy-service/internal/domain/occupancy"
)

const validConfig = `
server:
  addr: ":9090"
auth:
  jwt_secret: "test-secret"
detector:
  url: "http://127.0.0.1:8500"
cameras:
  - id: cam-1
    name: "Main entrance"
    source_url: "rtsp://127.0.0.1:8554/main"
    entrance_line:
      x1: 0.1
      y1: 0.8
      x2: 0.9
      y2: 0.8
    left_to_right: in
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 0.5, cfg.Detector.Confidence)
	assert.Equal(t, 5*time.Second, cfg.Detector.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Counting.Cooldown)
	assert.Equal(t, 30*time.Second, cfg.Counting.IdleTimeout)
	assert.Equal(t, 1000, cfg.Counting.EventCapacity)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OCCUPANCY_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("OCCUPANCY_DATABASE_DSN", "postgres://env/db")
	t.Setenv("OCCUPANCY_COUNTING_COOLDOWN", "7s")

	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
	assert.Equal(t, 7*time.Second, cfg.Counting.Cooldown, "defaulted keys are overridable too")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCameraToDomain(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	camera := cfg.Cameras[0].ToDomain()
	assert.Equal(t, "cam-1", camera.ID)
	assert.Equal(t, "Main entrance", camera.Name)
	assert.Equal(t, "rtsp://127.0.0.1:8554/main", camera.SourceURL)
	assert.Equal(t, occupancy.Point{X: 0.1, Y: 0.8}, camera.EntranceLine.P1)
	assert.Equal(t, occupancy.Point{X: 0.9, Y: 0.8}, camera.EntranceLine.P2)
	assert.Equal(t, occupancy.DirectionIn, camera.LeftToRight)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	base := func() *Config {
		return &Config{
			Auth:     AuthConfig{JWTSecret: "test-secret"},
			Detector: DetectorConfig{URL: "http://127.0.0.1:8500", Confidence: 0.5, Timeout: time.Second},
			Counting: CountingConfig{Cooldown: time.Second, IdleTimeout: time.Minute, EventCapacity: 100},
			Cameras: []CameraConfig{{
				ID:          "cam-1",
				SourceURL:   "rtsp://127.0.0.1:8554/main",
				Line:        LineConfig{X1: 0.1, Y1: 0.8, X2: 0.9, Y2: 0.8},
				LeftToRight: "in",
			}},
		}
	}
	require.NoError(t, base().Validate(), "baseline must be valid")

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"missing detector url", func(c *Config) { c.Detector.URL = "" }},
		{"confidence above one", func(c *Config) { c.Detector.Confidence = 1.5 }},
		{"zero cooldown", func(c *Config) { c.Counting.Cooldown = 0 }},
		{"zero event capacity", func(c *Config) { c.Counting.EventCapacity = 0 }},
		{"no cameras", func(c *Config) { c.Cameras = nil }},
		{"empty camera id", func(c *Config) { c.Cameras[0].ID = "" }},
		{"duplicate camera id", func(c *Config) { c.Cameras = append(c.Cameras, c.Cameras[0]) }},
		{"missing source url", func(c *Config) { c.Cameras[0].SourceURL = "" }},
		{"line coordinate out of range", func(c *Config) { c.Cameras[0].Line.X2 = 1.5 }},
		{"degenerate line", func(c *Config) { c.Cameras[0].Line = LineConfig{X1: 0.5, Y1: 0.5, X2: 0.5, Y2: 0.5} }},
		{"bad direction mapping", func(c *Config) { c.Cameras[0].LeftToRight = "sideways" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
