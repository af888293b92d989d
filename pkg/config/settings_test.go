package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kiosk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())

	assert.Equal(t, ":3000", s.ListenAddr)
	assert.Equal(t, DefaultWebsite, s.DefaultWebsite)
	assert.Equal(t, filepath.Join("public", "config.json"), s.ConfigPath())
	assert.Equal(t, filepath.Join("public", "error.log"), s.EventLogPath())
	assert.Equal(t, filepath.Join("public", "logs"), s.ProcessLogDir())
	assert.Zero(t, s.UpdateRate, "update rate limiting is opt-in")
}

func TestLoadSettings(t *testing.T) {
	t.Run("no file uses defaults", func(t *testing.T) {
		s, err := LoadSettings("")
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})

	t.Run("yaml overrides defaults", func(t *testing.T) {
		path := writeSettings(t, `
listen_addr: "127.0.0.1:8080"
state_dir: /var/lib/kiosk
open_timeout: 10s
headless: false
allowed_targets:
  - "https://*.example.com/**"
`)
		s, err := LoadSettings(path)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:8080", s.ListenAddr)
		assert.Equal(t, 10*time.Second, s.OpenTimeout)
		assert.False(t, s.Headless)
		assert.Equal(t, []string{"https://*.example.com/**"}, s.AllowedTargets)
		assert.Equal(t, "/var/lib/kiosk/config.json", s.ConfigPath())
		// Untouched keys keep their defaults
		assert.Equal(t, "error.log", s.EventLogFile)
	})

	t.Run("empty yaml file is fine", func(t *testing.T) {
		s, err := LoadSettings(writeSettings(t, ""))
		require.NoError(t, err)
		assert.Equal(t, DefaultSettings(), s)
	})

	t.Run("environment overrides yaml", func(t *testing.T) {
		t.Setenv("KIOSK_LISTEN_ADDR", ":9999")
		t.Setenv("KIOSK_OPEN_TIMEOUT", "5s")

		s, err := LoadSettings(writeSettings(t, "listen_addr: \":8080\"\n"))
		require.NoError(t, err)

		assert.Equal(t, ":9999", s.ListenAddr)
		assert.Equal(t, 5*time.Second, s.OpenTimeout)
	})

	t.Run("unknown keys are rejected", func(t *testing.T) {
		_, err := LoadSettings(writeSettings(t, "listen_adr: \":8080\"\n"))
		assert.Error(t, err)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"empty listen addr", func(s *Settings) { s.ListenAddr = "" }},
		{"empty state dir", func(s *Settings) { s.StateDir = "" }},
		{"empty default website", func(s *Settings) { s.DefaultWebsite = "  " }},
		{"zero timeout", func(s *Settings) { s.OpenTimeout = 0 }},
		{"bad viewport", func(s *Settings) { s.ViewportWidth = 0 }},
		{"negative rate", func(s *Settings) { s.UpdateRate = -1 }},
		{"rate without burst", func(s *Settings) { s.UpdateRate = 1; s.UpdateBurst = 0 }},
		{"bad wait until", func(s *Settings) { s.WaitUntil = "whenever" }},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }},
		{"bad target pattern", func(s *Settings) { s.AllowedTargets = []string{"[oops"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSettings_AbsolutePaths(t *testing.T) {
	s := DefaultSettings()
	s.EventLogFile = "/tmp/kiosk-events.log"
	assert.Equal(t, "/tmp/kiosk-events.log", s.EventLogPath())
}
