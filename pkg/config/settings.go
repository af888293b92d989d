package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// Settings holds the service configuration. It is distinct from Target, which
// is the single value operators change at runtime.
type Settings struct {
	// Control surface
	ListenAddr  string  `yaml:"listen_addr" json:"listen_addr" env:"KIOSK_LISTEN_ADDR"`
	UpdateRate  float64 `yaml:"update_rate" json:"update_rate" env:"KIOSK_UPDATE_RATE"` // update requests per second, 0 disables limiting
	UpdateBurst int     `yaml:"update_burst" json:"update_burst" env:"KIOSK_UPDATE_BURST"`

	// Storage
	StateDir       string `yaml:"state_dir" json:"state_dir" env:"KIOSK_STATE_DIR"`
	ConfigFile     string `yaml:"config_file" json:"config_file" env:"KIOSK_CONFIG_FILE"`
	EventLogFile   string `yaml:"event_log_file" json:"event_log_file" env:"KIOSK_EVENT_LOG_FILE"`
	DefaultWebsite string `yaml:"default_website" json:"default_website" env:"KIOSK_DEFAULT_WEBSITE"`

	// Browser
	Headless        bool          `yaml:"headless" json:"headless" env:"KIOSK_HEADLESS"`
	InstallBrowsers bool          `yaml:"install_browsers" json:"install_browsers" env:"KIOSK_INSTALL_BROWSERS"`
	ViewportWidth   int           `yaml:"viewport_width" json:"viewport_width" env:"KIOSK_VIEWPORT_WIDTH"`
	ViewportHeight  int           `yaml:"viewport_height" json:"viewport_height" env:"KIOSK_VIEWPORT_HEIGHT"`
	OpenTimeout     time.Duration `yaml:"open_timeout" json:"open_timeout" env:"KIOSK_OPEN_TIMEOUT"`
	WaitUntil       string        `yaml:"wait_until" json:"wait_until" env:"KIOSK_WAIT_UNTIL"`

	// Target policy, glob patterns
	AllowedTargets []string `yaml:"allowed_targets" json:"allowed_targets" env:"KIOSK_ALLOWED_TARGETS"`
	DeniedTargets  []string `yaml:"denied_targets" json:"denied_targets" env:"KIOSK_DENIED_TARGETS"`

	// Logging
	LogLevel string `yaml:"log_level" json:"log_level" env:"KIOSK_LOG_LEVEL"`
}

// DefaultSettings returns settings suitable for a local kiosk.
func DefaultSettings() *Settings {
	return &Settings{
		ListenAddr:     ":3000",
		UpdateRate:     0,
		UpdateBurst:    5,
		StateDir:       "public",
		ConfigFile:     "config.json",
		EventLogFile:   "error.log",
		DefaultWebsite: DefaultWebsite,
		Headless:       true,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		OpenTimeout:    30 * time.Second,
		WaitUntil:      "load",
		LogLevel:       "info",
	}
}

// LoadSettings builds settings from defaults, then the YAML file at path
// (skipped when path is empty), then a .env file in the working directory,
// then KIOSK_* environment variables.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := s.decodeYAML(data); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	}

	// A missing .env is normal
	_ = godotenv.Load()

	if err := env.Load(s, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) decodeYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the settings for values the service cannot run with.
func (s *Settings) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if s.StateDir == "" {
		return fmt.Errorf("state directory is required")
	}
	if s.ConfigFile == "" || s.EventLogFile == "" {
		return fmt.Errorf("config file and event log file names are required")
	}
	if strings.TrimSpace(s.DefaultWebsite) == "" {
		return fmt.Errorf("default website cannot be empty")
	}
	if s.OpenTimeout <= 0 {
		return fmt.Errorf("open_timeout must be positive")
	}
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be positive")
	}
	if s.UpdateRate < 0 {
		return fmt.Errorf("update_rate cannot be negative")
	}
	if s.UpdateRate > 0 && s.UpdateBurst < 1 {
		return fmt.Errorf("update_burst must be at least 1 when update_rate is set")
	}

	validWaits := map[string]bool{
		"load":             true,
		"domcontentloaded": true,
		"networkidle":      true,
		"commit":           true,
	}
	if !validWaits[s.WaitUntil] {
		return fmt.Errorf("invalid wait_until: %s (must be 'load', 'domcontentloaded', 'networkidle', or 'commit')", s.WaitUntil)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[s.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be 'debug', 'info', 'warn', or 'error')", s.LogLevel)
	}

	if _, err := NewTargetPolicy(s.AllowedTargets, s.DeniedTargets); err != nil {
		return err
	}
	return nil
}

// ConfigPath returns where the target record lives.
func (s *Settings) ConfigPath() string {
	return s.resolve(s.ConfigFile)
}

// EventLogPath returns where the event log lives.
func (s *Settings) EventLogPath() string {
	return s.resolve(s.EventLogFile)
}

// ProcessLogDir returns the directory for the operator process log.
func (s *Settings) ProcessLogDir() string {
	return filepath.Join(s.StateDir, "logs")
}

func (s *Settings) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.StateDir, name)
}
