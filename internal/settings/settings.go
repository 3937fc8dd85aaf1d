// Package settings persists user preferences to a YAML config file via
// viper. Loading never fails the application: a missing or corrupt file
// falls back to defaults with a log entry. Saving to a path that fails
// validation is a logged no-op rather than an error dialog.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/tracing"
)

const (
	appDirName     = "mermaidpad"
	configFileName = "config.yaml"
)

// Settings is everything persisted between sessions.
type Settings struct {
	// Theme selects the preview style: "auto", "dark", or "light".
	Theme string `mapstructure:"theme"`

	// AutoRender re-renders the preview as the text settles.
	AutoRender bool `mapstructure:"auto_render"`

	// DebounceMS is the text propagation quiescence window.
	DebounceMS int `mapstructure:"debounce_ms"`

	// StateDebounceMS is the selection/caret quiescence window.
	StateDebounceMS int `mapstructure:"state_debounce_ms"`

	// RenderTimeoutSec caps waiting for the preview's first frame.
	RenderTimeoutSec int `mapstructure:"render_timeout_sec"`

	// DiscoveryMaxAttempts bounds the panel discovery retry loop.
	DiscoveryMaxAttempts int `mapstructure:"discovery_max_attempts"`

	// LastFile reopens on next launch when set.
	LastFile string `mapstructure:"last_file"`

	// Layout is the serialized dock layout.
	Layout string `mapstructure:"layout"`

	// Debug enables the file logger.
	Debug bool `mapstructure:"debug"`

	// Tracing configures span export.
	Tracing tracing.Config `mapstructure:"tracing"`
}

// Defaults returns the settings used when no config file exists.
func Defaults() Settings {
	return Settings{
		Theme:            "auto",
		AutoRender:       true,
		DebounceMS:       250,
		StateDebounceMS:  50,
		RenderTimeoutSec: 30,
		Tracing:          tracing.DefaultConfig(),
	}
}

// DefaultPath returns the per-user config file location, typically
// ~/.config/mermaidpad/config.yaml.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config dir: %w", err)
	}
	return filepath.Join(base, appDirName, configFileName), nil
}

// Store reads and writes the config file.
type Store struct {
	path string
}

// NewStore creates a store at path; empty means the default location.
func NewStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &Store{path: path}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Load reads settings from disk. Any failure falls back to defaults: a
// broken config file must never keep the editor from starting.
func (s *Store) Load() Settings {
	defaults := Defaults()

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	applyDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Debug(log.CatSettings, "No config file, using defaults", "path", s.path)
		} else {
			log.Warn(log.CatSettings, "Config unreadable, using defaults",
				"path", s.path, "error", err.Error())
		}
		return defaults
	}

	var loaded Settings
	if err := v.Unmarshal(&loaded); err != nil {
		log.Warn(log.CatSettings, "Config malformed, using defaults",
			"path", s.path, "error", err.Error())
		return defaults
	}
	return loaded
}

// Save writes settings to disk. A path that fails validation is a silent
// no-op apart from the log entry: settings persistence must never crash a
// close.
func (s *Store) Save(st Settings) {
	if filepath.Base(s.path) != configFileName {
		log.Warn(log.CatSettings, "Refusing to save settings, unexpected file name",
			"path", s.path)
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		log.ErrorErr(log.CatSettings, err, "Creating config directory")
		return
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.Set("theme", st.Theme)
	v.Set("auto_render", st.AutoRender)
	v.Set("debounce_ms", st.DebounceMS)
	v.Set("state_debounce_ms", st.StateDebounceMS)
	v.Set("render_timeout_sec", st.RenderTimeoutSec)
	v.Set("discovery_max_attempts", st.DiscoveryMaxAttempts)
	v.Set("last_file", st.LastFile)
	v.Set("layout", st.Layout)
	v.Set("debug", st.Debug)
	v.Set("tracing.enabled", st.Tracing.Enabled)
	v.Set("tracing.exporter", st.Tracing.Exporter)
	v.Set("tracing.file_path", st.Tracing.FilePath)

	if err := v.WriteConfigAs(s.path); err != nil {
		log.ErrorErr(log.CatSettings, err, "Writing config file")
		return
	}
	log.Debug(log.CatSettings, "Settings saved", "path", s.path)
}

func applyDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("theme", d.Theme)
	v.SetDefault("auto_render", d.AutoRender)
	v.SetDefault("debounce_ms", d.DebounceMS)
	v.SetDefault("state_debounce_ms", d.StateDebounceMS)
	v.SetDefault("render_timeout_sec", d.RenderTimeoutSec)
	v.SetDefault("discovery_max_attempts", d.DiscoveryMaxAttempts)
	v.SetDefault("last_file", d.LastFile)
	v.SetDefault("layout", d.Layout)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
}
