// Package config loads the migration tool settings from a YAML file.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jacoelho/scesim"
	"github.com/jacoelho/scesim/internal/version"
)

const (
	defaultConcurrency = 4
	defaultDebounce    = 200 * time.Millisecond
	defaultExtension   = ".scesim"
)

// Config holds the settings shared by every command.
type Config struct {
	CurrentVersion string      `yaml:"currentVersion" validate:"omitempty,scesimversion"`
	Extensions     []string    `yaml:"extensions" validate:"min=1,dive,startswith=."`
	Log            LogConfig   `yaml:"log"`
	Watch          WatchConfig `yaml:"watch"`
	Indent         int         `yaml:"indent" validate:"gte=0,lte=16"`
	MaxInputSize   int         `yaml:"maxInputSize" validate:"gte=0"`
	Concurrency    int         `yaml:"concurrency" validate:"gte=1,lte=256"`
	Compact        bool        `yaml:"compact"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// WatchConfig tunes the directory watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("scesimversion", func(fl validator.FieldLevel) bool {
		_, err := version.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Extensions:  []string{defaultExtension},
		Concurrency: defaultConcurrency,
		Log:         LogConfig{Level: "info", Format: "text"},
		Watch:       WatchConfig{Debounce: defaultDebounce},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := decode(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// MatchesExtension reports whether path ends with one of the configured extensions.
func (c Config) MatchesExtension(path string) bool {
	for _, ext := range c.Extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// MigratorOptions maps the settings onto migrator options.
func (c Config) MigratorOptions(logger *slog.Logger) scesim.Options {
	opts := scesim.NewOptions().
		WithCurrentVersion(c.CurrentVersion).
		WithCompact(c.Compact).
		WithLogger(logger)
	if c.Indent > 0 {
		opts = opts.WithIndent(c.Indent)
	}
	if c.MaxInputSize > 0 {
		opts = opts.WithMaxInputSize(c.MaxInputSize)
	}
	return opts
}

// NewLogger builds the configured handler writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", c.Log.Format)
	}
}
