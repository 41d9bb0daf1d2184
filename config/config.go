// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config loads the microhttp configuration from an optional
// YAML file and MICROHTTP_ prefixed environment variables.
package config

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, e.g.
// MICROHTTP_PORT or MICROHTTP_LOG_LEVEL.
const EnvPrefix = "MICROHTTP"

// Log configures the process logger.
type Log struct {
	Level  slog.Level `mapstructure:"level"`
	Format string     `mapstructure:"format"`

	// Mask lists log attribute keys whose values are redacted.
	Mask []string `mapstructure:"mask"`
}

// Otel configures trace exporting.
type Otel struct {
	Exporter    string `mapstructure:"exporter"`
	ServiceName string `mapstructure:"serviceName"`
	Target      string `mapstructure:"target"`
	ProjectID   string `mapstructure:"projectId"`
}

// Probe configures the probe client.
type Probe struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
}

// Config is the full microhttp configuration.
type Config struct {
	Port          uint   `mapstructure:"port"`
	Address       string `mapstructure:"address"`
	LoopbackAlias string `mapstructure:"loopbackAlias"`
	Serialize     bool   `mapstructure:"serialize"`

	Log   Log   `mapstructure:"log"`
	Otel  Otel  `mapstructure:"otel"`
	Probe Probe `mapstructure:"probe"`
}

// Supported values of Log.Format.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Supported values of Otel.Exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterGCP    = "gcp"
)

var defaults = map[string]any{
	"port":              8080,
	"address":           "",
	"loopbackAlias":     "localhost",
	"serialize":         false,
	"log.level":         "INFO",
	"log.format":        FormatJSON,
	"log.mask":          []string{},
	"otel.exporter":     ExporterNone,
	"otel.serviceName":  "microhttp",
	"otel.target":       "localhost:4317",
	"otel.projectId":    "",
	"probe.timeout":     "10s",
	"probe.maxAttempts": 3,
}

// Load reads the YAML file at path, if path is not empty, and applies
// environment variable overrides on top of it.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return Config{}, LoadError{Path: path, Cause: err}
		}
	}
	return decode(v, path)
}

// Read reads YAML from r, which may be nil, and applies environment
// variable overrides on top of it.
func Read(r io.Reader) (Config, error) {
	v := newViper()
	if r != nil {
		err := v.ReadConfig(r)
		if err != nil {
			return Config{}, LoadError{Cause: err}
		}
	}
	return decode(v, "")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

func decode(v *viper.Viper, path string) (Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		textUnmarshalerHookFunc(),
	)))
	if err != nil {
		return Config{}, LoadError{Path: path, Cause: err}
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, LoadError{Path: path, Cause: err}
	}
	return cfg, nil
}

// mapstructure.TextUnmarshallerHookFunc only fills pointer targets,
// slog.Level fields are values.
func textUnmarshalerHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		result := reflect.New(t)
		u, ok := result.Interface().(encoding.TextUnmarshaler)
		if !ok {
			return data, nil
		}
		err := u.UnmarshalText(bytes.TrimSpace([]byte(data.(string))))
		if err != nil {
			return nil, err
		}
		return result.Elem().Interface(), nil
	}
}

// Validate reports every invalid field of c.
func (c Config) Validate() error {
	var errs []error
	if c.Port > 65535 {
		errs = append(errs, InvalidValueError{Key: "port", Value: c.Port})
	}
	switch c.Log.Format {
	case FormatJSON, FormatText:
	default:
		errs = append(errs, InvalidValueError{Key: "log.format", Value: c.Log.Format})
	}
	switch c.Otel.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP:
	case ExporterGCP:
		if c.Otel.ProjectID == "" {
			errs = append(errs, InvalidValueError{Key: "otel.projectId", Value: c.Otel.ProjectID})
		}
	default:
		errs = append(errs, InvalidValueError{Key: "otel.exporter", Value: c.Otel.Exporter})
	}
	if c.Probe.Timeout <= 0 {
		errs = append(errs, InvalidValueError{Key: "probe.timeout", Value: c.Probe.Timeout})
	}
	if c.Probe.MaxAttempts < 1 {
		errs = append(errs, InvalidValueError{Key: "probe.maxAttempts", Value: c.Probe.MaxAttempts})
	}
	return errors.Join(errs...)
}

// InvalidValueError is returned when a config value is out of range.
type InvalidValueError struct {
	Key   string
	Value any
}

// Error implements the [builtin.error] interface.
func (e InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Key, e.Value)
}

// LoadError wraps any failure to read, decode or validate the config.
type LoadError struct {
	Path  string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e LoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to load config: %s", e.Cause)
	}
	return fmt.Sprintf("failed to load config from %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e LoadError) Unwrap() error {
	return e.Cause
}
