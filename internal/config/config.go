package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Pipeline width bounds accepted by shell.max_pipeline_stages.
const (
	MinPipelineStages = 2
	MaxPipelineStages = 64
)

// Config represents the minish configuration.
type Config struct {
	Shell ShellConfig `yaml:"shell"`
	Log   LogConfig   `yaml:"log"`
}

// ShellConfig holds interactive shell settings.
type ShellConfig struct {
	MaxPipelineStages int    `yaml:"max_pipeline_stages" validate:"min=2,max=64"` // Widest pipeline accepted
	Prompt            string `yaml:"prompt"`                                      // Prompt printed before each line
	ColorPrompt       bool   `yaml:"color_prompt"`                                // Style the prompt when the terminal supports it
	AnnounceJobs      bool   `yaml:"announce_jobs"`                               // Print "[N] pid" and "[N] Done" lines
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"` // debug, info, warn, error
	File  string `yaml:"file"`                                         // Log file path (overrides default)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			MaxPipelineStages: 10,
			Prompt:            "minish> ",
			ColorPrompt:       true,
			AnnounceJobs:      true,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil // Return defaults if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default config file.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to a specific file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get returns the value of a configuration key.
// Keys are in the format "section.key" (e.g., "shell.prompt").
func (c *Config) Get(key string) (string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "shell":
		return c.getShellField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets the value of a configuration key.
func (c *Config) Set(key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return errors.New("key must be in format 'section.key'")
	}

	section, field := parts[0], parts[1]

	switch section {
	case "shell":
		return c.setShellField(field, value)
	case "log":
		return c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) getShellField(field string) (string, error) {
	switch field {
	case "max_pipeline_stages":
		return strconv.Itoa(c.Shell.MaxPipelineStages), nil
	case "prompt":
		return c.Shell.Prompt, nil
	case "color_prompt":
		return strconv.FormatBool(c.Shell.ColorPrompt), nil
	case "announce_jobs":
		return strconv.FormatBool(c.Shell.AnnounceJobs), nil
	default:
		return "", fmt.Errorf("unknown field: shell.%s", field)
	}
}

func (c *Config) setShellField(field, value string) error {
	switch field {
	case "max_pipeline_stages":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_pipeline_stages: %w", err)
		}
		if !isValidStageLimit(v) {
			return fmt.Errorf("invalid max_pipeline_stages: must be between %d and %d", MinPipelineStages, MaxPipelineStages)
		}
		c.Shell.MaxPipelineStages = v
	case "prompt":
		c.Shell.Prompt = value
	case "color_prompt":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for color_prompt: %w", err)
		}
		c.Shell.ColorPrompt = b
	case "announce_jobs":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for announce_jobs: %w", err)
		}
		c.Shell.AnnounceJobs = b
	default:
		return fmt.Errorf("unknown field: shell.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the shared validator, reporting fields by their
// yaml names so messages match the keys users type.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// formatFieldError renders a validation failure as "section.key ..." using
// the yaml namespace with the root struct name trimmed.
func formatFieldError(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}

	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("%s must be >= %s (got: %v)", key, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be <= %s (got: %v)", key, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s (got: %v)", key, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidStageLimit(n int) bool {
	return n >= MinPipelineStages && n <= MaxPipelineStages
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Malformed values are ignored.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("MINISH_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("MINISH_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
	if v := os.Getenv("MINISH_MAX_PIPELINE_STAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && isValidStageLimit(n) {
			c.Shell.MaxPipelineStages = n
		}
	}
	if v, ok := os.LookupEnv("MINISH_PROMPT"); ok {
		c.Shell.Prompt = v
	}
}

// ListKeys returns all available configuration keys.
func ListKeys() []string {
	return []string{
		"shell.max_pipeline_stages",
		"shell.prompt",
		"shell.color_prompt",
		"shell.announce_jobs",
		"log.level",
		"log.file",
	}
}
