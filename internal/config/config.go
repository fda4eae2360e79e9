// Package config loads oblig's settings from $OBLIG_HOME/config.yaml and
// OBLIG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig selects the console log output.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	// File receives a JSON audit log of every run when set.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// CanvasConfig configures the LMS client.
type CanvasConfig struct {
	BaseURL  string `mapstructure:"base_url"  yaml:"base_url"        validate:"omitempty,url"`
	Token    string `mapstructure:"token"     yaml:"token,omitempty"`
	PageSize int    `mapstructure:"page_size" yaml:"page_size"       validate:"gte=1,lte=1000"`
	RetryMax int    `mapstructure:"retry_max" yaml:"retry_max"       validate:"gte=0,lte=10"`
}

// GitHubConfig configures cloning and issue publishing.
type GitHubConfig struct {
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

// LLMConfig configures AI-drafted feedback.
type LLMConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model  string `mapstructure:"model"   yaml:"model"`
}

// Config holds all oblig settings.
type Config struct {
	// Home is the directory holding config.yaml; it is not itself persisted.
	Home        string       `mapstructure:"-"            yaml:"-"`
	DBPath      string       `mapstructure:"db_path"      yaml:"db_path"                validate:"required"`
	GradingPath string       `mapstructure:"grading_path" yaml:"grading_path,omitempty"`
	Editor      string       `mapstructure:"editor"       yaml:"editor"`
	Python      string       `mapstructure:"python"       yaml:"python"`
	Locale      string       `mapstructure:"locale"       yaml:"locale"                 validate:"oneof=no en de"`
	Timezone    string       `mapstructure:"timezone"     yaml:"timezone"               validate:"omitempty,timezone"`
	Log         LogConfig    `mapstructure:"log"          yaml:"log"`
	Canvas      CanvasConfig `mapstructure:"canvas"       yaml:"canvas"`
	GitHub      GitHubConfig `mapstructure:"github"       yaml:"github"`
	LLM         LLMConfig    `mapstructure:"llm"          yaml:"llm"`
}

// Keys.
const (
	DBPath         = "db_path"
	GradingPath    = "grading_path"
	Editor         = "editor"
	Python         = "python"
	Locale         = "locale"
	Timezone       = "timezone"
	LogLevel       = "log.level"
	LogFormat      = "log.format"
	LogFile        = "log.file"
	CanvasBaseURL  = "canvas.base_url"
	CanvasToken    = "canvas.token"
	CanvasPageSize = "canvas.page_size"
	CanvasRetryMax = "canvas.retry_max"
	GitHubToken    = "github.token"
	LLMAPIKey      = "llm.api_key"
	LLMModel       = "llm.model"

	EnvPrefix = "oblig"
	FileName  = "config"
)

// secretKeys are masked by Redacted.
var secretKeys = []string{CanvasToken, GitHubToken, LLMAPIKey}

// HomeDir returns $OBLIG_HOME, or ~/.oblig when unset.
func HomeDir() (string, error) {
	if h := os.Getenv("OBLIG_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".oblig"), nil
}

// Path returns the config file location inside home.
func Path(home string) string {
	return filepath.Join(home, FileName+".yaml")
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault(DBPath, filepath.Join(home, "oblig.db"))
	v.SetDefault(GradingPath, "")
	v.SetDefault(Editor, "vi")
	v.SetDefault(Python, "python3")
	v.SetDefault(Locale, "no")
	v.SetDefault(Timezone, "Europe/Oslo")
	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogFormat, "text")
	v.SetDefault(LogFile, "")
	v.SetDefault(CanvasBaseURL, "")
	v.SetDefault(CanvasToken, "")
	v.SetDefault(CanvasPageSize, 200)
	v.SetDefault(CanvasRetryMax, 3)
	v.SetDefault(GitHubToken, "")
	v.SetDefault(LLMAPIKey, "")
	v.SetDefault(LLMModel, "gemini-2.5-pro")
}

// Default returns the configuration used when nothing is set.
func Default(home string) *Config {
	v := viper.New()
	setDefaults(v, home)
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		panic(err)
	}
	c.Home = home
	return c
}

// Load reads home's config file, applies OBLIG_* environment overrides and
// validates the result. A missing config file is not an error.
func Load(home string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(home)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets are usually supplied through the environment; bind them
	// explicitly so they reach the nested structs.
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Home = home
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes c to home's config file, readable by the owner only.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.Home, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", c.Home, err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(Path(c.Home), data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

type field struct {
	get func(*Config) string
	set func(*Config, string) error
}

func str(p func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error { *p(c) = v; return nil },
	}
}

func integer(p func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("not a number: %q", v)
			}
			*p(c) = n
			return nil
		},
	}
}

var fields = map[string]field{
	DBPath:         str(func(c *Config) *string { return &c.DBPath }),
	GradingPath:    str(func(c *Config) *string { return &c.GradingPath }),
	Editor:         str(func(c *Config) *string { return &c.Editor }),
	Python:         str(func(c *Config) *string { return &c.Python }),
	Locale:         str(func(c *Config) *string { return &c.Locale }),
	Timezone:       str(func(c *Config) *string { return &c.Timezone }),
	LogLevel:       str(func(c *Config) *string { return &c.Log.Level }),
	LogFormat:      str(func(c *Config) *string { return &c.Log.Format }),
	LogFile:        str(func(c *Config) *string { return &c.Log.File }),
	CanvasBaseURL:  str(func(c *Config) *string { return &c.Canvas.BaseURL }),
	CanvasToken:    str(func(c *Config) *string { return &c.Canvas.Token }),
	CanvasPageSize: integer(func(c *Config) *int { return &c.Canvas.PageSize }),
	CanvasRetryMax: integer(func(c *Config) *int { return &c.Canvas.RetryMax }),
	GitHubToken:    str(func(c *Config) *string { return &c.GitHub.Token }),
	LLMAPIKey:      str(func(c *Config) *string { return &c.LLM.APIKey }),
	LLMModel:       str(func(c *Config) *string { return &c.LLM.Model }),
}

// Keys returns every settable key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value of key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q", key)
	}
	return f.get(c), nil
}

// Set assigns value to key and validates the result. c is left unchanged
// when the new value is rejected.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Redacted returns a copy of c with secrets masked, for display.
func (c *Config) Redacted() *Config {
	r := *c
	for _, key := range secretKeys {
		if v := fields[key].get(&r); v != "" {
			fields[key].set(&r, mask(v))
		}
	}
	return &r
}

func mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + strings.Repeat("*", 8)
}
