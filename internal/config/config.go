// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Partial() PartialConfig
	Network() NetworkConfig

	// Partial Setters
	SetPartialNoPortletEnv(bool)
	SetPartialPreserveFocus(bool)
	SetPartialNamespace(string)

	// Network Setters
	SetNetworkTimeout(d time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	PartialCfg PartialConfig `mapstructure:"partial" yaml:"partial"`
	NetworkCfg NetworkConfig `mapstructure:"network" yaml:"network"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Partial() PartialConfig { return c.PartialCfg }
func (c *Config) Network() NetworkConfig { return c.NetworkCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetPartialNoPortletEnv(b bool)  { c.PartialCfg.NoPortletEnv = b }
func (c *Config) SetPartialPreserveFocus(b bool) { c.PartialCfg.PreserveFocus = b }
func (c *Config) SetPartialNamespace(ns string)  { c.PartialCfg.Namespace = ns }

func (c *Config) SetNetworkTimeout(d time.Duration) { c.NetworkCfg.Timeout = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// PartialConfig controls how partial-response envelopes are applied to a document.
type PartialConfig struct {
	// Namespace prefixes every reserved identifier, e.g. "javax.faces" or "jakarta.faces".
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	// SeparatorChar joins naming-container segments inside client ids.
	SeparatorChar string `mapstructure:"separator_char" yaml:"separator_char"`
	// NoPortletEnv broadcasts new view tokens to every form of the document.
	NoPortletEnv bool `mapstructure:"no_portlet_env" yaml:"no_portlet_env"`
	// PreserveFocus keeps the focused element focused across outer replacements.
	PreserveFocus bool `mapstructure:"preserve_focus" yaml:"preserve_focus"`
	// UnreliableXMLParser skips the strict XML tiers during head and body replacement.
	UnreliableXMLParser bool `mapstructure:"unreliable_xml_parser" yaml:"unreliable_xml_parser"`
	// SanitizeFragments passes update and insert markup through an HTML sanitizer.
	SanitizeFragments bool          `mapstructure:"sanitize_fragments" yaml:"sanitize_fragments"`
	ScriptTimeout     time.Duration `mapstructure:"script_timeout" yaml:"script_timeout"`
}

// NetworkConfig holds settings for the partial request channel.
type NetworkConfig struct {
	Timeout   time.Duration     `mapstructure:"timeout" yaml:"timeout"`
	UserAgent string            `mapstructure:"user_agent" yaml:"user_agent"`
	Headers   map[string]string `mapstructure:"headers" yaml:"headers"`
}

// NewDefaultConfig creates a configuration populated with the defaults from SetDefaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "facespatch")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Partial response processing --
	v.SetDefault("partial.namespace", "javax.faces")
	v.SetDefault("partial.separator_char", ":")
	v.SetDefault("partial.no_portlet_env", false)
	v.SetDefault("partial.preserve_focus", true)
	v.SetDefault("partial.unreliable_xml_parser", false)
	v.SetDefault("partial.sanitize_fragments", false)
	v.SetDefault("partial.script_timeout", "5s")

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.user_agent", "facespatch/1.0")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	v.BindEnv("partial.namespace", "FACESPATCH_NAMESPACE")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.PartialCfg.Validate(); err != nil {
		return fmt.Errorf("partial configuration invalid: %w", err)
	}
	if c.NetworkCfg.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	return nil
}

// Validate checks the partial response settings.
func (p *PartialConfig) Validate() error {
	if strings.TrimSpace(p.Namespace) == "" {
		return fmt.Errorf("namespace is required")
	}
	if len(p.SeparatorChar) != 1 {
		return fmt.Errorf("separator_char must be exactly one character")
	}
	if p.ScriptTimeout <= 0 {
		return fmt.Errorf("script_timeout must be a positive duration")
	}
	return nil
}
