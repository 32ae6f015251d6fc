package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds the configuration for chatline
type Config struct {
	WebhookURL         string   `toml:"webhook_url" mapstructure:"webhook_url"`
	VoiceURL           string   `toml:"voice_url" mapstructure:"voice_url"` // empty disables voice
	VoiceAPIKey        string   `toml:"voice_api_key" mapstructure:"voice_api_key"`
	VoiceAssistantID   string   `toml:"voice_assistant_id" mapstructure:"voice_assistant_id"`
	PanelDirs          []string `toml:"panel_dirs" mapstructure:"panel_dirs"` // later directories take precedence
	ListenAddr         string   `toml:"listen_addr" mapstructure:"listen_addr"`
	LogLevel           string   `toml:"log_level" mapstructure:"log_level"`
	LogFormat          string   `toml:"log_format" mapstructure:"log_format"`           // "console" or "json"
	RequestTimeout     string   `toml:"request_timeout" mapstructure:"request_timeout"` // duration, "0" = none
	VoiceFailureNotice bool     `toml:"voice_failure_notice" mapstructure:"voice_failure_notice"`
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(panelDir string) *Config {
	return &Config{
		WebhookURL:         "http://localhost:5678/webhook/chat",
		VoiceURL:           "",
		VoiceAPIKey:        "$CHATLINE_VOICE_API_KEY", // Default to env var
		VoiceAssistantID:   "$CHATLINE_VOICE_ASSISTANT_ID",
		PanelDirs:          []string{panelDir},
		ListenAddr:         "127.0.0.1:8080",
		LogLevel:           "info",
		LogFormat:          "console",
		RequestTimeout:     "30s",
		VoiceFailureNotice: false,
	}
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	// Expand $VAR references in credentials and endpoints
	for _, field := range []*string{&config.WebhookURL, &config.VoiceURL, &config.VoiceAPIKey, &config.VoiceAssistantID} {
		expanded, err := expandEnvVar(*field)
		if err != nil {
			return nil, err
		}
		*field = expanded
	}

	// Convert panel directories to absolute paths
	for i, panelDir := range config.PanelDirs {
		absPath, err := ResolvePath(panelDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving panel directory path '%s': %v", panelDir, err)
		}
		config.PanelDirs[i] = absPath
	}

	return config, nil
}

// Validate checks that the configuration can be used to run a conversation
func (c *Config) Validate() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook_url is not configured. Set it in config file (webhook_url) or environment variable (CHATLINE_WEBHOOK_URL)")
	}
	if err := checkURL("webhook_url", c.WebhookURL, "http", "https"); err != nil {
		return err
	}
	if c.VoiceURL != "" {
		if err := checkURL("voice_url", c.VoiceURL, "ws", "wss"); err != nil {
			return err
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log_format: %s (use console or json)", c.LogFormat)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// VoiceEnabled reports whether a voice endpoint is configured
func (c *Config) VoiceEnabled() bool {
	return c.VoiceURL != ""
}

// Level returns the parsed log level
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unsupported log_level: %s", c.LogLevel)
	}
	return level, nil
}

// Timeout returns the request timeout; zero means none
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" || c.RequestTimeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid request_timeout '%s': %v", c.RequestTimeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid request_timeout '%s': must not be negative", c.RequestTimeout)
	}
	return d, nil
}

func checkURL(key, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %v", key, raw, err)
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("invalid %s '%s': expected %s URL", key, raw, strings.Join(schemes, " or "))
}
