package cmd

import (
	"fmt"
	"io"

	"github.com/longkey1/chatline/internal/chatline/config"
	"github.com/longkey1/chatline/internal/chatline/conversation"
	"github.com/longkey1/chatline/internal/observability"
	"github.com/longkey1/chatline/internal/voice"
	"github.com/longkey1/chatline/internal/webhook"
	"github.com/rs/zerolog"
)

// loadConfig loads and validates the configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg. --verbose forces debug.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	return observability.New(w, level, cfg.LogFormat)
}

// newCoordinator creates the coordinator and the channels it drives
func newCoordinator(cfg *config.Config, logger zerolog.Logger) *conversation.Coordinator {
	exchanger := webhook.NewClient(cfg.WebhookURL)

	opts := []conversation.Option{
		conversation.WithLogger(logger.With().Str("component", "conversation").Logger()),
		conversation.WithVoiceFailureNotice(cfg.VoiceFailureNotice),
	}
	if cfg.VoiceEnabled() {
		adapter := voice.NewAdapter(voice.Config{
			URL:         cfg.VoiceURL,
			APIKey:      cfg.VoiceAPIKey,
			AssistantID: cfg.VoiceAssistantID,
		}, voice.WithLogger(logger.With().Str("component", "voice").Logger()))
		opts = append(opts, conversation.WithVoice(adapter))
	}

	logger.Debug().
		Str("webhook_url", cfg.WebhookURL).
		Bool("voice", cfg.VoiceEnabled()).
		Msg("conversation ready")
	return conversation.NewCoordinator(exchanger, opts...)
}
