package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/chatline/internal/chatline/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, webhook_url, voice_url, voice_api_key, voice_assistant_id, panel_dirs, listen_addr, log_level, log_format, request_timeout, voice_failure_notice"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  chatline config                   # Show all configuration
  chatline config webhook_url       # Show only the webhook URL
  chatline config voice_api_key     # Show only the voice API key (masked)
  chatline config panel_dirs        # Show only panel directories`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Load configuration from file
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		// If a field is specified, show only that field
		if len(args) > 0 {
			field := strings.ToLower(args[0])
			switch field {
			case "configfile":
				fmt.Println(viper.ConfigFileUsed())
			case "webhook_url", "webhookurl":
				fmt.Println(cfg.WebhookURL)
			case "voice_url", "voiceurl":
				fmt.Println(cfg.VoiceURL)
			case "voice_api_key", "voiceapikey":
				fmt.Println(config.MaskToken(cfg.VoiceAPIKey))
			case "voice_assistant_id", "voiceassistantid":
				fmt.Println(config.MaskToken(cfg.VoiceAssistantID))
			case "panel_dirs", "paneldirs":
				// PanelDirs are already absolute paths
				fmt.Println(strings.Join(cfg.PanelDirs, ","))
			case "listen_addr", "listenaddr":
				fmt.Println(cfg.ListenAddr)
			case "log_level", "loglevel":
				fmt.Println(cfg.LogLevel)
			case "log_format", "logformat":
				fmt.Println(cfg.LogFormat)
			case "request_timeout", "requesttimeout":
				fmt.Println(cfg.RequestTimeout)
			case "voice_failure_notice", "voicefailurenotice":
				fmt.Println(cfg.VoiceFailureNotice)
			default:
				fmt.Fprintf(os.Stderr, "Unknown field: %s\n", args[0])
				fmt.Fprintf(os.Stderr, "Available fields: %s\n", configFields)
				os.Exit(1)
			}
			return
		}

		// Display all configuration values
		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("WebhookURL: %s\n", cfg.WebhookURL)
		fmt.Printf("VoiceURL: %s\n", cfg.VoiceURL)
		fmt.Printf("VoiceAPIKey: %s\n", config.MaskToken(cfg.VoiceAPIKey))
		fmt.Printf("VoiceAssistantID: %s\n", config.MaskToken(cfg.VoiceAssistantID))
		fmt.Printf("PanelDirectories: %s\n", strings.Join(cfg.PanelDirs, ","))
		fmt.Printf("ListenAddr: %s\n", cfg.ListenAddr)
		fmt.Printf("LogLevel: %s\n", cfg.LogLevel)
		fmt.Printf("LogFormat: %s\n", cfg.LogFormat)
		fmt.Printf("RequestTimeout: %s\n", cfg.RequestTimeout)
		fmt.Printf("VoiceFailureNotice: %v\n", cfg.VoiceFailureNotice)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
