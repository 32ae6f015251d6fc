/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/longkey1/chatline/internal/chatline/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatline",
	Short: "A conversational client mixing typed chat and live voice calls",
	Long: `chatline talks to a chat webhook and, optionally, a real-time voice service.
Typed messages and voice transcripts appear in one time-ordered conversation.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/chatline/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("CHATLINE")
	viper.AutomaticEnv()

	// Determine config directory for user config
	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "chatline")

	// Note: Later directories in the array take precedence over earlier ones
	defaultPanelDirs := []string{
		"/usr/share/chatline/panels",
		"/usr/local/share/chatline/panels",
		filepath.Join(userConfigDir, "panels"),
	}
	defaultConfig := config.NewDefaultConfig(filepath.Join(userConfigDir, "panels"))

	viper.SetDefault("webhook_url", defaultConfig.WebhookURL)
	viper.SetDefault("voice_url", defaultConfig.VoiceURL)
	viper.SetDefault("voice_api_key", defaultConfig.VoiceAPIKey)
	viper.SetDefault("voice_assistant_id", defaultConfig.VoiceAssistantID)
	viper.SetDefault("panel_dirs", defaultPanelDirs)
	viper.SetDefault("listen_addr", defaultConfig.ListenAddr)
	viper.SetDefault("log_level", defaultConfig.LogLevel)
	viper.SetDefault("log_format", defaultConfig.LogFormat)
	viper.SetDefault("request_timeout", defaultConfig.RequestTimeout)
	viper.SetDefault("voice_failure_notice", defaultConfig.VoiceFailureNotice)

	// Bind environment variables
	viper.BindEnv("webhook_url", "CHATLINE_WEBHOOK_URL")
	viper.BindEnv("voice_url", "CHATLINE_VOICE_URL")
	viper.BindEnv("voice_api_key", "CHATLINE_VOICE_API_KEY")
	viper.BindEnv("voice_assistant_id", "CHATLINE_VOICE_ASSISTANT_ID")
	viper.BindEnv("listen_addr", "CHATLINE_LISTEN_ADDR")
	viper.BindEnv("log_level", "CHATLINE_LOG_LEVEL")
	viper.BindEnv("request_timeout", "CHATLINE_REQUEST_TIMEOUT")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		systemConfigPaths := []string{
			"/etc/chatline",
			"/usr/local/etc/chatline",
		}

		systemConfigLoaded := false
		for _, path := range systemConfigPaths {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(userConfigDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else {
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
				}
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "Environment variables:")
		fmt.Fprintln(os.Stderr, "  CHATLINE_WEBHOOK_URL:", viper.GetString("webhook_url"))
		fmt.Fprintln(os.Stderr, "  CHATLINE_VOICE_URL:", viper.GetString("voice_url"))
		fmt.Fprintln(os.Stderr, "  CHATLINE_PANEL_DIRS:", viper.GetStringSlice("panel_dirs"))
		fmt.Fprintln(os.Stderr, "  CHATLINE_LOG_LEVEL:", viper.GetString("log_level"))
	}
}
