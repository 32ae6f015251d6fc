package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/chatline/internal/chatline/config"
	"github.com/longkey1/chatline/internal/chatline/panel"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/chatline/config.toml by default.
You can specify a different location using the --config option.

The built-in welcome, history and faq panels are written to the panels
directory next to the config file so they can be edited.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %v", err)
		}

		// Set config file path
		configFile := filepath.Join(home, ".config", "chatline", "config.toml")
		if cfgFile != "" {
			configFile = cfgFile
		}

		// Create config directory
		configDir := filepath.Dir(configFile)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}

		// Check if config file already exists
		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("config file already exists at: %s", configFile)
		}

		panelsDir := filepath.Join(configDir, "panels")
		cfg := config.NewDefaultConfig(panelsDir)

		if err := writeTOML(configFile, cfg); err != nil {
			return fmt.Errorf("failed to write config file: %v", err)
		}

		if err := os.MkdirAll(panelsDir, 0755); err != nil {
			return fmt.Errorf("failed to create panels directory: %v", err)
		}
		for _, name := range panel.Names() {
			path := filepath.Join(panelsDir, name+".toml")
			if _, err := os.Stat(path); err == nil {
				continue
			}
			p, _ := panel.Builtin(name)
			if err := writeTOML(path, p); err != nil {
				return fmt.Errorf("failed to write panel '%s': %v", name, err)
			}
		}

		fmt.Printf("Configuration file created at: %s\n", configFile)
		fmt.Printf("Panels directory created at: %s\n", panelsDir)
		return nil
	},
}

func writeTOML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(v)
}

func init() {
	rootCmd.AddCommand(initCmd)
}
