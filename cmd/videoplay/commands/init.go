package commands

import (
	"fmt"
	"os"

	"github.com/egnor/video-play/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample video-play configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/videoplay/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  videoplay init

  # Initialize with custom path
  videoplay init --config /etc/videoplay/config.yaml

  # Force overwrite existing config
  videoplay init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Inspect a file with: videoplay probe <media>")
	fmt.Println("  3. Play a file with: videoplay play <media>")
	fmt.Printf("  4. Or specify custom config: videoplay play --config %s <media>\n", configPath)

	return nil
}
