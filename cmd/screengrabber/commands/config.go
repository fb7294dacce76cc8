package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ScreenGrabber configuration",
	Long:  `View and manage ScreenGrabber configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current ScreenGrabber configuration.`,
	Example: `  # Show configuration as YAML (default)
  screengrabber config show

  # Show configuration as JSON
  screengrabber config show --format json

  # Show every setting by key name
  screengrabber config show --format table`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value.

Keys: notifications, clipboard, flash, shadows, template (filename-template),
upload-provider, delete-after-upload, log-level, api-port, key-desktop,
key-monitor, key-window, key-selection.`,
	Example: `  # Copy the image itself to the clipboard
  screengrabber config set clipboard image

  # Upload every capture to lutim and delete the local copy afterwards
  screengrabber config set upload-provider lutim
  screengrabber config set delete-after-upload true

  # Save under Pictures with the size in the name
  screengrabber config set template '$pictures/Screenshot {width}x{height} %Y-%m-%d.png'`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Long:  `Get a specific configuration value.`,
	Example: `  # Get the clipboard mode
  screengrabber config get clipboard

  # Get the filename template
  screengrabber config get template`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var formatFlag string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml, json or table)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	return showConfig(os.Stdout, configMgr.Get(), formatFlag)
}

func showConfig(out io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	case "table":
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintln(w, "---\t-----")
		values := cfg.Flatten()
		for _, key := range config.Keys() {
			fmt.Fprintf(w, "%s\t%v\n", key, values[key])
		}
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml', 'json' or 'table')", format)
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	if err := provider.CheckSetting(key, value); err != nil {
		return err
	}
	if err := configMgr.Set(key, value); err != nil {
		return err
	}

	fmt.Printf("✅ Configuration updated: %s = %s\n", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	v, err := configMgr.Value(args[0])
	if err != nil {
		return err
	}

	fmt.Println(v)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(configMgr.GetConfigPath())
	return nil
}
