package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "screengrabber",
		Short: "ScreenGrabber - Screenshot tool for X11 desktops",
		Long: `ScreenGrabber captures the whole desktop, a monitor, a window or a
dragged rectangle and runs the result through a configurable chain:
flash, save under a filename template, clipboard, notification and upload.

Features:
  • Pick monitors and windows by hovering, or drag a free selection
  • Filename templates with strftime fields and user directories
  • Copy the file URI or the image to the clipboard
  • Upload to image hosts (imgur, lutim, picpaste, ...)
  • Tray menu and global shortcuts
  • Local REST/WebSocket API for integration`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/screengrabber/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("api-port", 0, "serve the local API on this port (0 uses the config value)")
	rootCmd.PersistentFlags().Bool("pretty", true, "human readable log output")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("api_port", rootCmd.PersistentFlags().Lookup("api-port"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))

	viper.SetEnvPrefix("screengrabber")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// initLogger applies --log-level, falling back to the config file value
func initLogger() {
	level := viper.GetString("log_level")
	if level == "" {
		if m, err := config.NewManager(GetConfigFile()); err == nil {
			level = m.Get().LogLevel
		}
	}
	logger.Init(level, viper.GetBool("pretty"))
}

// loadConfig opens the settings file
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return configMgr, nil
}

// apiPort is --api-port when given, else the configured port
func apiPort(configMgr *config.Manager) int {
	if port := viper.GetInt("api_port"); port > 0 {
		return port
	}
	return configMgr.Get().APIPort
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
