package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenGrabber/internal/api"
	"github.com/bryanchriswhite/ScreenGrabber/internal/keybind"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run ScreenGrabber in the system tray",
	Long: `Run ScreenGrabber as a resident tray indicator.

Captures are started from the tray menu, the global shortcuts (key-* settings)
or, when api-port is set, the local HTTP API.`,
	Example: `  # Start with the tray icon and shortcuts
  screengrabber serve

  # Also expose the local API on port 8099
  screengrabber serve --api-port 8099

  # Run without a tray icon (shortcuts and API only)
  screengrabber serve --no-tray

  # Start with debug logging
  screengrabber serve --log-level debug`,
	RunE: runServe,
}

var serveNoTray bool

// newGrab creates global key grabs for serve, nil disables shortcuts
var newGrab keybind.GrabFunc

// SetGrabFunc sets how serve grabs the global shortcuts
func SetGrabFunc(fn keybind.GrabFunc) {
	newGrab = fn
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveNoTray, "no-tray", false, "do not show a tray icon")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info().Str("path", configMgr.GetConfigPath()).Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, configMgr, nil)
	if err != nil {
		return err
	}
	defer a.close()
	a.run(ctx)

	// Global shortcuts
	if newGrab != nil {
		registrar := keybind.NewRegistrar(newGrab)
		defer registrar.UnregisterAll()
		a.indicator.BindKeys(registrar)
		changes := configMgr.Subscribe()
		defer configMgr.Unsubscribe(changes)
		go a.indicator.WatchKeys(registrar, changes)
	} else {
		log.Warn().Msg("No key grabber configured, global shortcuts disabled")
	}

	// Local API
	var server *api.Server
	if port := apiPort(configMgr); port > 0 {
		server = api.NewServer(configMgr, a.windowMgr, a.indicator, a.loop.Call)
		a.pipeline.Subscribe(server.Publish)
		go func() {
			if err := server.Start(port); err != nil {
				log.Error().Err(err).Int("port", port).Msg("API server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("✅ ScreenGrabber is running!")
	if server != nil {
		fmt.Printf("   - API: http://localhost:%d/api\n", apiPort(configMgr))
	}
	fmt.Println("   - Press Ctrl+C to stop")

	if serveNoTray {
		select {
		case <-sigChan:
		case <-a.loop.Done():
		}
	} else {
		t := tray.New(a.indicator, configMgr, cancel)
		go func() {
			select {
			case <-sigChan:
				t.Quit()
			case <-ctx.Done():
			}
		}()
		// blocks on the main goroutine until Quit
		t.Run()
	}

	log.Info().Msg("Shutting down gracefully...")
	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("API server shutdown failed")
		}
	}
	return nil
}
