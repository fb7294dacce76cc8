package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/indicator"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/pipeline"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
)

var captureCmd = &cobra.Command{
	Use:   "capture <desktop|monitor|window|selection>",
	Short: "Take one screenshot and exit",
	Long: `Run a single capture session, process the result and exit.

desktop captures everything at once. monitor and window highlight the target
under the pointer; click to capture. selection lets you drag a rectangle.
Right click or Escape cancels.`,
	Example: `  # Pick a window
  screengrabber capture window

  # Whole desktop after a 3 second delay
  screengrabber capture desktop --delay 3s

  # Drag a rectangle and upload it to imgur
  screengrabber capture selection --provider imgur

  # Save to a specific template for this run only
  screengrabber capture monitor --template '$pictures/{width}x{height}.png'`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"desktop", "monitor", "window", "selection"},
	RunE:      runCapture,
}

var (
	captureDelay     time.Duration
	captureProvider  string
	captureTemplate  string
	captureClipboard string
	captureTimeout   time.Duration
)

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().DurationVarP(&captureDelay, "delay", "d", 0, "wait before capturing")
	captureCmd.Flags().StringVarP(&captureProvider, "provider", "p", "", "upload provider for this run (see 'screengrabber providers')")
	captureCmd.Flags().StringVarP(&captureTemplate, "template", "t", "", "filename template for this run")
	captureCmd.Flags().StringVarP(&captureClipboard, "clipboard", "c", "", "clipboard mode for this run (none, uri or image)")
	captureCmd.Flags().DurationVar(&captureTimeout, "upload-timeout", 90*time.Second, "how long to wait for the upload")
}

// overrides returns the flag values that replace settings for this run
func captureOverrides(cmd *cobra.Command) map[string]any {
	out := make(map[string]any)
	if cmd.Flags().Changed("provider") {
		out[config.KeyUploadProvider] = captureProvider
	}
	if cmd.Flags().Changed("template") {
		out[config.KeyTemplate] = captureTemplate
	}
	if cmd.Flags().Changed("clipboard") {
		out[config.KeyClipboard] = captureClipboard
	}
	return out
}

// withOverrides layers overrides over the live settings
func withOverrides(base func() config.Snapshot, overrides map[string]any) func() config.Settings {
	return func() config.Settings {
		snap := base()
		if len(overrides) == 0 {
			return snap
		}
		merged := make(config.Snapshot, len(snap)+len(overrides))
		for k, v := range snap {
			merged[k] = v
		}
		for k, v := range overrides {
			merged[k] = v
		}
		return merged
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("capture")

	strategy, err := grabber.ParseStrategy(args[0])
	if err != nil {
		return err
	}
	if captureProvider != "" {
		if _, ok := provider.Lookup(captureProvider); !ok {
			return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, captureProvider)
		}
	}

	switch captureClipboard {
	case "", config.ClipboardNone, config.ClipboardURI, config.ClipboardImage:
	default:
		return fmt.Errorf("%w: clipboard=%q", config.ErrInvalidValue, captureClipboard)
	}

	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	settings := withOverrides(configMgr.Snapshot, captureOverrides(cmd))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, configMgr, settings)
	if err != nil {
		return err
	}
	defer a.close()

	// an upload is pending only when a known, non-local provider is configured
	waitUpload := provider.Uploads(settings().GetString(config.KeyUploadProvider))

	finished := make(chan indicator.Outcome, 1)
	uploaded := make(chan pipeline.Event, 1)
	a.indicator.OnFinished(func(o indicator.Outcome) { finished <- o })
	a.pipeline.Subscribe(func(ev pipeline.Event) {
		if ev.Kind == pipeline.EventUploaded || ev.Kind == pipeline.EventFailed {
			select {
			case uploaded <- ev:
			default:
			}
		}
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.run(ctx)

	if captureDelay > 0 {
		log.Info().Dur("delay", captureDelay).Msg("Waiting before capture")
		select {
		case <-time.After(captureDelay):
		case <-sigChan:
			return nil
		}
	}

	var startErr error
	if err := a.loop.Call(ctx, func() { startErr = a.indicator.Start(strategy) }); err != nil {
		return err
	}
	if startErr != nil {
		return startErr
	}

	var outcome indicator.Outcome
	select {
	case outcome = <-finished:
	case <-sigChan:
		return nil
	}

	if outcome.Cancelled {
		fmt.Println("Capture cancelled")
		return nil
	}
	if outcome.Path == "" {
		return fmt.Errorf("capture failed")
	}
	fmt.Printf("✅ Saved: %s\n", outcome.Path)

	if !waitUpload {
		return nil
	}

	select {
	case ev := <-uploaded:
		if ev.Upload == nil || !ev.Upload.Success {
			msg := "unknown error"
			if ev.Upload != nil {
				msg = ev.Upload.Provider.Title + ": " + ev.Upload.Data.Error
			}
			return fmt.Errorf("upload failed: %s", msg)
		}
		fmt.Printf("✅ Uploaded: %s\n", ev.Upload.Link())
		if ev.Upload.Data.Delete != "" {
			fmt.Printf("   Delete: %s\n", ev.Upload.Data.Delete)
		}
	case <-time.After(captureTimeout):
		return fmt.Errorf("upload did not finish within %s", captureTimeout)
	case <-sigChan:
	}
	return nil
}
