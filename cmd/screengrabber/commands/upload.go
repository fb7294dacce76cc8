package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenGrabber/internal/clipboard"
	"github.com/bryanchriswhite/ScreenGrabber/internal/config"
	"github.com/bryanchriswhite/ScreenGrabber/internal/logger"
	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload an existing image",
	Long: `Upload an image file to an image host and print the link.

Without --provider the configured upload-provider is used.`,
	Example: `  # Upload with the configured provider
  screengrabber upload ~/Pictures/shot.png

  # Upload to lutim and copy the link
  screengrabber upload shot.png --provider lutim --copy`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var (
	uploadProvider string
	uploadCopy     bool
	uploadTimeout  time.Duration
)

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVarP(&uploadProvider, "provider", "p", "", "upload provider (see 'screengrabber providers')")
	uploadCmd.Flags().BoolVar(&uploadCopy, "copy", false, "copy the link to the clipboard")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 90*time.Second, "give up after this long")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	id := uploadProvider
	if !cmd.Flags().Changed("provider") {
		configMgr, err := loadConfig()
		if err != nil {
			return err
		}
		id = configMgr.Get().UploadProvider
	}
	if provider.IsNone(id) {
		return fmt.Errorf("no upload provider configured (use --provider or 'screengrabber config set upload-provider ID')")
	}

	p, err := provider.New(id)
	if err != nil {
		return err
	}

	fmt.Printf("Uploading %s (%s) to %s...\n", path, humanize.Bytes(uint64(info.Size())), p.Meta().Title)

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	done := make(chan provider.Event, 1)
	p.Upload(ctx, path, func(ev provider.Event) { done <- ev })

	var ev provider.Event
	select {
	case ev = <-done:
	case <-ctx.Done():
		p.Cancel()
		return fmt.Errorf("upload did not finish within %s", uploadTimeout)
	}

	if !ev.Success {
		return fmt.Errorf("upload failed (%d %s): %s", ev.Status.Code, ev.Status.Description, ev.Data.Error)
	}

	fmt.Printf("✅ Uploaded: %s\n", ev.Link())
	if ev.Data.Image != "" && ev.Data.Image != ev.Link() {
		fmt.Printf("   Image:  %s\n", ev.Data.Image)
	}
	if ev.Data.Delete != "" {
		fmt.Printf("   Delete: %s\n", ev.Data.Delete)
	}

	if uploadCopy {
		copier := clipboard.NewCopier(clipboard.NewSystem())
		if err := copier.CopyText(config.ClipboardURI, ev.Link()); err != nil {
			logger.WithComponent("upload").Warn().Err(err).Msg("Failed to copy link")
		}
	}
	return nil
}
