package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenGrabber/internal/grabber"
	"github.com/bryanchriswhite/ScreenGrabber/internal/window"
)

var listCmd = &cobra.Command{
	Use:   "list <monitors|windows>",
	Short: "List monitors or windows",
	Long: `List the capture targets ScreenGrabber sees.

monitors shows every active output. windows shows managed top-level windows
bottom of the stack first, marking the ones window capture can select.`,
	Example: `  # List monitors in table format (default)
  screengrabber list monitors

  # List windows in JSON format
  screengrabber list windows --format json

  # List only windows that window capture offers
  screengrabber list windows --selectable`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"monitors", "windows"},
	RunE:      runList,
}

var (
	listFormat     string
	listSelectable bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVarP(&listSelectable, "selectable", "s", false, "show only windows offered by window capture")
}

func runList(cmd *cobra.Command, args []string) error {
	if listFormat != "table" && listFormat != "json" {
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}

	backend, err := window.NewX11Backend()
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer backend.Close()

	switch args[0] {
	case "monitors":
		monitors, err := backend.Monitors()
		if err != nil {
			return fmt.Errorf("failed to get monitors: %w", err)
		}
		if listFormat == "json" {
			return writeJSONOut(os.Stdout, monitors)
		}
		return printMonitorsTable(os.Stdout, monitors)
	case "windows":
		windows, err := backend.Windows()
		if err != nil {
			return fmt.Errorf("failed to get windows: %w", err)
		}
		if listSelectable {
			windows = selectableWindows(windows)
		}
		if listFormat == "json" {
			return writeJSONOut(os.Stdout, windows)
		}
		return printWindowsTable(os.Stdout, windows)
	default:
		return fmt.Errorf("unknown list target: %s (use 'monitors' or 'windows')", args[0])
	}
}

func writeJSONOut(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// selectableWindows keeps the windows whose frame window capture offers
func selectableWindows(windows []window.Window) []window.Window {
	out := make([]window.Window, 0, len(windows))
	for _, w := range windows {
		if len(grabber.WindowHighlights([]window.Window{w}, false)) == 1 {
			out = append(out, w)
		}
	}
	return out
}

func printMonitorsTable(out io.Writer, monitors []window.Monitor) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tPRIMARY\tGEOMETRY")
	fmt.Fprintln(w, "----\t-------\t--------")

	for _, m := range monitors {
		primary := "No"
		if m.Primary {
			primary = "Yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, primary, m.Rect)
	}
	return nil
}

func printWindowsTable(out io.Writer, windows []window.Window) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tTYPE\tLAYER\tVISIBLE\tGEOMETRY\tCLASS\tTITLE")
	fmt.Fprintln(w, "--\t----\t-----\t-------\t--------\t-----\t-----")

	for _, win := range windows {
		visible := "No"
		if win.Visible {
			visible = "Yes"
		}
		fmt.Fprintf(w, "0x%x\t%s\t%d\t%s\t%s\t%s\t%s\n",
			win.ID, win.Type, win.Layer, visible, win.Frame, win.Class, win.Title)
	}
	return nil
}
