package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/ScreenGrabber/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List upload providers",
	Long: `List the image hosts ScreenGrabber can upload to.

Use the ID with 'screengrabber config set upload-provider ID'.`,
	Example: `  # List providers in table format (default)
  screengrabber providers

  # List providers in JSON format
  screengrabber providers --format json`,
	RunE: runProviders,
}

var providersFormat string

func init() {
	rootCmd.AddCommand(providersCmd)

	providersCmd.Flags().StringVarP(&providersFormat, "format", "f", "table", "output format (table or json)")
}

func runProviders(cmd *cobra.Command, args []string) error {
	switch providersFormat {
	case "json":
		return writeJSONOut(os.Stdout, provider.List())
	case "table":
		return printProvidersTable(os.Stdout, provider.List())
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", providersFormat)
	}
}

func printProvidersTable(out io.Writer, metas []provider.Meta) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tTITLE\tURL\tDESCRIPTION")
	fmt.Fprintln(w, "--\t-----\t---\t-----------")

	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Title, m.URL, m.Description)
	}
	return nil
}
