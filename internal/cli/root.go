package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath    string
	Args          string
	Cookie        string
	VaultURL      string
	VaultID       string
	VaultPassword string
	LogLevel      string
}

// NewRootCmd builds the wrnotes command tree. Command output goes to the
// command's configured writer; logs go to stderr.
func NewRootCmd() *cobra.Command {
	flags := &GlobalFlags{}
	root := &cobra.Command{
		Use:           "wrnotes",
		Short:         "Read WeRead highlights, notes and shelf data",
		Long:          "wrnotes reads annotations from a WeRead account and arranges them by chapter.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "TOML config file")
	pf.StringVar(&flags.Args, "args", "", "JSON launch payload, e.g. '{\"WEREAD_COOKIE\":\"...\"}'")
	pf.StringVar(&flags.Cookie, "cookie", "", "WeRead cookie string")
	pf.StringVar(&flags.VaultURL, "cc-url", "", "cookie vault URL")
	pf.StringVar(&flags.VaultID, "cc-id", "", "cookie vault id")
	pf.StringVar(&flags.VaultPassword, "cc-password", "", "cookie vault password")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(flags),
		newNotesCmd(flags),
		newShelfCmd(flags),
		newSearchCmd(flags),
		newReviewsCmd(flags),
		newImportedCmd(flags),
		newExportCmd(flags),
		newCookieCmd(flags),
	)
	return root
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
