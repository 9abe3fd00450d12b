// Command streamres serves stream-aggregating resources over HTTP and
// watches them from the terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/vango-dev/streamres/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌┬┐┬─┐┌─┐┌─┐┌┬┐┬─┐┌─┐┌─┐
  └─┐ │ ├┬┘├┤ ├─┤│││├┬┘├┤ └─┐
  └─┘ ┴ ┴└─└─┘┴ ┴┴ ┴┴└─└─┘└─┘
`

// out is the terminal all command output goes to.
var out = termenv.NewOutput(os.Stdout)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "streamres",
		Short: "Stream-aggregating resources over HTTP",
		Long: `streamres turns request-driven response streams into observable
resources with a status, an aggregated value and an error.

  • serve feeds backed by Redis pub/sub, WebSockets, S3 listings or
    timed sequences
  • push requests and trigger reloads over HTTP
  • stream snapshots to clients over WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		watchCmd(),
		versionCmd(),
	)
	return rootCmd
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Fprint(out, paint(banner, "6"))
}

// paint colours text when the terminal supports it.
func paint(text, color string) string {
	if out.Profile == termenv.Ascii {
		return text
	}
	return out.String(text).Foreground(out.Color(color)).String()
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", paint("✓", "2"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Fprintf(out, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Fprintf(out, "%s %s\n", paint("⚠", "3"), fmt.Sprintf(format, args...))
}
