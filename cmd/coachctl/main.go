// Command coachctl is a terminal client for a running SehaCoach server.
//
//	coachctl chat                 interactive session
//	coachctl chat "كم سعرة احتاج" one message
//	coachctl profile --yaml
//	coachctl reset
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BTreeMap/SehaCoach/internal/util"
)

const (
	// DefaultServerURL is used when neither --server nor $SEHACOACH_URL is set.
	DefaultServerURL = "http://localhost:8080"
	// DefaultUserID identifies the terminal user to the server.
	DefaultUserID = "cli"
	// DefaultRequestTimeout bounds one API call. Smart replies may take up to the dialogue timeout.
	DefaultRequestTimeout = 15 * time.Second
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	server  string
	user    string
	timeout time.Duration
	style   string
	width   int
	plain   bool
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Talk to the SehaCoach health coach from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initializeLogger(cmd.ErrOrStderr(), opts.verbose)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.server, "server", util.GetEnv("SEHACOACH_URL", DefaultServerURL), "SehaCoach server URL (overrides $SEHACOACH_URL)")
	pf.StringVarP(&opts.user, "user", "u", util.GetEnv("SEHACOACH_USER", DefaultUserID), "user ID to chat as (overrides $SEHACOACH_USER)")
	pf.DurationVar(&opts.timeout, "timeout", DefaultRequestTimeout, "timeout for each API request")
	pf.StringVar(&opts.style, "style", "auto", "glamour style: auto, dark, light, notty, ascii")
	pf.IntVar(&opts.width, "width", 80, "word wrap width")
	pf.BoolVar(&opts.plain, "plain", false, "print raw text without styling")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		newChatCmd(opts),
		newHistoryCmd(opts),
		newProfileCmd(opts),
		newResetCmd(opts),
	)
	return root
}

// initializeLogger keeps the terminal quiet unless --verbose is set.
func initializeLogger(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func (o *options) client() *apiClient {
	return newAPIClient(o.server, o.user, o.timeout)
}

func (o *options) renderer(w io.Writer) (*renderer, error) {
	r, err := newRenderer(w, o.style, o.width, o.plain)
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	return r, nil
}
