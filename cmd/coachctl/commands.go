package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	exitCommand  = "/exit"
	resetCommand = "/reset"
)

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message...]",
		Short: "Chat with the coach; with no arguments starts an interactive session",
		Long: `Sends a message to the coach and prints the reply.

Without arguments coachctl reads one message per line from stdin. Answer a
question by typing its option number. Type /reset to start over and /exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			client := opts.client()
			ctx := cmd.Context()

			if len(args) > 0 {
				sent, err := client.Send(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				r.Reply(sent.Reply)
				return nil
			}

			// Show where the conversation stands, the intro for a new user.
			last, err := client.History(ctx, 1)
			if err != nil {
				return err
			}
			for _, m := range last {
				r.Message(m)
			}

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case exitCommand:
					return nil
				case resetCommand:
					intro, err := client.Reset(ctx)
					if err != nil {
						return err
					}
					r.Reply(intro)
					continue
				}
				sent, err := client.Send(ctx, line)
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
					continue
				}
				r.Reply(sent.Reply)
			}
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			msgs, err := opts.client().History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				r.Message(m)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of messages to show")
	return cmd
}

func newProfileCmd(opts *options) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the stored profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := opts.client().Profile(cmd.Context())
			if err != nil {
				return err
			}
			if asYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(p); err != nil {
					return fmt.Errorf("failed to encode profile: %w", err)
				}
				return enc.Close()
			}
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r.Profile(p)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the profile as YAML")
	return cmd
}

func newResetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the profile and history and start over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			intro, err := opts.client().Reset(cmd.Context())
			if err != nil {
				return err
			}
			r, err := opts.renderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			r.Reply(intro)
			return nil
		},
	}
}
