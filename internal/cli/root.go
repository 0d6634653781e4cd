// Package cli implements lightsctl, the command line controller for the sync
// server.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	URL      string
	LogLevel string

	logger *logrus.Logger
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "lightsctl",
		Short: "Follow and control the shooting stars display",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(opts.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", opts.LogLevel, err)
			}
			opts.logger = logrus.New()
			opts.logger.SetOutput(cmd.ErrOrStderr())
			opts.logger.SetLevel(level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.URL, "url", "ws://localhost:8080/websocket", "sync websocket URL")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level")

	cmd.AddCommand(NewSubscribeCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewChangesCommand(opts))

	return cmd
}

// parseParams turns command line arguments into method parameters. Arguments
// that are valid JSON are passed through; anything else is sent as a string.
func parseParams(args []string) []any {
	out := make([]any, len(args))
	for i, a := range args {
		var v any
		if err := json.Unmarshal([]byte(a), &v); err == nil {
			out[i] = json.RawMessage(a)
			continue
		}
		out[i] = a
	}
	return out
}
