package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/client"
	"github.com/spf13/cobra"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Timeout time.Duration
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <method> [params...]",
		Short: "Call a method and print its result",
		Long: `Call a method and print its result.

Parameters that parse as JSON are sent as JSON; anything else is sent as a
string.

Example:
  lightsctl call lights.setColourMode '"3"' rainbow
  lightsctl call blocks.updateState s3cret '{"score":10,"playfield":[[0]]}'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return callMethod(cmd, opts, args[0], parseParams(args[1:]))
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long to wait for the result")

	return cmd
}

func callMethod(cmd *cobra.Command, opts *CallOptions, method string, params []any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	c := client.New(opts.URL, opts.logger)
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	select {
	case <-c.Ready():
	case <-ctx.Done():
		return fmt.Errorf("connect %s: %w", opts.URL, ctx.Err())
	}

	result, err := c.Call(ctx, method, params...)
	cancel()
	<-runErr
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
