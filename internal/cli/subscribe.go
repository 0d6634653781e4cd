package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/jason-s-yu/shootingstars/internal/client"
	"github.com/spf13/cobra"
)

// NewSubscribeCommand creates the subscribe command.
func NewSubscribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <publication> [params...]",
		Short: "Follow a publication, printing each record change as a JSON line",
		Long: `Follow a publication, printing each record change as a JSON line.

The connection is re-established with exponential backoff when it drops.

Example:
  lightsctl subscribe lights
  lightsctl subscribe presence north-window`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &lineWriter{w: cmd.OutOrStdout()}
			c := client.New(rootOpts.URL, rootOpts.logger, client.WithOnChange(out.change))
			if err := c.Subscribe(args[0], parseParams(args[1:])...); err != nil {
				return err
			}
			go func() {
				select {
				case <-c.Ready():
					rootOpts.logger.Infof("Subscription %s ready", args[0])
				case <-cmd.Context().Done():
				}
			}()
			return ignoreCancel(c.Run(cmd.Context()))
		},
	}
}

type changeLine struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Fields     map[string]any `json:"fields"`
	Removed    bool           `json:"removed,omitempty"`
}

type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) change(collection, id string, fields map[string]any) {
	data, err := json.Marshal(changeLine{Collection: collection, ID: id, Fields: fields, Removed: fields == nil})
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, string(data))
}
