package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/shootingstars/internal/cache"
	"github.com/spf13/cobra"
)

// ChangesOptions holds flags for the changes command.
type ChangesOptions struct {
	*RootOptions
	RedisAddr string
	RedisDB   int
	Channel   string
}

// NewChangesCommand creates the changes command.
func NewChangesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "changes",
		Short:         "Print every committed change published on Redis",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rdb, err := cache.ConnectRedis(ctx, opts.RedisAddr, opts.RedisDB)
			if err != nil {
				return err
			}
			defer rdb.Close()

			records, err := cache.Subscribe(ctx, rdb, opts.Channel)
			if err != nil {
				return err
			}
			for rec := range records {
				data, err := json.Marshal(rec)
				if err != nil {
					return fmt.Errorf("encode change: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.RedisAddr, "redis", "localhost:6379", "Redis address")
	cmd.Flags().IntVar(&opts.RedisDB, "redis-db", 0, "Redis database")
	cmd.Flags().StringVar(&opts.Channel, "channel", cache.DefaultChangeChannel, "change channel")

	return cmd
}
