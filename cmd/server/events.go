package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/events"
)

// tailer is implemented by publishers whose stream can be read back.
type tailer interface {
	events.Publisher
	Tail(ctx context.Context, handle func(events.Event) error) error
}

func newEventsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the expense event stream",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "tail",
		Short: "Print events as they are published, one JSON object per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Read(v)
			if cfg.EventsBackend == config.EventsNone {
				return fmt.Errorf("no events backend configured, set EVENTS_BACKEND to redis or amqp")
			}

			publisher, err := newPublisher(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer publisher.Close()

			t, ok := publisher.(tailer)
			if !ok {
				return fmt.Errorf("events backend %q cannot be tailed", cfg.EventsBackend)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			err = t.Tail(cmd.Context(), func(e events.Event) error {
				return enc.Encode(e)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	})
	return cmd
}
