package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/generation"
	"github.com/jonathan/content-studio/internal/history"
	"github.com/jonathan/content-studio/internal/types"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the generation service's view of a run",
		Long: `Fetch the status and player URLs of a run from the generation service.
The local history entry, if any, is used as the starting point but is not changed;
use "studio history reopen" to refresh it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			client, err := a.client()
			if err != nil {
				return err
			}
			snap, urls, err := client.FetchRun(ctx, id)
			if err != nil {
				return err
			}

			store, closeHistory, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			defer closeHistory()

			var m *generation.Machine
			rec, err := store.Get(ctx, id)
			switch {
			case err == nil:
				m = generation.Restore(rec)
			case errors.Is(err, history.ErrNotFound):
				m = generation.NewMachine(id, types.GenerationRequest{})
			default:
				return err
			}

			for _, ev := range generation.SnapshotEvents(snap, urls) {
				m.Apply(ctx, ev)
			}
			run := m.Snapshot()
			a.printer.PrintRun(&run)
			return nil
		},
	}
}
