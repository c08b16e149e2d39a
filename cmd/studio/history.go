package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/history"
	"github.com/jonathan/content-studio/internal/logging"
	"github.com/jonathan/content-studio/internal/schemas"
	"github.com/jonathan/content-studio/internal/session"
	"github.com/jonathan/content-studio/internal/storage"
	schemafiles "github.com/jonathan/content-studio/schemas"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage the local run history",
	}
	cmd.AddCommand(
		newHistoryListCmd(a),
		newHistoryShowCmd(a),
		newHistoryRemoveCmd(a),
		newHistoryClearCmd(a),
		newHistoryReopenCmd(a),
		newHistoryCheckCmd(a),
	)
	return cmd
}

func newHistoryListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeHistory, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			a.printer.PrintHistory(records)
			return nil
		},
	}
}

func newHistoryShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeHistory, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Prompt: %s\n", rec.Prompt) //nolint:errcheck
			a.printer.PrintRun(&rec.Run)
			return nil
		},
	}
}

func newHistoryRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <run-id>",
		Aliases: []string{"remove"},
		Short:   "Remove one recorded run",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeHistory, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			if err := store.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s\n", args[0]) //nolint:errcheck
			return nil
		},
	}
}

func newHistoryClearCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear history without --yes")
			}
			store, closeHistory, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "History cleared") //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm clearing the history")
	return cmd
}

func newHistoryReopenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <run-id>",
		Short: "Refresh a recorded run from the generation service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			store, closeHistory, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer closeHistory()

			run, err := session.Reopen(cmd.Context(), store, client, args[0], logging.WithComponent(a.logger, "session"))
			if err != nil {
				return err
			}
			a.printer.PrintRun(&run)
			return nil
		},
	}
}

func newHistoryCheckCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the stored history against its JSON Schema",
		Long: `Validate the stored history document against the history JSON Schema.
With --file, an exported history file is checked instead of the configured storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data []byte
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read history file: %w", err)
				}
				data = b
			} else {
				kv, err := a.openKV(cmd.Context())
				if err != nil {
					return err
				}
				defer a.closer(kv)()

				b, err := kv.Get(cmd.Context(), history.DefaultKey)
				if errors.Is(err, storage.ErrNotFound) {
					fmt.Fprintln(a.out, "History is empty") //nolint:errcheck
					return nil
				}
				if err != nil {
					return fmt.Errorf("failed to read history: %w", err)
				}
				data = b
			}

			if err := schemas.ValidateEmbedded(schemafiles.History, data); err != nil {
				return err
			}
			var entries []json.RawMessage
			if err := json.Unmarshal(data, &entries); err != nil {
				return fmt.Errorf("failed to parse history: %w", err)
			}
			fmt.Fprintf(a.out, "History OK: %d entries\n", len(entries)) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Check an exported history file")
	return cmd
}
