package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/types"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage generation service API keys",
	}
	cmd.AddCommand(newKeysListCmd(a), newKeysCreateCmd(a), newKeysRevokeCmd(a))
	return cmd
}

func newKeysListCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeKeys, err := a.openKeys(cmd.Context())
			if err != nil {
				return err
			}
			defer closeKeys()

			keys, err := store.List(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			a.printer.PrintAPIKeys(keys)
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the local cache")
	return cmd
}

func newKeysCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key and print its secret once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeKeys, err := a.openKeys(cmd.Context())
			if err != nil {
				return err
			}
			defer closeKeys()

			key, err := store.Create(cmd.Context(), types.CreateAPIKeyRequest{Name: args[0]})
			if err != nil {
				return err
			}
			//nolint:errcheck
			fmt.Fprintf(a.out, "Created key %s (%s)\nSecret: %s\nStore the secret now; it is not shown again.\n", key.ID, key.Name, key.Secret)
			return nil
		},
	}
}

func newKeysRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeKeys, err := a.openKeys(cmd.Context())
			if err != nil {
				return err
			}
			defer closeKeys()

			if err := store.Revoke(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Revoked %s\n", args[0]) //nolint:errcheck
			return nil
		},
	}
}
