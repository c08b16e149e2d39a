package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/config"
)

func newHashPasswordCmd(a *app) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of an admin password",
		Long: `Print the bcrypt hash to use as STUDIO_ADMIN_PASSWORD_HASH.
The password is read from --password or from the first line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password is empty")
			}

			passwordConfig, err := config.NewPasswordConfig()
			if err != nil {
				return err
			}
			hash, err := passwordConfig.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, hash) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password to hash")
	return cmd
}
