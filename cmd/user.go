package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dentascan/dentascan-go/internal/auth"
	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/errors"
)

// userCommand groups account management subcommands.
func userCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(userAddCommand(settings))
	return cmd
}

func userAddCommand(settings *conf.Settings) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, closer, err := openStore(settings)
			if err != nil {
				return err
			}
			defer closer()

			userID, err := auth.NewService(ds).Register(username, password)
			if err != nil {
				if errors.Is(err, datastore.ErrDuplicateUsername) {
					return fmt.Errorf("username %q is already taken", username)
				}
				return err
			}

			fmt.Printf("Created user %q with id %d\n", username, userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "new-username", "", "Username for the new account")
	cmd.Flags().StringVar(&password, "new-password", "", "Password for the new account")
	_ = cmd.MarkFlagRequired("new-username")
	_ = cmd.MarkFlagRequired("new-password")

	return cmd
}
