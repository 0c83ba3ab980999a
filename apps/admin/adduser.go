package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// addUserCmd updates or creates an active user.
func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		uname, email string
		isAdmin      bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update a user; the password is prompted next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" || email == "" {
				return usage(cmd)
			}
			pwd, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, err := cli.usrSvc.Save(cmd.Context(), uname, email, pwd, isAdmin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %q saved\n", usr.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username.")
	cmd.Flags().StringVar(&email, "email", "", "The user's email.")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Grant the admin role.")
	return cmd
}
