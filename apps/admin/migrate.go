package main

import (
	"github.com/spf13/cobra"

	"github.com/etudier/etudier/storage/database"
)

var runMigrationsFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS]",
		Short: "Run a goose command on the embedded migrations (up, down, status, version, reset, ...)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usage(cmd)
			}
			return runMigrationsFunc(cmd.Context(), cli.db, args[0], args[1:]...)
		},
	}
}
