package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the store's tables or indexes and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, err := newService(ctx, app.cfg, app.log)
		if err != nil {
			return err
		}
		err = svc.Engine().Start(ctx)
		if cerr := svc.Close(context.Background()); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s store migrated\n", app.cfg.Store.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
