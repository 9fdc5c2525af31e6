package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var numberCmd = &cobra.Command{
	Use:   "next-number",
	Short: "Issue the next invoice number",
	Long: `Issues and prints the next client invoice number. With --peek the counter
is read without being advanced.`,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		peek, _ := cmd.Flags().GetBool("peek")
		ctx := cmd.Context()

		svc, err := newService(ctx, app.cfg, app.log)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, svc.Close(context.Background())) }()

		engine := svc.Engine()
		if err := engine.Start(ctx); err != nil {
			return err
		}

		var n int64
		if peek {
			n, err = engine.PeekInvoiceNumber(ctx)
		} else {
			n, err = engine.NextInvoiceNumber(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(numberCmd)
	numberCmd.Flags().Bool("peek", false, "show the next number without issuing it")
}
