package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var balancesCmd = &cobra.Command{
	Use:   "balances",
	Short: "Compare client balances with their invoices",
	Long: `Lists every client whose stored balance differs from the sum of its
invoice totals minus cash payments. With --fix each drifting balance is
overwritten with the derived value.`,
	Example: `  tally balances
  tally balances --fix`,
	RunE: runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)
	balancesCmd.Flags().Bool("fix", false, "repair drifting balances")
}

func runBalances(cmd *cobra.Command, _ []string) (err error) {
	fix, _ := cmd.Flags().GetBool("fix")
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

	drifts, err := engine.AuditBalances(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(drifts) == 0 {
		fmt.Fprintln(out, "all balances match their invoices")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLIENT\tNAME\tSTORED\tEXPECTED\tDIFF\tINVOICES")
	for _, d := range drifts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			d.ClientID, d.Name, d.Stored, d.Expected, d.Difference(), d.Invoices)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !fix {
		return fmt.Errorf("%d client balance(s) drift; rerun with --fix to repair", len(drifts))
	}
	for _, d := range drifts {
		balance, err := engine.RepairBalance(ctx, d.ClientID)
		if err != nil {
			return err
		}
		app.log.Info("balance repaired",
			zap.String("client_id", d.ClientID.String()),
			zap.String("balance", balance.String()),
		)
	}
	fmt.Fprintf(out, "repaired %d balance(s)\n", len(drifts))
	return nil
}
