package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Finalize budgets whose period has ended",
		Long: `Settle every lapsed budget now instead of waiting for the worker.

Unspent money of each settled budget is moved to its savings goal.
With --owner only that user's budgets are settled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			now := time.Now()
			var n int
			if owner != "" {
				n, err = e.app.Budgets.FinalizeExpired(ctx, owner, now)
			} else {
				n, err = e.app.Budgets.SweepAll(ctx, now)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Finalized %s %s\n",
				humanize.Comma(int64(n)), english.PluralWord(n, "budget", ""))
			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "only settle budgets of this user id")
	return cmd
}
