package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/delivery"
)

var deliverCmd = &cobra.Command{
	Use:   "deliver",
	Short: "Send final files to leads marked Done",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}

		runner := &delivery.Runner{
			Ledger:   led,
			Resolver: initResolver(),
			Engine:   cfg.Engine,
			Cfg:      cfg.Outreach,
		}

		noAudit, _ := cmd.Flags().GetBool("no-audit")
		if !noAudit {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			runner.Audit = st
		}

		report, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		formatReport(os.Stdout, "deliver", report)
		return nil
	},
}

func init() {
	deliverCmd.Flags().Bool("no-audit", false, "skip recording the run in the audit store")
	rootCmd.AddCommand(deliverCmd)
}
