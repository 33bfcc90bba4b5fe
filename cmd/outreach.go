package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/outreach"
)

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Send initial outreach to leads whose send date has arrived",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		runner, st, err := initOutreachRunner(cmd)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		report, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		formatReport(os.Stdout, "outreach", report)
		return nil
	},
}

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Send follow-ups to leads stuck in Sent past the follow-up window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		runner, st, err := initOutreachRunner(cmd)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
		}

		report, err := runner.RunFollowUps(ctx)
		if err != nil {
			return err
		}
		formatReport(os.Stdout, "followup", report)
		return nil
	},
}

func initOutreachRunner(cmd *cobra.Command) (*outreach.Runner, interface{ Close() error }, error) {
	ctx := cmd.Context()

	led, err := initLedger(ctx)
	if err != nil {
		return nil, nil, err
	}

	runner := &outreach.Runner{
		Ledger:   led,
		Resolver: initResolver(),
		Engine:   cfg.Engine,
		Cfg:      cfg.Outreach,
	}

	noAudit, _ := cmd.Flags().GetBool("no-audit")
	if noAudit {
		return runner, nil, nil
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	runner.Audit = st
	return runner, st, nil
}

func init() {
	outreachCmd.Flags().Bool("no-audit", false, "skip recording the run in the audit store")
	followupCmd.Flags().Bool("no-audit", false, "skip recording the run in the audit store")
	rootCmd.AddCommand(outreachCmd)
	rootCmd.AddCommand(followupCmd)
}
