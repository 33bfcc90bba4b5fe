package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/engine"
)

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Process unread replies across all sender identities",
	Long:  "Reads the ledger, builds each identity's whitelist, classifies unread replies via Claude, sends the next email, and advances lead state. Sequential by design; pacing pauses separate sends.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		classifier, err := initClassifier()
		if err != nil {
			return err
		}

		eng := &engine.Engine{
			Ledger:      led,
			Resolver:    initResolver(),
			Classifier:  classifier,
			Cfg:         cfg.Engine,
			UnreadQuery: cfg.Gmail.UnreadQuery,
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
			eng.Audit = st
		}

		report, err := eng.Run(ctx)
		if err != nil {
			return err
		}
		formatReport(os.Stdout, "reply", report)
		return nil
	},
}

func init() {
	replyCmd.Flags().Bool("no-audit", false, "skip recording the run in the audit store")
	rootCmd.AddCommand(replyCmd)
}
