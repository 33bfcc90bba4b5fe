package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/outreach-cli/internal/qualify"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify",
	Short: "Classify untyped leads by scraping their websites",
	Long:  "Scrapes each lead's website and asks Claude to sort it into VIP or Normal. Leads whose sites cannot be read are marked Check Manual.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key is required (OUTREACH_ANTHROPIC_KEY)")
		}

		runner := &qualify.Runner{
			Ledger:  led,
			AI:      anthropic.NewClient(cfg.Anthropic.Key),
			Scraper: qualify.NewScraper(cfg.Qualifier),
			Cfg:     cfg.Qualifier,
			Claude:  cfg.Anthropic,
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
		formatReport(os.Stdout, "qualify", report)
		return nil
	},
}

func init() {
	qualifyCmd.Flags().Bool("no-audit", false, "skip recording the run in the audit store")
	rootCmd.AddCommand(qualifyCmd)
}
