package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/outreach-cli/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger and run history to an xlsx workbook",
	Long:  "Writes a workbook with a Leads sheet (the ledger as-is) and a Runs sheet (the audit history) for offline review.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")

		led, err := initLedger(ctx)
		if err != nil {
			return err
		}
		snap, err := led.Snapshot(ctx)
		if err != nil {
			return err
		}

		file := xlsx.NewFile()

		leadsSheet, err := file.AddSheet("Leads")
		if err != nil {
			return eris.Wrap(err, "export: add leads sheet")
		}
		for _, row := range snap.Rows {
			xr := leadsSheet.AddRow()
			for _, cell := range row {
				xr.AddCell().Value = cell
			}
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		runs, err := st.ListRuns(ctx, store.RunFilter{Limit: 10000})
		if err != nil {
			return eris.Wrap(err, "export: list runs")
		}

		runsSheet, err := file.AddSheet("Runs")
		if err != nil {
			return eris.Wrap(err, "export: add runs sheet")
		}
		header := runsSheet.AddRow()
		for _, h := range []string{"ID", "Phase", "Status", "Started", "Finished", "Sent", "Failures"} {
			header.AddCell().Value = h
		}
		for _, r := range runs {
			xr := runsSheet.AddRow()
			xr.AddCell().Value = r.ID
			xr.AddCell().Value = r.Phase
			xr.AddCell().Value = string(r.Status)
			xr.AddCell().Value = r.StartedAt.Format("2006-01-02 15:04:05")
			if r.FinishedAt != nil {
				xr.AddCell().Value = r.FinishedAt.Format("2006-01-02 15:04:05")
			} else {
				xr.AddCell().Value = ""
			}
			if r.Report != nil {
				xr.AddCell().Value = fmt.Sprint(r.Report.Sent)
				xr.AddCell().Value = fmt.Sprint(r.Report.Failures)
			}
		}

		if err := file.Save(out); err != nil {
			return eris.Wrap(err, "export: save workbook")
		}
		fmt.Printf("Exported %d leads and %d runs to %s\n", len(snap.Rows)-1, len(runs), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "outreach-export.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
