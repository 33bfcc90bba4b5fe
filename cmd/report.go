package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/outreach-cli/internal/model"
)

// formatReport prints a run report as an aligned table.
func formatReport(w io.Writer, phase string, r *model.RunReport) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "PHASE\tPROCESSED\tSENT\tSKIPPED\tOPT-OUTS\tFAILURES\n")
	fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
		phase, r.Processed, r.Sent, r.Skipped, r.OptOuts, r.Failures)
	_ = tw.Flush()
}
