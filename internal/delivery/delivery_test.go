package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/model"
)

var deliveryHeader = []string{
	ledger.ColEmail, ledger.ColClientName, ledger.ColGmailAccount,
	ledger.ColStatus, ledger.ColSelectedSkill, ledger.ColFirstPrice,
	ledger.ColOfferPrice, ledger.ColFinalPrice, ledger.ColFreeGift,
	ledger.ColPortfolioLink, ledger.ColPaymentStatus, ledger.ColFinalDriveLink,
	ledger.ColDeliveryStatus, ledger.ColDeliveryDate,
}

func deliverySnap(t *testing.T, rows ...map[string]string) *ledger.Snapshot {
	t.Helper()
	cols, err := ledger.ResolveColumns(deliveryHeader, ledger.RequiredColumns)
	require.NoError(t, err)

	sheet := [][]string{deliveryHeader}
	for _, vals := range rows {
		row := make([]string, len(deliveryHeader))
		for i, col := range deliveryHeader {
			row[i] = vals[col]
		}
		sheet = append(sheet, row)
	}
	return &ledger.Snapshot{Columns: cols, Rows: sheet}
}

func TestPlanSelectsDoneLeadsWithDriveLinks(t *testing.T) {
	snap := deliverySnap(t,
		map[string]string{
			ledger.ColEmail: "ready@shop.com", ledger.ColClientName: "Alice",
			ledger.ColGmailAccount: "sender@studio.com", ledger.ColStatus: "Done",
			ledger.ColSelectedSkill: "Logo Design",
			ledger.ColFinalDriveLink: "https://drive.example/files",
		},
		map[string]string{
			ledger.ColEmail: "nolink@shop.com", ledger.ColGmailAccount: "sender@studio.com",
			ledger.ColStatus: "Done",
		},
		map[string]string{
			ledger.ColEmail: "already@shop.com", ledger.ColGmailAccount: "sender@studio.com",
			ledger.ColStatus: "Done", ledger.ColFinalDriveLink: "https://drive.example/old",
			ledger.ColDeliveryStatus: "Delivered",
		},
		map[string]string{
			ledger.ColEmail: "working@shop.com", ledger.ColGmailAccount: "sender@studio.com",
			ledger.ColStatus: "Negotiating", ledger.ColFinalDriveLink: "https://drive.example/wip",
		},
	)

	r := &Runner{Now: time.Now}
	plan := r.plan(snap)

	require.Len(t, plan, 1)
	assert.Equal(t, "ready@shop.com", plan[0].Out.To)
	assert.Equal(t, model.SendKindDelivery, plan[0].Kind)
	assert.Equal(t, "Your logo design order is ready", plan[0].Out.Subject)
	assert.Contains(t, plan[0].Out.Body, "https://drive.example/files")
	assert.Contains(t, plan[0].Out.Body, "Hi Alice,")
}

func TestBodyCarriesSenderName(t *testing.T) {
	lead := model.Lead{
		ClientName:     "Bob",
		SelectedSkill:  "Web Design",
		FinalDriveLink: "https://drive.example/bob",
	}
	got := body(lead, "Sam")
	assert.Contains(t, got, "web design order is complete")
	assert.Contains(t, got, "Best,\nSam")
}
