package ledger

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/model"
)

type fakeSheets struct {
	rows      [][]string
	valuesErr error
	updates   map[string]string
}

func (f *fakeSheets) Values(_ context.Context, _, _ string) ([][]string, error) {
	if f.valuesErr != nil {
		return nil, f.valuesErr
	}
	return f.rows, nil
}

func (f *fakeSheets) Update(_ context.Context, _, cellRef, value string) error {
	if f.updates == nil {
		f.updates = make(map[string]string)
	}
	f.updates[cellRef] = value
	return nil
}

func fullHeader() []string {
	return []string{
		"Email", "Status", "Client Name", "Gmail Account", "Selected Skill",
		"First Price", "Offer Price", "Final Price", "Free Gift", "Portfolio Link",
		"Email Sending Date", "Order Requirements", "Website", "Payment Status",
		"Final Drive Link", "Delivery Status", "Delivery Date", "Client Type",
	}
}

func TestSnapshotResolvesColumns(t *testing.T) {
	fs := &fakeSheets{rows: [][]string{
		fullHeader(),
		{"a@x.com", "Sent", "Alice"},
	}}
	a := New(fs, "sheet", "Sheet1")

	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, snap.Columns[ColEmail])
	assert.Equal(t, 13, snap.Columns[ColPaymentStatus])
	assert.Len(t, snap.Rows, 2)
}

func TestSnapshotMissingRequiredColumns(t *testing.T) {
	fs := &fakeSheets{rows: [][]string{{"Email", "Status"}}}
	a := New(fs, "sheet", "Sheet1")

	_, err := a.Snapshot(context.Background())
	require.Error(t, err)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Missing, ColGmailAccount)
	assert.NotContains(t, schemaErr.Missing, ColEmail)
}

func TestSnapshotEmptySheet(t *testing.T) {
	fs := &fakeSheets{rows: [][]string{}}
	a := New(fs, "sheet", "Sheet1")

	_, err := a.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestResolveColumnsPaymentStatusFallback(t *testing.T) {
	header := fullHeader()
	header[13] = "" // Payment Status header missing in older ledger copies

	cols, err := ResolveColumns(header, RequiredColumns)
	require.NoError(t, err)
	assert.Equal(t, paymentStatusFallback, cols[ColPaymentStatus])
}

func TestResolveColumnsDuplicateHeaderFirstWins(t *testing.T) {
	cols, err := ResolveColumns([]string{"Email", "Email"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cols["Email"])
}

func TestCellShortRowsReadBlank(t *testing.T) {
	snap := &Snapshot{Rows: [][]string{
		{"Email", "Status"},
		{"a@x.com"},
	}}

	assert.Equal(t, "a@x.com", snap.Cell(1, 0))
	assert.Equal(t, "", snap.Cell(1, 1), "missing trailing cell reads blank")
	assert.Equal(t, "", snap.Cell(5, 0), "out-of-range row reads blank")
	assert.Equal(t, "", snap.Cell(1, -1))
}

func TestLeadMaterialization(t *testing.T) {
	fs := &fakeSheets{rows: [][]string{
		fullHeader(),
		{"a@x.com", "Negotiating", " Alice ", "sender@studio.com", "Logo", "$150",
			"$120", "$80", "Business card", "https://p.example", "2025-06-01",
			"", "alice.shop", "Payment Pending", "https://d.example", "", "", "VIP"},
	}}
	a := New(fs, "sheet", "Sheet1")
	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)

	lead := snap.Lead(1)
	assert.Equal(t, 2, lead.Row, "1-based sheet row")
	assert.Equal(t, "Alice", lead.ClientName, "cells are trimmed")
	assert.Equal(t, model.StatusNegotiating, lead.Status)
	assert.Equal(t, model.PaymentPending, lead.PaymentStatus)
	assert.Equal(t, "VIP", lead.ClientType)
}

func TestUpdateCellWritesA1Reference(t *testing.T) {
	fs := &fakeSheets{rows: [][]string{fullHeader()}}
	a := New(fs, "sheet", "Leads")
	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)

	require.NoError(t, a.UpdateCell(context.Background(), snap, 4, ColStatus, "Sent"))
	assert.Equal(t, "Sent", fs.updates["Leads!B4"])

	err = a.UpdateCell(context.Background(), snap, 4, "No Such Column", "x")
	assert.Error(t, err)
}

func TestSnapshotReadError(t *testing.T) {
	fs := &fakeSheets{valuesErr: eris.New("api down")}
	a := New(fs, "sheet", "Sheet1")

	_, err := a.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestColumnLetter(t *testing.T) {
	tests := map[int]string{
		0:  "A",
		1:  "B",
		25: "Z",
		26: "AA",
		27: "AB",
		51: "AZ",
		52: "BA",
	}
	for idx, want := range tests {
		assert.Equal(t, want, columnLetter(idx), "index %d", idx)
	}
}
