// Package ledger reads and writes the shared lead spreadsheet. Reads are
// point-in-time snapshots taken once per run; writes always go to the live
// sheet, one authoritative cell at a time.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/resilience"
	"github.com/sells-group/outreach-cli/pkg/sheets"
)

// SchemaError reports required columns missing from the header row.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "ledger: missing required columns: " + strings.Join(e.Missing, ", ")
}

// Accessor is the ledger collaborator for one spreadsheet.
type Accessor struct {
	client        sheets.Client
	spreadsheetID string
	worksheet     string
}

// New creates an Accessor for the given spreadsheet and worksheet.
func New(client sheets.Client, spreadsheetID, worksheet string) *Accessor {
	return &Accessor{
		client:        client,
		spreadsheetID: spreadsheetID,
		worksheet:     worksheet,
	}
}

// Snapshot is a point-in-time read of the whole ledger. Row 0 is the
// header. Lookups within a run use the snapshot; the live sheet may drift.
type Snapshot struct {
	Columns map[string]int
	Rows    [][]string
}

// Snapshot reads the full ledger and resolves the required columns.
// Returns a SchemaError when any required column is absent.
func (a *Accessor) Snapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := resilience.DoVal(ctx, retryConfig("snapshot"), func(ctx context.Context) ([][]string, error) {
		return a.client.Values(ctx, a.spreadsheetID, a.worksheet)
	})
	if err != nil {
		return nil, eris.Wrap(err, "ledger: read rows")
	}
	if len(rows) == 0 {
		return nil, eris.New("ledger: empty sheet, no header row")
	}

	cols, err := ResolveColumns(rows[0], RequiredColumns)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ledger snapshot taken",
		zap.Int("rows", len(rows)-1),
		zap.Int("columns", len(cols)),
	)

	return &Snapshot{Columns: cols, Rows: rows}, nil
}

// ResolveColumns maps column names to 0-based indexes from the header row.
// All optional columns present in the header are resolved too; a missing
// required column is a SchemaError. Payment Status falls back to a fixed
// index when its header is absent.
func ResolveColumns(header []string, required []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	if _, ok := cols[ColPaymentStatus]; !ok {
		cols[ColPaymentStatus] = paymentStatusFallback
		zap.L().Warn("ledger: Payment Status header absent, using fallback column index",
			zap.Int("index", paymentStatusFallback),
		)
	}

	return cols, nil
}

// Cell returns the value at the snapshot row and 0-based column index.
// Short rows read as blank for their missing columns.
func (s *Snapshot) Cell(rowIdx, colIdx int) string {
	if rowIdx < 0 || rowIdx >= len(s.Rows) {
		return ""
	}
	row := s.Rows[rowIdx]
	if colIdx < 0 || colIdx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[colIdx])
}

// get reads a named column for a snapshot row, blank when unresolved.
func (s *Snapshot) get(rowIdx int, col string) string {
	idx, ok := s.Columns[col]
	if !ok {
		return ""
	}
	return s.Cell(rowIdx, idx)
}

// Lead materializes the lead at the given snapshot row index (1-based data
// rows; index 0 is the header). Lead.Row carries the 1-based sheet row.
func (s *Snapshot) Lead(rowIdx int) model.Lead {
	return model.Lead{
		Row:               rowIdx + 1,
		Email:             s.get(rowIdx, ColEmail),
		ClientName:        s.get(rowIdx, ColClientName),
		Owner:             s.get(rowIdx, ColGmailAccount),
		Status:            model.Status(s.get(rowIdx, ColStatus)),
		SendDate:          s.get(rowIdx, ColSendDate),
		SelectedSkill:     s.get(rowIdx, ColSelectedSkill),
		FirstPrice:        s.get(rowIdx, ColFirstPrice),
		OfferPrice:        s.get(rowIdx, ColOfferPrice),
		FinalPrice:        s.get(rowIdx, ColFinalPrice),
		FreeGift:          s.get(rowIdx, ColFreeGift),
		PortfolioLink:     s.get(rowIdx, ColPortfolioLink),
		Website:           s.get(rowIdx, ColWebsite),
		ClientType:        s.get(rowIdx, ColClientType),
		OrderRequirements: s.get(rowIdx, ColOrderReqs),
		PaymentStatus:     model.PaymentStatus(s.get(rowIdx, ColPaymentStatus)),
		FinalDriveLink:    s.get(rowIdx, ColFinalDriveLink),
		DeliveryStatus:    s.get(rowIdx, ColDeliveryStatus),
		DeliveryDate:      s.get(rowIdx, ColDeliveryDate),
		InstagramLink:     s.get(rowIdx, ColInstagramLink),
	}
}

// Leads materializes every data row in the snapshot.
func (s *Snapshot) Leads() []model.Lead {
	if len(s.Rows) <= 1 {
		return nil
	}
	leads := make([]model.Lead, 0, len(s.Rows)-1)
	for i := 1; i < len(s.Rows); i++ {
		leads = append(leads, s.Lead(i))
	}
	return leads
}

// UpdateCell writes one cell on the live sheet. sheetRow is 1-based,
// colIdx is 0-based. Writes are idempotent: re-writing the same resulting
// value is harmless.
func (a *Accessor) UpdateCell(ctx context.Context, snap *Snapshot, sheetRow int, col string, value string) error {
	idx, ok := snap.Columns[col]
	if !ok {
		return eris.Errorf("ledger: unresolved column %q", col)
	}
	ref := fmt.Sprintf("%s!%s%d", a.worksheet, columnLetter(idx), sheetRow)
	err := resilience.Do(ctx, retryConfig("update"), func(ctx context.Context) error {
		return a.client.Update(ctx, a.spreadsheetID, ref, value)
	})
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("ledger: update %s", ref))
	}
	zap.L().Debug("ledger cell updated",
		zap.String("cell", ref),
		zap.String("column", col),
		zap.String("value", value),
	)
	return nil
}

// Cell writes are idempotent, so transient Sheets failures retry safely.
func retryConfig(op string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("sheets", op)
	return cfg
}

// columnLetter converts a 0-based column index to its A1 letter form.
func columnLetter(idx int) string {
	letters := ""
	for idx >= 0 {
		letters = string(rune('A'+idx%26)) + letters
		idx = idx/26 - 1
	}
	return letters
}
