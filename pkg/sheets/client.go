// Package sheets wraps the Google Sheets API behind the two operations the
// ledger needs: a full-range read and a single-cell write.
package sheets

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

// Client performs spreadsheet operations.
type Client interface {
	// Values reads all cell values in the given A1 range as strings.
	Values(ctx context.Context, spreadsheetID, readRange string) ([][]string, error)

	// Update writes a single cell value at the given A1 reference.
	Update(ctx context.Context, spreadsheetID, cellRef, value string) error
}

// apiClient implements Client using google.golang.org/api/sheets/v4.
type apiClient struct {
	svc *sheetsv4.Service
}

// NewClient builds a Sheets client from the token source.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (Client, error) {
	svc, err := sheetsv4.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, eris.Wrap(err, "sheets: new service")
	}
	return &apiClient{svc: svc}, nil
}

func (c *apiClient) Values(ctx context.Context, spreadsheetID, readRange string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sheets: get values %s", readRange))
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *apiClient) Update(ctx context.Context, spreadsheetID, cellRef, value string) error {
	vr := &sheetsv4.ValueRange{
		Values: [][]interface{}{{value}},
	}
	_, err := c.svc.Spreadsheets.Values.Update(spreadsheetID, cellRef, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("sheets: update %s", cellRef))
	}
	return nil
}
