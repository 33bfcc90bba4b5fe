package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2/google"

	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/identity"
	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
	"github.com/sells-group/outreach-cli/pkg/sheets"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initLedger(ctx context.Context) (*ledger.Accessor, error) {
	if cfg.Ledger.SpreadsheetID == "" {
		return nil, eris.New("ledger spreadsheet ID is required (OUTREACH_LEDGER_SPREADSHEET_ID)")
	}

	data, err := os.ReadFile(cfg.Ledger.CredentialsFile)
	if err != nil {
		return nil, eris.Wrap(err, "read ledger credentials")
	}
	creds, err := google.CredentialsFromJSON(ctx, data, "https://www.googleapis.com/auth/spreadsheets")
	if err != nil {
		return nil, eris.Wrap(err, "parse ledger credentials")
	}

	client, err := sheets.NewClient(ctx, creds.TokenSource)
	if err != nil {
		return nil, err
	}
	return ledger.New(client, cfg.Ledger.SpreadsheetID, cfg.Ledger.Worksheet), nil
}

func initResolver() *identity.Resolver {
	return identity.NewResolver(identity.NewStore(cfg.Gmail.TokensDir), nil)
}

func initClassifier() (classify.Classifier, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (OUTREACH_ANTHROPIC_KEY)")
	}
	return classify.New(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic), nil
}
