// Package identity maps sender identities to authenticated mailbox
// sessions. Credentials are provisioned out-of-band as per-identity token
// files; this package only reads them.
package identity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/gmail"
)

// Scopes requested when the tokens were provisioned. Kept in sync with the
// account-provisioning tool.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/spreadsheets",
}

// ErrNoCredential marks an identity that has never been provisioned.
var ErrNoCredential = eris.New("identity: no credential")

// MismatchError reports a credential whose mailbox belongs to a different
// address than the one requested. The identity must be skipped for the
// whole run; a misconfigured credential must never act for the wrong sender.
type MismatchError struct {
	Requested string
	Reported  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("identity: credential for %s reports profile %s", e.Requested, e.Reported)
}

// Store looks up durable per-identity credentials from a tokens directory
// containing token_<address>.json files (authorized-user JSON).
type Store struct {
	dir string
}

// NewStore creates a credential store over the given directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Lookup returns the token source for an identity, or ok=false when the
// identity has never been provisioned. Absence is not an error.
func (s *Store) Lookup(ctx context.Context, address string) (oauth2.TokenSource, bool, error) {
	path := filepath.Join(s.dir, "token_"+model.NormalizeAddress(address)+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "identity: read token file")
	}

	creds, err := google.CredentialsFromJSON(ctx, data, Scopes...)
	if err != nil {
		return nil, false, eris.Wrap(err, fmt.Sprintf("identity: parse token for %s", address))
	}
	return creds.TokenSource, true, nil
}

// Session is an authenticated messaging handle for one sender identity.
type Session struct {
	Address string
	Mail    gmail.Client
}

// Dialer builds a mailbox client from a token source. Swapped for a fake
// in tests.
type Dialer func(ctx context.Context, ts oauth2.TokenSource) (gmail.Client, error)

// Resolver resolves sender identities to sessions. One resolver instance
// is scoped to a run; there is no process-wide client state.
type Resolver struct {
	store *Store
	dial  Dialer
}

// NewResolver creates a Resolver over the credential store. A nil dialer
// uses the real Gmail client.
func NewResolver(store *Store, dial Dialer) *Resolver {
	if dial == nil {
		dial = func(ctx context.Context, ts oauth2.TokenSource) (gmail.Client, error) {
			return gmail.NewClient(ctx, ts)
		}
	}
	return &Resolver{store: store, dial: dial}
}

// Resolve returns an authenticated session for the address, or
// ErrNoCredential when the identity was never provisioned. Callers must
// Verify the session before first use.
func (r *Resolver) Resolve(ctx context.Context, address string) (*Session, error) {
	ts, ok, err := r.store.Lookup(ctx, address)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrap(ErrNoCredential, address)
	}

	client, err := r.dial(ctx, ts)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("identity: dial mailbox for %s", address))
	}
	return &Session{Address: address, Mail: client}, nil
}

// Verify confirms the session's self-reported profile address matches the
// requested identity. On mismatch the caller must skip the identity for
// the entire run (fails closed).
func Verify(ctx context.Context, s *Session) error {
	reported, err := s.Mail.Profile(ctx)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("identity: fetch profile for %s", s.Address))
	}
	if !strings.EqualFold(strings.TrimSpace(reported), strings.TrimSpace(s.Address)) {
		return &MismatchError{Requested: s.Address, Reported: reported}
	}
	return nil
}
