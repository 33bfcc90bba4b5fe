package engine

import (
	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/model"
)

// BuildWhitelist scans the snapshot once and returns the counterpart
// addresses eligible for automated handling by the given identity: rows
// owned by that identity whose lead has not reached a terminal state.
// Keys are normalized addresses, values are snapshot row indexes. The
// first row wins when an address repeats.
func BuildWhitelist(snap *ledger.Snapshot, identity string) map[string]int {
	wl := make(map[string]int)
	for i := 1; i < len(snap.Rows); i++ {
		lead := snap.Lead(i)
		if lead.Email == "" || !lead.OwnedBy(identity) || lead.Terminal() {
			continue
		}
		key := model.NormalizeAddress(lead.Email)
		if _, seen := wl[key]; !seen {
			wl[key] = i
		}
	}
	return wl
}

// Identities returns the distinct sender identities in the snapshot,
// deduplicated case-insensitively, in first-seen row order.
func Identities(snap *ledger.Snapshot) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 1; i < len(snap.Rows); i++ {
		owner := model.NormalizeAddress(snap.Lead(i).Owner)
		if owner == "" || seen[owner] {
			continue
		}
		seen[owner] = true
		out = append(out, owner)
	}
	return out
}
