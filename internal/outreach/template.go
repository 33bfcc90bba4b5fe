package outreach

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/outreach-cli/internal/model"
)

var titleCaser = cases.Title(language.English)

// DisplayName returns the lead's name in title case, falling back to the
// mailbox half of the address when the name cell is blank.
func DisplayName(lead model.Lead) string {
	name := strings.TrimSpace(lead.ClientName)
	if name == "" {
		addr := model.NormalizeAddress(lead.Email)
		if at := strings.IndexByte(addr, '@'); at > 0 {
			name = addr[:at]
		}
	}
	return titleCaser.String(strings.ToLower(name))
}

// InitialSubject is the subject line of the first outreach email.
func InitialSubject(lead model.Lead) string {
	return fmt.Sprintf("%s for your business", titleCaser.String(strings.ToLower(lead.SelectedSkill)))
}

// InitialBody renders the first outreach email for a lead.
func InitialBody(lead model.Lead, senderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", DisplayName(lead))
	fmt.Fprintf(&b, "I came across your business and I'd love to help with %s. ", strings.ToLower(lead.SelectedSkill))
	fmt.Fprintf(&b, "We're currently offering this starting at %s.\n\n", lead.FirstPrice)
	if lead.PortfolioLink != "" {
		fmt.Fprintf(&b, "Here's some of our recent work: %s\n\n", lead.PortfolioLink)
	}
	if lead.FreeGift != "" {
		fmt.Fprintf(&b, "If you order this week, we'll also include %s at no extra cost.\n\n", strings.ToLower(lead.FreeGift))
	}
	b.WriteString("Would you be interested? Happy to answer any questions.\n\n")
	fmt.Fprintf(&b, "Best,\n%s", senderName)
	return b.String()
}

// FollowUpSubject threads the follow-up under the original outreach.
func FollowUpSubject(lead model.Lead) string {
	return "Re: " + InitialSubject(lead)
}

// FollowUpBody renders the nudge sent when the first email went unanswered.
func FollowUpBody(lead model.Lead, senderName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", DisplayName(lead))
	fmt.Fprintf(&b, "Just floating this back to the top of your inbox. My offer on %s still stands", strings.ToLower(lead.SelectedSkill))
	if lead.FreeGift != "" {
		fmt.Fprintf(&b, ", free %s included", strings.ToLower(lead.FreeGift))
	}
	b.WriteString(".\n\nNo pressure at all, just let me know either way.\n\n")
	fmt.Fprintf(&b, "Best,\n%s", senderName)
	return b.String()
}

// dateLayouts are accepted for the send date column. The first is the
// canonical format new rows use.
var dateLayouts = []string{"2006-01-02", "1/2/2006", "01/02/2006"}

// ParseDate parses a ledger date cell. ok=false for blank or unparsable.
func ParseDate(cell string) (time.Time, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
