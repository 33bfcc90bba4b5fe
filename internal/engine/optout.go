package engine

import "strings"

// DefaultOptOutKeywords are matched locally against inbound bodies before
// the classifier runs. A match short-circuits the oracle call entirely.
var DefaultOptOutKeywords = []string{
	"unsubscribe",
	"not interested",
	"no thanks",
	"don't email",
	"do not email",
	"remove me",
	"leave me alone",
	"stop emailing",
	"stop contacting",
}

// IsOptOut reports whether the body matches any opt-out keyword. The bare
// word "stop" is matched only as the whole (trimmed) message so that
// phrases like "one-stop shop" don't trip it.
func IsOptOut(body string, keywords []string) bool {
	if len(keywords) == 0 {
		keywords = DefaultOptOutKeywords
	}
	lower := strings.ToLower(body)
	if strings.TrimSpace(lower) == "stop" {
		return true
	}
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
