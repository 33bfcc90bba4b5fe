// Package qualify classifies leads by scraping their websites and asking
// the model to sort them into client types, so pricing tiers can be set
// before the first email goes out.
package qualify

import (
	"context"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Scraper fetches lead websites as plaintext, rate limited across the
// whole run so concurrent workers stay polite.
type Scraper struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxChars int
}

// NewScraper creates a Scraper from the qualifier config.
func NewScraper(cfg config.QualifierConfig) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 0.5
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 3000
	}
	return &Scraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		limiter:  rate.NewLimiter(rate.Limit(perSec), 1),
		maxChars: maxChars,
	}
}

// Scrape fetches the URL and returns its visible text, truncated to the
// configured character limit.
func (s *Scraper) Scrape(ctx context.Context, targetURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "qualify: rate wait")
	}

	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("qualify", "scrape")
	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return s.fetch(ctx, targetURL)
	})
	if err != nil {
		return "", err
	}

	text := truncate(stripHTML(string(body)), s.maxChars)
	if strings.TrimSpace(text) == "" {
		return "", eris.New("qualify: page has no visible text")
	}
	return text, nil
}

func (s *Scraper) fetch(ctx context.Context, targetURL string) ([]byte, error) {
	if !strings.Contains(targetURL, "://") {
		targetURL = "https://" + targetURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "qualify: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; OutreachBot/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "qualify: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, eris.Wrap(err, "qualify: read body")
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("qualify: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("qualify: status %d", resp.StatusCode)
	}
	return body, nil
}

// truncate cuts text to at most max bytes, backing up so the cut never
// lands inside a multi-byte rune.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// stripHTML removes scripts/styles/nav/footer, strips tags, decodes common
// entities, and collapses whitespace.
func stripHTML(html string) string {
	for _, tag := range []string{"script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	html = regexp.MustCompile(`<[^>]+>`).ReplaceAllString(html, " ")

	html = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(html)

	return strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(html, " "))
}
