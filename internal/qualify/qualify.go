package qualify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

const systemPrompt = `You qualify small-business leads for a design studio by their website.

Classify the business into exactly one tier:
- "VIP": established business with a real brand, active commerce, and likely budget for premium work.
- "Normal": everything else that is still a legitimate business.

Respond with the single word VIP or Normal. If the page content is not a business website, respond Check Manual.`

// Runner executes one qualification pass over the ledger.
type Runner struct {
	Ledger  *ledger.Accessor
	AI      anthropic.Client
	Scraper *Scraper
	Audit   store.Store // optional

	Cfg    config.QualifierConfig
	Claude config.AnthropicConfig
}

// candidate is one lead awaiting qualification, with its scraped text.
type candidate struct {
	lead model.Lead
	text string
}

// Run scrapes and classifies every lead that has a website but no client
// type yet. Scrape failures classify as Check Manual rather than being
// retried forever; a human resolves those.
func (r *Runner) Run(ctx context.Context) (*model.RunReport, error) {
	var runID string
	if r.Audit != nil {
		rec, err := r.Audit.CreateRun(ctx, "qualify")
		if err != nil {
			return nil, eris.Wrap(err, "qualify: create audit run")
		}
		runID = rec.ID
	}
	report := &model.RunReport{}
	complete := func(status model.RunStatus) {
		if r.Audit == nil {
			return
		}
		if err := r.Audit.CompleteRun(ctx, runID, status, report); err != nil {
			zap.L().Warn("audit run completion failed", zap.Error(err))
		}
	}

	snap, err := r.Ledger.Snapshot(ctx)
	if err != nil {
		complete(model.RunStatusFailed)
		return nil, eris.Wrap(err, "qualify: snapshot ledger")
	}

	var pending []model.Lead
	for _, lead := range snap.Leads() {
		if strings.TrimSpace(lead.Website) == "" || lead.ClientType != "" {
			continue
		}
		pending = append(pending, lead)
	}
	report.Processed = len(pending)
	zap.L().Info("qualification pass planned", zap.Int("leads", len(pending)))
	if len(pending) == 0 {
		complete(model.RunStatusCompleted)
		return report, nil
	}

	candidates, failures := r.scrapeAll(ctx, pending)
	for _, lead := range failures {
		report.Failures++
		r.writeType(ctx, snap, lead, model.ClientTypeCheckManual, report)
	}

	verdicts := r.classify(ctx, candidates, report)
	for i, c := range candidates {
		r.writeType(ctx, snap, c.lead, verdicts[i], report)
	}

	complete(model.RunStatusCompleted)
	zap.L().Info("qualification pass finished",
		zap.Int("classified", len(candidates)),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

// scrapeAll fetches websites concurrently under the worker limit. The
// shared limiter inside Scraper paces actual requests.
func (r *Runner) scrapeAll(ctx context.Context, pending []model.Lead) ([]candidate, []model.Lead) {
	workers := r.Cfg.Concurrency
	if workers <= 0 {
		workers = 4
	}

	texts := make([]string, len(pending))
	errs := make([]error, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, lead := range pending {
		i, lead := i, lead
		g.Go(func() error {
			text, err := r.Scraper.Scrape(gctx, lead.Website)
			texts[i], errs[i] = text, err
			return nil
		})
	}
	_ = g.Wait()

	var ok []candidate
	var failed []model.Lead
	for i, lead := range pending {
		if errs[i] != nil {
			zap.L().Warn("scrape failed",
				zap.Int("row", lead.Row),
				zap.String("website", lead.Website),
				zap.Error(errs[i]),
			)
			failed = append(failed, lead)
			continue
		}
		ok = append(ok, candidate{lead: lead, text: texts[i]})
	}
	return ok, failed
}

// classify returns one verdict per candidate, batch or direct depending on
// volume.
func (r *Runner) classify(ctx context.Context, candidates []candidate, report *model.RunReport) []string {
	if len(candidates) == 0 {
		return nil
	}
	if r.Claude.NoBatch || len(candidates) < r.Claude.SmallBatchThreshold {
		return r.classifyDirect(ctx, candidates, report)
	}
	return r.classifyBatch(ctx, candidates, report)
}

func (r *Runner) classifyDirect(ctx context.Context, candidates []candidate, report *model.RunReport) []string {
	verdicts := make([]string, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			resp, err := r.AI.CreateMessage(gctx, r.request(c))
			if err != nil {
				zap.L().Warn("classification call failed", zap.Int("row", c.lead.Row), zap.Error(err))
				mu.Lock()
				report.Failures++
				mu.Unlock()
				verdicts[i] = model.ClientTypeCheckManual
				return nil
			}
			resp.Usage.LogCost(r.Claude.HaikuModel, "qualify")
			verdicts[i] = parseVerdict(resp.Text())
			return nil
		})
	}
	_ = g.Wait()
	return verdicts
}

func (r *Runner) classifyBatch(ctx context.Context, candidates []candidate, report *model.RunReport) []string {
	verdicts := make([]string, len(candidates))
	for i := range verdicts {
		verdicts[i] = model.ClientTypeCheckManual
	}

	items := make([]anthropic.BatchRequestItem, 0, len(candidates))
	for i, c := range candidates {
		items = append(items, anthropic.BatchRequestItem{
			CustomID: strconv.Itoa(i),
			Params:   r.request(c),
		})
	}

	batch, err := r.AI.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		zap.L().Error("batch create failed, falling back to direct calls", zap.Error(err))
		report.Failures++
		return r.classifyDirect(ctx, candidates, report)
	}

	done, err := anthropic.PollBatch(ctx, r.AI, batch.ID)
	if err != nil {
		zap.L().Error("batch polling failed", zap.String("batch_id", batch.ID), zap.Error(err))
		report.Failures++
		return verdicts
	}

	iter, err := r.AI.GetBatchResults(ctx, done.ID)
	if err != nil {
		zap.L().Error("batch results fetch failed", zap.String("batch_id", done.ID), zap.Error(err))
		report.Failures++
		return verdicts
	}
	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		zap.L().Error("batch results read failed", zap.String("batch_id", done.ID), zap.Error(err))
		report.Failures++
		return verdicts
	}

	for id, resp := range results {
		i, err := strconv.Atoi(id)
		if err != nil || i < 0 || i >= len(verdicts) {
			continue
		}
		resp.Usage.LogCost(r.Claude.HaikuModel, "qualify")
		verdicts[i] = parseVerdict(resp.Text())
	}
	return verdicts
}

func (r *Runner) request(c candidate) anthropic.MessageRequest {
	return anthropic.MessageRequest{
		Model:     r.Claude.HaikuModel,
		MaxTokens: 16,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Business: %s\nWebsite content:\n%s", c.lead.ClientName, c.text)},
		},
	}
}

func (r *Runner) writeType(ctx context.Context, snap *ledger.Snapshot, lead model.Lead, verdict string, report *model.RunReport) {
	if err := r.Ledger.UpdateCell(ctx, snap, lead.Row, ledger.ColClientType, verdict); err != nil {
		zap.L().Error("client type write failed", zap.Int("row", lead.Row), zap.Error(err))
		report.Failures++
	}
}

// parseVerdict normalizes model output to one of the client types.
func parseVerdict(text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "vip":
		return model.ClientTypeVIP
	case "normal":
		return model.ClientTypeNormal
	}
	return model.ClientTypeCheckManual
}
