package main

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-cli/internal/classify"
	"github.com/sells-group/outreach-cli/internal/delivery"
	"github.com/sells-group/outreach-cli/internal/engine"
	"github.com/sells-group/outreach-cli/internal/identity"
	"github.com/sells-group/outreach-cli/internal/ledger"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/internal/outreach"
	"github.com/sells-group/outreach-cli/internal/qualify"
	"github.com/sells-group/outreach-cli/internal/store"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

// allPhases is the full pipeline in execution order. Each phase takes its
// own ledger snapshot, so one phase's writes are visible to the next.
var allPhases = []string{"qualify", "outreach", "reply", "deliver", "followup"}

// pipelineEnv bundles the shared collaborators the phases are built from.
type pipelineEnv struct {
	led        *ledger.Accessor
	resolver   *identity.Resolver
	classifier classify.Classifier
	st         store.Store
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	led, err := initLedger(ctx)
	if err != nil {
		return nil, err
	}
	classifier, err := initClassifier()
	if err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return &pipelineEnv{
		led:        led,
		resolver:   initResolver(),
		classifier: classifier,
		st:         st,
	}, nil
}

func (env *pipelineEnv) Close() {
	_ = env.st.Close()
}

// runPhase executes one named phase against a fresh ledger snapshot.
func (env *pipelineEnv) runPhase(ctx context.Context, phase string) (*model.RunReport, error) {
	switch phase {
	case "qualify":
		runner := &qualify.Runner{
			Ledger:  env.led,
			AI:      anthropic.NewClient(cfg.Anthropic.Key),
			Scraper: qualify.NewScraper(cfg.Qualifier),
			Audit:   env.st,
			Cfg:     cfg.Qualifier,
			Claude:  cfg.Anthropic,
		}
		return runner.Run(ctx)
	case "outreach":
		runner := &outreach.Runner{
			Ledger:   env.led,
			Resolver: env.resolver,
			Audit:    env.st,
			Engine:   cfg.Engine,
			Cfg:      cfg.Outreach,
		}
		return runner.Run(ctx)
	case "reply":
		eng := &engine.Engine{
			Ledger:      env.led,
			Resolver:    env.resolver,
			Classifier:  env.classifier,
			Audit:       env.st,
			Cfg:         cfg.Engine,
			UnreadQuery: cfg.Gmail.UnreadQuery,
		}
		return eng.Run(ctx)
	case "deliver":
		runner := &delivery.Runner{
			Ledger:   env.led,
			Resolver: env.resolver,
			Audit:    env.st,
			Engine:   cfg.Engine,
			Cfg:      cfg.Outreach,
		}
		return runner.Run(ctx)
	case "followup":
		runner := &outreach.Runner{
			Ledger:   env.led,
			Resolver: env.resolver,
			Audit:    env.st,
			Engine:   cfg.Engine,
			Cfg:      cfg.Outreach,
		}
		return runner.RunFollowUps(ctx)
	}
	return nil, eris.Errorf("unknown phase: %s", phase)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full outreach pipeline",
	Long:  "Executes qualify, outreach, reply, deliver, and followup in order. Phases are isolated; a failing phase is reported and the rest still run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		phasesFlag, _ := cmd.Flags().GetString("phases")
		selected := parsePhases(phasesFlag)
		if len(selected) == 0 {
			return eris.Errorf("no valid phases in %q", phasesFlag)
		}

		var failed []string
		for _, phase := range selected {
			report, err := env.runPhase(ctx, phase)
			if err != nil {
				zap.L().Error("phase failed", zap.String("phase", phase), zap.Error(err))
				failed = append(failed, phase)
			} else {
				formatReport(os.Stdout, phase, report)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}

		if len(failed) > 0 {
			return eris.Errorf("phases failed: %s", strings.Join(failed, ", "))
		}
		return nil
	},
}

// parsePhases filters the comma-separated flag down to known phases,
// preserving pipeline order.
func parsePhases(flag string) []string {
	want := make(map[string]bool)
	for _, p := range strings.Split(flag, ",") {
		want[strings.TrimSpace(strings.ToLower(p))] = true
	}
	var out []string
	for _, p := range allPhases {
		if want[p] {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	runCmd.Flags().String("phases", strings.Join(allPhases, ","), "comma-separated phases to run, in pipeline order")
	rootCmd.AddCommand(runCmd)
}
