// Package pipeline runs the campaign construction stages for one request:
// audiences, creatives, budgets, then assembly.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/campaign-cli/internal/assemble"
	"github.com/sells-group/campaign-cli/internal/audience"
	"github.com/sells-group/campaign-cli/internal/budget"
	"github.com/sells-group/campaign-cli/internal/cost"
	"github.com/sells-group/campaign-cli/internal/creative"
	"github.com/sells-group/campaign-cli/internal/model"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageStrategies Stage = "strategies"
	StageAudiences  Stage = "audiences"
	StageCreatives  Stage = "creatives"
	StageBudgets    Stage = "budgets"
	StageAssemble   Stage = "assemble"
)

// Progress checkpoints reported at the start of each stage.
const (
	ProgressStarted   = 10
	ProgressAudiences = 20
	ProgressCreatives = 30
	ProgressBudgets   = 80
	ProgressAssemble  = 90
	ProgressDone      = 100
)

// Event is a stage checkpoint. Ceiling is the highest value interim
// progress may reach before the next checkpoint.
type Event struct {
	Stage    Stage
	Progress int
	Ceiling  int
	Step     string
}

// ProgressFunc receives checkpoints in order. It must not block.
type ProgressFunc func(Event)

// Builder wires the stage engines together.
type Builder struct {
	audiences   *audience.Constructor
	creatives   *creative.Engine
	optimizer   *budget.Optimizer
	concurrency int
}

// New creates a Builder. concurrency bounds per-ad-set creative fan-out.
func New(aud *audience.Constructor, eng *creative.Engine, opt *budget.Optimizer, concurrency int) *Builder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Builder{audiences: aud, creatives: eng, optimizer: opt, concurrency: concurrency}
}

// Build runs every stage sequentially. Validation problems are carried on
// the campaign; only unrecoverable failures are returned as errors.
func (b *Builder) Build(ctx context.Context, req model.GenerationRequest, progress ProgressFunc) (*model.Campaign, error) {
	if progress == nil {
		progress = func(Event) {}
	}
	log := zap.L().With(zap.String("product_url", req.ProductURL))

	approach, err := model.ParseApproach(string(req.Approach))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: approach")
	}

	var audiences []model.AudienceResult
	var overlaps []model.OverlapWarning
	var strategies []model.AdSetStrategy

	err = b.stage(ctx, log, progress, Event{StageStrategies, ProgressStarted, ProgressAudiences - 1, "Preparing ad set strategies"}, func(context.Context) error {
		strategies, err = Strategies(req, approach)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = b.stage(ctx, log, progress, Event{StageAudiences, ProgressAudiences, ProgressCreatives - 1, "Building audiences"}, func(ctx context.Context) error {
		audiences, overlaps, err = b.audiences.ConstructAll(ctx, strategies)
		return err
	})
	if err != nil {
		return nil, err
	}

	submittable := make([]model.AudienceResult, 0, len(audiences))
	for _, a := range audiences {
		if a.Blocked() {
			log.Warn("pipeline: ad set blocked by validation",
				zap.String("adset_id", a.AdSetID),
				zap.Strings("messages", a.ValidationMessages),
			)
			continue
		}
		submittable = append(submittable, a)
	}

	campaignName := assemble.CampaignName(req)
	creatives := make(map[string]model.CreativeStrategyResult, len(submittable))
	var ledger cost.Ledger
	err = b.stage(ctx, log, progress, Event{StageCreatives, ProgressCreatives, ProgressBudgets - 1, "Generating creatives"}, func(ctx context.Context) error {
		results, genErr := b.generateCreatives(ctx, req, campaignName, submittable)
		if genErr != nil {
			return genErr
		}
		for _, r := range results {
			creatives[r.AdSetID] = r
			if r.Usage != nil {
				ledger.Add(r.Usage.CostUSD)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	budgets := make(map[string]model.BudgetOptimizationResult, len(submittable))
	err = b.stage(ctx, log, progress, Event{StageBudgets, ProgressBudgets, ProgressAssemble - 1, "Optimizing budgets"}, func(context.Context) error {
		if len(submittable) == 0 {
			return nil
		}
		plans, optErr := b.optimizer.Optimize(approach, budgetInputs(submittable, creatives), req.Budget, req.Constraints)
		if optErr != nil {
			return optErr
		}
		for _, p := range plans {
			budgets[p.AdSetID] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var campaign *model.Campaign
	err = b.stage(ctx, log, progress, Event{StageAssemble, ProgressAssemble, ProgressDone - 1, "Assembling campaign"}, func(context.Context) error {
		spent, _ := ledger.Total()
		campaign, err = assemble.Assemble(assemble.Input{
			Request:        req,
			Approach:       approach,
			Audiences:      audiences,
			Overlaps:       overlaps,
			Creatives:      creatives,
			Budgets:        budgets,
			GenerationCost: spent,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info("pipeline: campaign built",
		zap.Int("adsets", campaign.Summary.AdSets),
		zap.Int("blocked", campaign.Summary.BlockedAdSets),
		zap.Int("creatives", campaign.Summary.Creatives),
		zap.Bool("ready", campaign.ReadyToSubmit),
	)
	return campaign, nil
}

// stage reports the checkpoint, runs fn, and logs its duration. A done
// context is checked first so a timed-out job stops at the next boundary.
func (b *Builder) stage(ctx context.Context, log *zap.Logger, progress ProgressFunc, ev Event, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "pipeline: before %s", ev.Stage)
	}
	progress(ev)

	start := time.Now()
	if err := fn(ctx); err != nil {
		log.Error("pipeline: stage failed",
			zap.String("stage", string(ev.Stage)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return eris.Wrapf(err, "pipeline: %s", ev.Stage)
	}
	log.Debug("pipeline: stage complete",
		zap.String("stage", string(ev.Stage)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (b *Builder) generateCreatives(ctx context.Context, req model.GenerationRequest, campaignName string, audiences []model.AudienceResult) ([]model.CreativeStrategyResult, error) {
	persona := ""
	if req.Analysis != nil {
		persona = req.Analysis.Persona
	}

	results := make([]model.CreativeStrategyResult, len(audiences))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, a := range audiences {
		g.Go(func() error {
			results[i] = b.creatives.Strategize(gctx, creative.Request{
				Audience:     a,
				Assets:       req.Assets,
				Brand:        req.Brand,
				ProductURL:   req.ProductURL,
				CampaignName: campaignName,
				Objective:    req.Objective,
				Persona:      persona,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, ctx.Err()
}

func budgetInputs(audiences []model.AudienceResult, creatives map[string]model.CreativeStrategyResult) []budget.AdSetInput {
	inputs := make([]budget.AdSetInput, len(audiences))
	for i, a := range audiences {
		inputs[i] = budget.AdSetInput{
			AdSetID:     a.AdSetID,
			Type:        a.Type,
			Reach:       a.EstimatedReach,
			ExpectedCTR: meanPredictedCTR(creatives[a.AdSetID].Variants),
		}
	}
	return inputs
}

func meanPredictedCTR(variants []model.CreativeVariant) float64 {
	var sum float64
	var n int
	for _, v := range variants {
		if v.PredictedCTR > 0 {
			sum += v.PredictedCTR
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
