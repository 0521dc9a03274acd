package budget

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/config"
	"github.com/sells-group/campaign-cli/internal/model"
)

const (
	campaignDays         = 7
	overspendTolerance   = 1.1
	smallAudienceReach   = 100_000
	acceleratedReach     = 50_000
	impressionsPerDay    = 1000.0
	minLearningDays      = 3
	maxLearningDays      = 14
	lowDailyBudget       = 20.0
	largeAudienceReach   = 10_000_000
	largeAudienceMinimum = 30.0
	highCPMDefault       = 20.0
	billingImpressions   = "IMPRESSIONS"
)

// AdSetInput is what the optimizer needs to know about one ad set.
type AdSetInput struct {
	AdSetID string
	Type    model.AdSetType
	Reach   model.ReachRange
	// ExpectedCTR is the mean predicted CTR of the ad set's creatives; zero
	// falls back to the audience baseline.
	ExpectedCTR float64
	// ExpectedCPM overrides the per-type default when positive.
	ExpectedCPM float64
	// HistoricalCPA is the account's observed CPA, when known.
	HistoricalCPA *float64
}

// Optimizer computes per-ad-set budget plans.
type Optimizer struct {
	floor    float64
	smallCap float64
}

// NewOptimizer creates an Optimizer from the budget config section.
func NewOptimizer(cfg config.BudgetConfig) *Optimizer {
	o := &Optimizer{floor: cfg.MinDailyFloor, smallCap: cfg.SmallAudienceCap}
	if o.floor <= 0 {
		o.floor = 10
	}
	if o.smallCap <= 0 {
		o.smallCap = 50
	}
	return o
}

// Optimize plans every ad set, then scales daily budgets down if the
// weekly commitment would exceed the total by more than 10%.
func (o *Optimizer) Optimize(approach model.Approach, adsets []AdSetInput, total float64, c *model.BudgetConstraints) ([]model.BudgetOptimizationResult, error) {
	if total <= 0 {
		return nil, eris.Errorf("budget: total budget must be positive, got %.2f", total)
	}
	if c == nil {
		c = &model.BudgetConstraints{}
	}

	types := make([]model.AdSetType, len(adsets))
	for i, a := range adsets {
		types[i] = a.Type
	}
	weights, err := Weights(approach, types)
	if err != nil {
		return nil, err
	}

	results := make([]model.BudgetOptimizationResult, len(adsets))
	for i, a := range adsets {
		results[i] = model.BudgetOptimizationResult{
			AdSetID:         a.AdSetID,
			BudgetStrategy:  o.allocate(a, weights[i], total, c),
			BiddingStrategy: bidding(approach, a, c),
			PacingStrategy:  pacing(a),
		}
	}

	Renormalize(results, total)

	for i, a := range adsets {
		r := &results[i]
		r.LearningPhase = learningPhase(a, r.BudgetStrategy.DailyBudget, r.BiddingStrategy.OptimizationGoal, c)
		r.ScalingTriggers = scalingTriggers(a, c)
		r.RiskFactors = risks(a, r.BudgetStrategy.DailyBudget, r.BiddingStrategy.BidStrategy, c)
	}

	zap.L().Debug("budget: optimized",
		zap.String("approach", string(approach)),
		zap.Int("adsets", len(results)),
		zap.Float64("total_budget", total),
		zap.Float64("weekly_commitment", WeeklyCommitment(results)),
	)
	return results, nil
}

func (o *Optimizer) allocate(a AdSetInput, weight, total float64, c *model.BudgetConstraints) model.BudgetStrategy {
	allocated := total * weight
	daily := allocated / campaignDays
	rationale := []string{
		fmt.Sprintf("%.0f%% of $%.2f total spread over %d days = $%.2f/day", weight*100, total, campaignDays, daily),
	}

	if daily < o.floor {
		daily = o.floor
		rationale = append(rationale, fmt.Sprintf("raised to the $%.2f/day platform floor", o.floor))
	}
	if c.MinDailyBudget != nil && daily < *c.MinDailyBudget {
		daily = *c.MinDailyBudget
		rationale = append(rationale, fmt.Sprintf("raised to min_daily_budget $%.2f", daily))
	}
	if c.MaxDailyBudget != nil && daily > *c.MaxDailyBudget {
		daily = *c.MaxDailyBudget
		rationale = append(rationale, fmt.Sprintf("capped at max_daily_budget $%.2f", daily))
	}
	if a.Reach.Mid() < smallAudienceReach && daily > o.smallCap {
		daily = o.smallCap
		rationale = append(rationale, fmt.Sprintf("capped at $%.2f/day to avoid saturating an audience under %d", o.smallCap, smallAudienceReach))
	}

	return model.BudgetStrategy{
		BudgetType:  model.BudgetTypeDaily,
		DailyBudget: round2(daily),
		Weight:      weight,
		Allocated:   round2(allocated),
		Rationale:   rationale,
	}
}

func bidding(approach model.Approach, a AdSetInput, c *model.BudgetConstraints) model.BiddingStrategy {
	b := model.BiddingStrategy{
		BidStrategy:      model.BidLowestCost,
		OptimizationGoal: model.GoalLinkClicks,
		BillingEvent:     billingImpressions,
	}

	switch approach {
	case model.ApproachRichData:
		b.OptimizationGoal = model.GoalOffsiteConversions
		switch {
		case a.Type == model.AdSetTypeRetargeting && c.TargetROAS != nil:
			b.BidStrategy = model.BidMinROAS
			b.TargetROAS = c.TargetROAS
			b.Rationale = append(b.Rationale, fmt.Sprintf("retargeting with known value signals bids to a %.2fx ROAS floor", *c.TargetROAS))
		case c.MaxCPA != nil:
			b.BidStrategy = model.BidCostCap
			b.TargetCost = c.MaxCPA
			b.Rationale = append(b.Rationale, fmt.Sprintf("cost cap at max_cpa $%.2f", *c.MaxCPA))
		default:
			b.Rationale = append(b.Rationale, "no cost constraint; lowest cost maximizes conversions")
		}
	case model.ApproachHybrid:
		if c.MaxCPA != nil {
			b.BidStrategy = model.BidCostCap
			b.TargetCost = c.MaxCPA
			b.Rationale = append(b.Rationale, fmt.Sprintf("cost cap at max_cpa $%.2f while exploring", *c.MaxCPA))
		} else {
			b.Rationale = append(b.Rationale, "lowest cost lets delivery explore freely")
		}
	default:
		b.Rationale = append(b.Rationale, "discovery favors uncapped lowest-cost delivery")
	}

	b.Rationale = append(b.Rationale, fmt.Sprintf("optimizing for %s, billed on %s", b.OptimizationGoal, b.BillingEvent))
	return b
}

func pacing(a AdSetInput) model.PacingStrategy {
	if a.Type == model.AdSetTypeRetargeting && a.Reach.Mid() < acceleratedReach {
		return model.PacingStrategy{
			Type:      model.PacingAccelerated,
			Rationale: "small retargeting pool; reach warm visitors before intent decays",
		}
	}
	return model.PacingStrategy{
		Type:      model.PacingStandard,
		Rationale: "even delivery across the day",
	}
}

// EventsNeeded returns the optimization events required to exit learning.
func EventsNeeded(goal model.OptimizationGoal) int {
	switch goal {
	case model.GoalOffsiteConversions, model.GoalLeadGeneration:
		return 50
	case model.GoalPostEngagement:
		return 200
	default:
		return 100
	}
}

// LearningDays estimates the learning phase length, clamped to [3, 14].
func LearningDays(events int, ctr float64) int {
	if ctr <= 0 {
		return maxLearningDays
	}
	days := int(math.Ceil(float64(events) / (impressionsPerDay * ctr)))
	return max(minLearningDays, min(maxLearningDays, days))
}

func learningPhase(a AdSetInput, daily float64, goal model.OptimizationGoal, c *model.BudgetConstraints) model.LearningPhase {
	ctr := a.ExpectedCTR
	if ctr <= 0 {
		ctr = model.BaselineCTR(a.Type)
	}
	events := EventsNeeded(goal)

	protect := model.BudgetProtection{
		MaxDailySpend: daily,
		FreezeEdits:   true,
		Note:          "avoid budget or targeting edits until learning completes",
	}
	if c.LearningPhaseBudget != nil && *c.LearningPhaseBudget < daily {
		protect.MaxDailySpend = *c.LearningPhaseBudget
		protect.Note = fmt.Sprintf("hold spend at $%.2f/day during learning; %s", *c.LearningPhaseBudget, protect.Note)
	}

	return model.LearningPhase{
		ExpectedDurationDays: LearningDays(events, ctr),
		EventsNeeded:         events,
		BudgetProtection:     protect,
	}
}

// ExpectedCPM returns the default CPM for an audience family.
func ExpectedCPM(t model.AdSetType) float64 {
	switch t {
	case model.AdSetTypeRetargeting:
		return 25
	case model.AdSetTypeLookalike:
		return 15
	case model.AdSetTypeInterest:
		return 12
	default:
		return 8
	}
}

func scalingTriggers(a AdSetInput, c *model.BudgetConstraints) []model.ScalingTrigger {
	var out []model.ScalingTrigger
	if c.MaxCPA != nil {
		out = append(out,
			model.ScalingTrigger{Metric: "cpa", Condition: "below", Threshold: *c.MaxCPA, ConsecutiveDays: 3, Action: "increase_budget", Adjustment: 0.2},
			model.ScalingTrigger{Metric: "cpa", Condition: "above", Threshold: *c.MaxCPA * 1.5, ConsecutiveDays: 2, Action: "decrease_budget", Adjustment: -0.2},
		)
	} else if c.TargetROAS != nil {
		out = append(out,
			model.ScalingTrigger{Metric: "roas", Condition: "above", Threshold: *c.TargetROAS, ConsecutiveDays: 3, Action: "increase_budget", Adjustment: 0.2},
		)
	} else {
		out = append(out,
			model.ScalingTrigger{Metric: "ctr", Condition: "above", Threshold: model.BaselineCTR(a.Type) * 1.5, ConsecutiveDays: 3, Action: "increase_budget", Adjustment: 0.2},
		)
	}
	return append(out,
		model.ScalingTrigger{Metric: "frequency", Condition: "above", Threshold: 3, Action: "refresh_creatives"},
		model.ScalingTrigger{Metric: "ctr", Condition: "below_after_learning", Threshold: 0.005, Action: "rotate_creatives"},
	)
}

func risks(a AdSetInput, daily float64, bid model.BidStrategy, c *model.BudgetConstraints) []model.RiskFactor {
	out := []model.RiskFactor{}
	cpm := a.ExpectedCPM
	if cpm <= 0 {
		cpm = ExpectedCPM(a.Type)
	}

	if daily < lowDailyBudget {
		out = append(out, model.RiskFactor{
			Code:     "LOW_DAILY_BUDGET",
			Severity: model.RiskMedium,
			Message:  fmt.Sprintf("$%.2f/day may not exit the learning phase", daily),
		})
	}

	weeklyImpressions := daily / cpm * 1000 * campaignDays
	if mid := a.Reach.Mid(); mid > 0 && weeklyImpressions > float64(mid) {
		out = append(out, model.RiskFactor{
			Code:     "AUDIENCE_SATURATION",
			Severity: model.RiskHigh,
			Message:  fmt.Sprintf("~%.0f weekly impressions against ~%d people; frequency will climb fast", weeklyImpressions, mid),
		})
	}

	if a.Reach.Max > largeAudienceReach && daily < largeAudienceMinimum {
		out = append(out, model.RiskFactor{
			Code:     "UNDERFUNDED_LARGE_AUDIENCE",
			Severity: model.RiskMedium,
			Message:  fmt.Sprintf("$%.2f/day is thin for an audience over %d", daily, largeAudienceReach),
		})
	}

	limit := highCPMDefault
	if c.MaxCPM != nil {
		limit = *c.MaxCPM
	}
	if cpm > limit {
		out = append(out, model.RiskFactor{
			Code:     "HIGH_EXPECTED_CPM",
			Severity: model.RiskLow,
			Message:  fmt.Sprintf("expected CPM $%.2f exceeds $%.2f", cpm, limit),
		})
	}

	if bid == model.BidCostCap && a.HistoricalCPA == nil {
		out = append(out, model.RiskFactor{
			Code:     "TARGET_COST_WITHOUT_HISTORY",
			Severity: model.RiskMedium,
			Message:  "cost cap set without historical CPA; delivery may stall if the cap is unrealistic",
		})
	}
	return out
}

// Renormalize scales daily budgets so that the weekly commitment stays
// within 110% of total. It reports whether scaling was applied.
func Renormalize(results []model.BudgetOptimizationResult, total float64) bool {
	weekly := WeeklyCommitment(results)
	if weekly <= total*overspendTolerance {
		return false
	}

	factor := total / weekly
	for i := range results {
		b := &results[i].BudgetStrategy
		b.DailyBudget = math.Floor(b.DailyBudget*factor*100) / 100
		b.Rationale = append(b.Rationale,
			fmt.Sprintf("scaled by %.3f so the weekly commitment fits the $%.2f total", factor, total))
	}
	return true
}

// WeeklyCommitment returns the sum of daily budgets over the campaign window.
func WeeklyCommitment(results []model.BudgetOptimizationResult) float64 {
	var sum float64
	for _, r := range results {
		sum += r.BudgetStrategy.DailyBudget * campaignDays
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
