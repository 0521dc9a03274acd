package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-cli/internal/config"
	"github.com/sells-group/campaign-cli/internal/model"
)

func f(v float64) *float64 { return &v }

func newTestOptimizer() *Optimizer {
	return NewOptimizer(config.BudgetConfig{MinDailyFloor: 10, SmallAudienceCap: 50})
}

var (
	broadIn     = AdSetInput{AdSetID: "broad", Type: model.AdSetTypeBroad, Reach: model.ReachRange{Min: 10_000_000, Max: 50_000_000}}
	interestIn  = AdSetInput{AdSetID: "interest", Type: model.AdSetTypeInterest, Reach: model.ReachRange{Min: 150_000, Max: 600_000}}
	retargetIn  = AdSetInput{AdSetID: "retarget", Type: model.AdSetTypeRetargeting, Reach: model.ReachRange{Min: 1_000, Max: 50_000}}
	lookalikeIn = AdSetInput{AdSetID: "lal", Type: model.AdSetTypeLookalike, Reach: model.ReachRange{Min: 1_600_000, Max: 2_400_000}}
)

func TestOptimize_DiscoveryExample(t *testing.T) {
	res, err := newTestOptimizer().Optimize(model.ApproachDiscoveryFirst, []AdSetInput{broadIn, interestIn}, 1000, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.InDelta(t, 0.6, res[0].BudgetStrategy.Weight, 1e-9)
	assert.InDelta(t, 0.4, res[1].BudgetStrategy.Weight, 1e-9)
	assert.InDelta(t, 85.71, res[0].BudgetStrategy.DailyBudget, 0.01)
	assert.InDelta(t, 57.14, res[1].BudgetStrategy.DailyBudget, 0.01)
	assert.Equal(t, model.BudgetTypeDaily, res[0].BudgetStrategy.BudgetType)
	assert.Equal(t, model.BidLowestCost, res[0].BiddingStrategy.BidStrategy)
	assert.Equal(t, model.GoalLinkClicks, res[0].BiddingStrategy.OptimizationGoal)
	assert.Equal(t, "IMPRESSIONS", res[0].BiddingStrategy.BillingEvent)
}

func TestOptimize_RejectsNonPositiveTotal(t *testing.T) {
	_, err := newTestOptimizer().Optimize(model.ApproachHybrid, []AdSetInput{broadIn}, 0, nil)
	assert.Error(t, err)
}

func TestOptimize_FloorAndSmallAudienceCap(t *testing.T) {
	// A tiny total hits the floor, then renormalization pulls it back under 110%.
	res, err := newTestOptimizer().Optimize(model.ApproachHybrid, []AdSetInput{broadIn, interestIn}, 70, nil)
	require.NoError(t, err)
	assert.Contains(t, res[0].BudgetStrategy.Rationale[1], "floor")
	assert.LessOrEqual(t, WeeklyCommitment(res), 70*1.1+1e-6)

	// Large total on a small audience is capped at $50/day.
	res, err = newTestOptimizer().Optimize(model.ApproachRichData, []AdSetInput{retargetIn}, 10_000, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, res[0].BudgetStrategy.DailyBudget, 1e-9)
	assert.Equal(t, model.PacingAccelerated, res[0].PacingStrategy.Type)
}

func TestOptimize_ConstraintClamps(t *testing.T) {
	c := &model.BudgetConstraints{MinDailyBudget: f(40), MaxDailyBudget: f(60)}
	res, err := newTestOptimizer().Optimize(model.ApproachDiscoveryFirst, []AdSetInput{broadIn, interestIn}, 1000, c)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, res[0].BudgetStrategy.DailyBudget, 1e-9)
	assert.InDelta(t, 57.14, res[1].BudgetStrategy.DailyBudget, 0.01)

	c = &model.BudgetConstraints{MinDailyBudget: f(100)}
	res, err = newTestOptimizer().Optimize(model.ApproachDiscoveryFirst, []AdSetInput{broadIn, interestIn}, 1000, c)
	require.NoError(t, err)
	// Floors push the weekly commitment over 110%, so both are scaled back.
	assert.LessOrEqual(t, WeeklyCommitment(res), 1000*1.1+1e-6)
}

func TestOptimize_RenormalizesOverspend(t *testing.T) {
	adsets := make([]AdSetInput, 0, 10)
	for i := 0; i < 10; i++ {
		a := interestIn
		a.AdSetID = string(rune('a' + i))
		adsets = append(adsets, a)
	}
	// Ten ad sets at the $10 floor commit $700/week against a $200 total.
	res, err := newTestOptimizer().Optimize(model.ApproachHybrid, adsets, 200, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, WeeklyCommitment(res), 200*1.1+1e-6)
	assert.Contains(t, res[0].BudgetStrategy.Rationale[len(res[0].BudgetStrategy.Rationale)-1], "scaled by")
}

func TestOptimize_BiddingTable(t *testing.T) {
	tests := []struct {
		name     string
		approach model.Approach
		in       AdSetInput
		c        *model.BudgetConstraints
		wantBid  model.BidStrategy
		wantGoal model.OptimizationGoal
	}{
		{"rich retargeting roas", model.ApproachRichData, retargetIn, &model.BudgetConstraints{TargetROAS: f(3)}, model.BidMinROAS, model.GoalOffsiteConversions},
		{"rich lookalike roas ignored", model.ApproachRichData, lookalikeIn, &model.BudgetConstraints{TargetROAS: f(3)}, model.BidLowestCost, model.GoalOffsiteConversions},
		{"rich cpa", model.ApproachRichData, lookalikeIn, &model.BudgetConstraints{MaxCPA: f(25)}, model.BidCostCap, model.GoalOffsiteConversions},
		{"hybrid cpa", model.ApproachHybrid, broadIn, &model.BudgetConstraints{MaxCPA: f(25)}, model.BidCostCap, model.GoalLinkClicks},
		{"hybrid none", model.ApproachHybrid, broadIn, nil, model.BidLowestCost, model.GoalLinkClicks},
		{"discovery ignores cpa", model.ApproachDiscoveryFirst, broadIn, &model.BudgetConstraints{MaxCPA: f(25)}, model.BidLowestCost, model.GoalLinkClicks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newTestOptimizer().Optimize(tt.approach, []AdSetInput{tt.in}, 1000, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBid, res[0].BiddingStrategy.BidStrategy)
			assert.Equal(t, tt.wantGoal, res[0].BiddingStrategy.OptimizationGoal)
			if tt.wantBid == model.BidCostCap {
				require.NotNil(t, res[0].BiddingStrategy.TargetCost)
				assert.InDelta(t, 25.0, *res[0].BiddingStrategy.TargetCost, 1e-9)
				assert.True(t, hasRisk(res[0].RiskFactors, "TARGET_COST_WITHOUT_HISTORY"))
			}
		})
	}
}

func TestOptimize_CostCapWithHistoryHasNoHistoryRisk(t *testing.T) {
	in := lookalikeIn
	in.HistoricalCPA = f(20)
	res, err := newTestOptimizer().Optimize(model.ApproachRichData, []AdSetInput{in}, 1000, &model.BudgetConstraints{MaxCPA: f(25)})
	require.NoError(t, err)
	assert.False(t, hasRisk(res[0].RiskFactors, "TARGET_COST_WITHOUT_HISTORY"))
}

func TestOptimize_Risks(t *testing.T) {
	res, err := newTestOptimizer().Optimize(model.ApproachRichData, []AdSetInput{broadIn, retargetIn}, 100, nil)
	require.NoError(t, err)

	// broad is floored, then scaled back well under $20/day.
	assert.True(t, hasRisk(res[0].RiskFactors, "LOW_DAILY_BUDGET"))
	assert.True(t, hasRisk(res[0].RiskFactors, "UNDERFUNDED_LARGE_AUDIENCE"))
	// retargeting default CPM of $25 exceeds the $20 threshold.
	assert.True(t, hasRisk(res[1].RiskFactors, "HIGH_EXPECTED_CPM"))
}

func TestOptimize_SaturationRisk(t *testing.T) {
	tiny := AdSetInput{AdSetID: "tiny", Type: model.AdSetTypeRetargeting, Reach: model.ReachRange{Min: 1_000, Max: 3_000}}
	res, err := newTestOptimizer().Optimize(model.ApproachRichData, []AdSetInput{tiny}, 5000, nil)
	require.NoError(t, err)
	assert.True(t, hasRisk(res[0].RiskFactors, "AUDIENCE_SATURATION"))
}

func TestOptimize_LearningPhaseBounds(t *testing.T) {
	for _, a := range []model.Approach{model.ApproachRichData, model.ApproachHybrid, model.ApproachDiscoveryFirst} {
		res, err := newTestOptimizer().Optimize(a, []AdSetInput{broadIn, interestIn, retargetIn, lookalikeIn}, 3000, nil)
		require.NoError(t, err)
		for _, r := range res {
			d := r.LearningPhase.ExpectedDurationDays
			assert.GreaterOrEqual(t, d, 3)
			assert.LessOrEqual(t, d, 14)
			assert.True(t, r.LearningPhase.BudgetProtection.FreezeEdits)
		}
	}
}

func TestOptimize_LearningPhaseBudgetProtection(t *testing.T) {
	res, err := newTestOptimizer().Optimize(model.ApproachHybrid, []AdSetInput{broadIn}, 7000, &model.BudgetConstraints{LearningPhaseBudget: f(25)})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res[0].LearningPhase.BudgetProtection.MaxDailySpend, 1e-9)
}

func TestOptimize_ScalingTriggers(t *testing.T) {
	res, err := newTestOptimizer().Optimize(model.ApproachHybrid, []AdSetInput{broadIn}, 1000, &model.BudgetConstraints{MaxCPA: f(20)})
	require.NoError(t, err)
	triggers := res[0].ScalingTriggers
	require.GreaterOrEqual(t, len(triggers), 4)
	assert.Equal(t, "cpa", triggers[0].Metric)
	assert.Equal(t, 3, triggers[0].ConsecutiveDays)
	assert.InDelta(t, 0.2, triggers[0].Adjustment, 1e-9)
	assert.InDelta(t, 30.0, triggers[1].Threshold, 1e-9)
}

func TestLearningDays(t *testing.T) {
	assert.Equal(t, 13, LearningDays(100, 0.008))
	assert.Equal(t, 3, LearningDays(50, 0.02))
	assert.Equal(t, 14, LearningDays(200, 0.001))
	assert.Equal(t, 14, LearningDays(100, 0))
}

func TestEventsNeeded(t *testing.T) {
	assert.Equal(t, 100, EventsNeeded(model.GoalLinkClicks))
	assert.Equal(t, 50, EventsNeeded(model.GoalOffsiteConversions))
	assert.Equal(t, 50, EventsNeeded(model.GoalLeadGeneration))
	assert.Equal(t, 200, EventsNeeded(model.GoalPostEngagement))
}

func hasRisk(risks []model.RiskFactor, code string) bool {
	for _, r := range risks {
		if r.Code == code {
			return true
		}
	}
	return false
}
