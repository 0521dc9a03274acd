package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Approach is the campaign-level strategy that drives budget weights and bidding.
type Approach string

const (
	ApproachRichData       Approach = "RICH_DATA"
	ApproachHybrid         Approach = "HYBRID"
	ApproachDiscoveryFirst Approach = "DISCOVERY_FIRST"
)

// ParseApproach converts a raw string into an Approach. Empty input yields HYBRID.
func ParseApproach(s string) (Approach, error) {
	a := Approach(strings.ToUpper(strings.TrimSpace(s)))
	switch a {
	case "":
		return ApproachHybrid, nil
	case ApproachRichData, ApproachHybrid, ApproachDiscoveryFirst:
		return a, nil
	default:
		return "", eris.Errorf("model: unknown approach %q", s)
	}
}

// BudgetType distinguishes daily from lifetime budgets.
type BudgetType string

const (
	BudgetTypeDaily    BudgetType = "DAILY"
	BudgetTypeLifetime BudgetType = "LIFETIME"
)

// BidStrategy values accepted by the ads platform.
type BidStrategy string

const (
	BidLowestCost BidStrategy = "LOWEST_COST_WITHOUT_CAP"
	BidCostCap    BidStrategy = "COST_CAP"
	BidCap        BidStrategy = "LOWEST_COST_WITH_BID_CAP"
	BidMinROAS    BidStrategy = "LOWEST_COST_WITH_MIN_ROAS"
)

// OptimizationGoal values accepted by the ads platform.
type OptimizationGoal string

const (
	GoalLinkClicks         OptimizationGoal = "LINK_CLICKS"
	GoalOffsiteConversions OptimizationGoal = "OFFSITE_CONVERSIONS"
	GoalLeadGeneration     OptimizationGoal = "LEAD_GENERATION"
	GoalPostEngagement     OptimizationGoal = "POST_ENGAGEMENT"
	GoalValue              OptimizationGoal = "VALUE"
)

// PacingType controls delivery speed.
type PacingType string

const (
	PacingStandard    PacingType = "standard"
	PacingAccelerated PacingType = "accelerated"
)

// BudgetConstraints are the optional spend and bidding limits of a request.
type BudgetConstraints struct {
	MaxCPA              *float64 `json:"max_cpa,omitempty" yaml:"max_cpa,omitempty"`
	MaxCPM              *float64 `json:"max_cpm,omitempty" yaml:"max_cpm,omitempty"`
	MaxDailyBudget      *float64 `json:"max_daily_budget,omitempty" yaml:"max_daily_budget,omitempty"`
	MinDailyBudget      *float64 `json:"min_daily_budget,omitempty" yaml:"min_daily_budget,omitempty"`
	TargetROAS          *float64 `json:"target_roas,omitempty" yaml:"target_roas,omitempty"`
	LearningPhaseBudget *float64 `json:"learning_phase_budget,omitempty" yaml:"learning_phase_budget,omitempty"`
}

// BudgetStrategy is the spend plan of one ad set.
type BudgetStrategy struct {
	BudgetType     BudgetType `json:"budget_type"`
	DailyBudget    float64    `json:"daily_budget,omitempty"`
	LifetimeBudget float64    `json:"lifetime_budget,omitempty"`
	Weight         float64    `json:"weight"`
	Allocated      float64    `json:"allocated_budget"`
	Rationale      []string   `json:"rationale"`
}

// BiddingStrategy is the bid plan of one ad set.
type BiddingStrategy struct {
	BidStrategy      BidStrategy      `json:"bid_strategy"`
	OptimizationGoal OptimizationGoal `json:"optimization_goal"`
	BillingEvent     string           `json:"billing_event"`
	BidAmount        *float64         `json:"bid_amount,omitempty"`
	TargetCost       *float64         `json:"target_cost,omitempty"`
	TargetROAS       *float64         `json:"target_roas,omitempty"`
	Rationale        []string         `json:"rationale"`
}

// PacingStrategy is the delivery plan of one ad set.
type PacingStrategy struct {
	Type      PacingType `json:"type"`
	Rationale string     `json:"rationale"`
}

// BudgetProtection limits spend while the ad set is learning.
type BudgetProtection struct {
	MaxDailySpend float64 `json:"max_daily_spend,omitempty"`
	FreezeEdits   bool    `json:"freeze_edits"`
	Note          string  `json:"note"`
}

// LearningPhase projects the platform warm-up period.
type LearningPhase struct {
	ExpectedDurationDays int              `json:"expected_duration_days"`
	EventsNeeded         int              `json:"events_needed"`
	BudgetProtection     BudgetProtection `json:"budget_protection"`
}

// ScalingTrigger is a declarative rule for adjusting spend after launch.
type ScalingTrigger struct {
	Metric          string  `json:"metric"`
	Condition       string  `json:"condition"`
	Threshold       float64 `json:"threshold,omitempty"`
	ConsecutiveDays int     `json:"consecutive_days,omitempty"`
	Action          string  `json:"action"`
	Adjustment      float64 `json:"adjustment,omitempty"`
}

// RiskSeverity grades a risk factor.
type RiskSeverity string

const (
	RiskLow    RiskSeverity = "low"
	RiskMedium RiskSeverity = "medium"
	RiskHigh   RiskSeverity = "high"
)

// RiskFactor flags a budget or bidding concern for one ad set.
type RiskFactor struct {
	Code     string       `json:"code"`
	Severity RiskSeverity `json:"severity"`
	Message  string       `json:"message"`
}

// BudgetOptimizationResult is the full spend and bidding plan of one ad set.
type BudgetOptimizationResult struct {
	AdSetID         string           `json:"adset_id"`
	BudgetStrategy  BudgetStrategy   `json:"budget_strategy"`
	BiddingStrategy BiddingStrategy  `json:"bidding_strategy"`
	PacingStrategy  PacingStrategy   `json:"pacing_strategy"`
	LearningPhase   LearningPhase    `json:"learning_phase"`
	ScalingTriggers []ScalingTrigger `json:"scaling_triggers"`
	RiskFactors     []RiskFactor     `json:"risk_factors"`
}
