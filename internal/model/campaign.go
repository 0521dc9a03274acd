package model

// SemanticAnalysis is the upstream product analysis a campaign is built from.
type SemanticAnalysis struct {
	Persona  string   `json:"persona,omitempty" yaml:"persona,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Geo      []string `json:"geo,omitempty" yaml:"geo,omitempty"`
}

// GenerationRequest is everything needed to build one campaign.
type GenerationRequest struct {
	ProductURL   string             `json:"product_url" yaml:"product_url"`
	Objective    string             `json:"objective" yaml:"objective"`
	Budget       float64            `json:"budget" yaml:"budget"`
	GeoTargets   []string           `json:"geo_targets,omitempty" yaml:"geo_targets,omitempty"`
	Approach     Approach           `json:"approach,omitempty" yaml:"approach,omitempty"`
	CampaignName string             `json:"campaign_name,omitempty" yaml:"campaign_name,omitempty"`
	Analysis     *SemanticAnalysis  `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Strategies   []AdSetStrategy    `json:"strategies,omitempty" yaml:"strategies,omitempty"`
	Assets       []CreativeAsset    `json:"assets,omitempty" yaml:"assets,omitempty"`
	Brand        *BrandGuidelines   `json:"brand,omitempty" yaml:"brand,omitempty"`
	Constraints  *BudgetConstraints `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// CampaignPayload is the campaign body submitted to the ads platform.
type CampaignPayload struct {
	Name                string   `json:"name"`
	Objective           string   `json:"objective"`
	Status              string   `json:"status"`
	BuyingType          string   `json:"buying_type"`
	SpecialAdCategories []string `json:"special_ad_categories"`
}

// OptimizationPayload is the optimization block of an ad set payload.
type OptimizationPayload struct {
	OptimizationGoal OptimizationGoal `json:"optimization_goal"`
	BillingEvent     string           `json:"billing_event"`
	BidStrategy      BidStrategy      `json:"bid_strategy"`
	BidAmount        *int64           `json:"bid_amount,omitempty"`
}

// BudgetPayload is the budget block of an ad set payload. Amounts are in cents.
type BudgetPayload struct {
	DailyBudget int64      `json:"daily_budget"`
	BudgetType  BudgetType `json:"budget_type"`
	Pacing      []string   `json:"pacing_type,omitempty"`
}

// AdSetPayload is the ad set body submitted to the ads platform.
type AdSetPayload struct {
	Name         string              `json:"name"`
	Targeting    Targeting           `json:"targeting"`
	Optimization OptimizationPayload `json:"optimization"`
	Budget       BudgetPayload       `json:"budget"`
	Status       string              `json:"status"`
}

// CreativeSubmission pairs a creative body with its owning ad set.
type CreativeSubmission struct {
	AdSetRef string          `json:"adset_ref"`
	Creative CreativePayload `json:"creative"`
}

// AssembledAdSet is one fully specified ad set in the entity graph.
type AssembledAdSet struct {
	AdSetID   string                   `json:"adset_id"`
	Payload   AdSetPayload             `json:"payload"`
	Audience  AudienceResult           `json:"audience"`
	Budget    BudgetOptimizationResult `json:"budget"`
	Creatives []CreativeSubmission     `json:"creatives"`
	Variants  []CreativeVariant        `json:"variants"`
}

// APICall is one step of the ordered submission plan.
type APICall struct {
	Order     int      `json:"order"`
	Method    string   `json:"method"`
	Endpoint  string   `json:"endpoint"`
	Ref       string   `json:"ref"`
	DependsOn []string `json:"depends_on,omitempty"`
	Payload   any      `json:"payload"`
}

// ChecklistItem is one pre-submission validation check.
type ChecklistItem struct {
	Check    string `json:"check"`
	Passed   bool   `json:"passed"`
	Blocking bool   `json:"blocking"`
	Detail   string `json:"detail,omitempty"`
}

// CampaignSummary totals the assembled campaign.
type CampaignSummary struct {
	AdSets            int     `json:"adsets"`
	BlockedAdSets     int     `json:"blocked_adsets"`
	Creatives         int     `json:"creatives"`
	FallbackCreatives int     `json:"fallback_creatives"`
	DailySpend        float64 `json:"daily_spend"`
	ProjectedWeekly   float64 `json:"projected_weekly_spend"`
	TotalBudget       float64 `json:"total_budget"`
	GenerationCostUSD float64 `json:"generation_cost_usd"`
}

// Campaign is the submission-ready output of the pipeline.
type Campaign struct {
	Name            string           `json:"name"`
	ProductURL      string           `json:"product_url"`
	Approach        Approach         `json:"approach"`
	Payload         CampaignPayload  `json:"payload"`
	AdSets          []AssembledAdSet `json:"adsets"`
	BlockedAdSets   []AudienceResult `json:"blocked_adsets,omitempty"`
	OverlapWarnings []OverlapWarning `json:"overlap_warnings,omitempty"`
	APICalls        []APICall        `json:"api_calls"`
	Checklist       []ChecklistItem  `json:"checklist"`
	ReadyToSubmit   bool             `json:"ready_to_submit"`
	Summary         CampaignSummary  `json:"summary"`
}
