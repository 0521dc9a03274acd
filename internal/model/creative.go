package model

import "fmt"

// Angle is the persuasive framing of a creative variant.
type Angle string

const (
	AnglePain        Angle = "pain"
	AngleBenefit     Angle = "benefit"
	AngleSocialProof Angle = "social_proof"
	AngleOffer       Angle = "offer"
	AngleUrgency     Angle = "urgency"
	AngleCuriosity   Angle = "curiosity"
)

// Valid reports whether a is a recognized angle.
func (a Angle) Valid() bool {
	switch a {
	case AnglePain, AngleBenefit, AngleSocialProof, AngleOffer, AngleUrgency, AngleCuriosity:
		return true
	}
	return false
}

// ExpectedMetric is the KPI a creative variant is predicted to move.
type ExpectedMetric string

const (
	MetricCTR        ExpectedMetric = "CTR"
	MetricCVR        ExpectedMetric = "CVR"
	MetricEngagement ExpectedMetric = "ENGAGEMENT"
)

// Valid reports whether m is a recognized metric.
func (m ExpectedMetric) Valid() bool {
	switch m {
	case MetricCTR, MetricCVR, MetricEngagement:
		return true
	}
	return false
}

// CreativeSource records which path produced a creative strategy.
type CreativeSource string

const (
	CreativeSourceGenerator CreativeSource = "generator"
	CreativeSourceFallback  CreativeSource = "fallback"
)

// CreativeAsset is a base asset supplied with the generation request.
type CreativeAsset struct {
	ID           string `json:"id" yaml:"id"`
	Type         string `json:"type" yaml:"type"`
	Headline     string `json:"headline" yaml:"headline"`
	PrimaryText  string `json:"primary_text" yaml:"primary_text"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL     string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	LinkURL      string `json:"link_url,omitempty" yaml:"link_url,omitempty"`
	CallToAction string `json:"call_to_action,omitempty" yaml:"call_to_action,omitempty"`
}

// BrandGuidelines constrains generated copy.
type BrandGuidelines struct {
	Tone      string   `json:"tone,omitempty" yaml:"tone,omitempty"`
	Voice     string   `json:"voice,omitempty" yaml:"voice,omitempty"`
	Avoid     []string `json:"avoid,omitempty" yaml:"avoid,omitempty"`
	PageID    string   `json:"page_id,omitempty" yaml:"page_id,omitempty"`
	BrandName string   `json:"brand_name,omitempty" yaml:"brand_name,omitempty"`
}

// CallToAction is the link-ad button.
type CallToAction struct {
	Type  string            `json:"type"`
	Value map[string]string `json:"value,omitempty"`
}

// LinkData is the link_data block of an object story.
type LinkData struct {
	Message      string       `json:"message"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Link         string       `json:"link"`
	Picture      string       `json:"picture,omitempty"`
	CallToAction CallToAction `json:"call_to_action"`
}

// ObjectStorySpec wraps link data with the publishing page.
type ObjectStorySpec struct {
	PageID   string   `json:"page_id,omitempty"`
	LinkData LinkData `json:"link_data"`
}

// CreativePayload is the creative body submitted to the ads platform.
type CreativePayload struct {
	Name            string          `json:"name"`
	ObjectStorySpec ObjectStorySpec `json:"object_story_spec"`
}

// CreativeVariant is one testable creative for an ad set.
type CreativeVariant struct {
	AdSetID            string            `json:"adset_id"`
	CreativeID         string            `json:"creative_id"`
	Angle              Angle             `json:"angle"`
	ExpectedMetric     ExpectedMetric    `json:"expected_metric"`
	Hypothesis         string            `json:"hypothesis"`
	PredictedCTR       float64           `json:"predicted_ctr,omitempty"`
	AssetID            string            `json:"asset_id,omitempty"`
	Payload            CreativePayload   `json:"payload"`
	TrackingParameters map[string]string `json:"tracking_parameters"`
}

// CreativeID formats the per-ad-set creative identifier (1-based).
func CreativeID(adsetID string, n int) string {
	return fmt.Sprintf("%s_creative_%d", adsetID, n)
}

// TestingFramework describes how the variants of one ad set are compared.
type TestingFramework struct {
	PrimaryMetric      ExpectedMetric `json:"primary_metric"`
	MinimumImpressions int            `json:"minimum_impressions_per_variant"`
	EvaluationDays     int            `json:"evaluation_days"`
	WinnerCriteria     string         `json:"winner_criteria"`
	Hypotheses         []string       `json:"hypotheses"`
}

// GenerationUsage is the usage and cost metadata returned by the content generator.
type GenerationUsage struct {
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// CreativeStrategyResult is the creative plan for one ad set.
type CreativeStrategyResult struct {
	AdSetID          string            `json:"adset_id"`
	TargetCount      int               `json:"target_count"`
	Variants         []CreativeVariant `json:"variants"`
	TestingFramework TestingFramework  `json:"testing_framework"`
	Source           CreativeSource    `json:"source"`
	FallbackReason   string            `json:"fallback_reason,omitempty"`
	Usage            *GenerationUsage  `json:"usage,omitempty"`
}
