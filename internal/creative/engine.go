// Package creative plans the creative variants of each ad set, using a
// content generator when available and a deterministic angle table otherwise.
package creative

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/internal/resilience"
)

const (
	// MinVariants is the fewest variants a generated plan may carry.
	MinVariants = 3
	// MaxVariants caps how many variants one ad set may carry.
	MaxVariants = 6
)

var (
	// ErrInvalidResponse is returned when the generator's payload fails validation.
	ErrInvalidResponse = eris.New("creative: invalid generator response")
	// ErrNoGenerator is returned when no generator is configured.
	ErrNoGenerator = eris.New("creative: no generator configured")
)

// Brief is the structured input handed to a Generator.
type Brief struct {
	AdSetID       string                 `json:"adset_id"`
	AdSetName     string                 `json:"adset_name"`
	AdSetType     model.AdSetType        `json:"adset_type"`
	Targeting     model.Targeting        `json:"targeting"`
	TargetCount   int                    `json:"target_count"`
	ProductURL    string                 `json:"product_url"`
	Objective     string                 `json:"objective,omitempty"`
	Persona       string                 `json:"persona,omitempty"`
	Assets        []model.CreativeAsset  `json:"assets"`
	Brand         *model.BrandGuidelines `json:"brand,omitempty"`
	AllowedAngles []model.Angle          `json:"allowed_angles"`
}

// Generated is the raw structured output of a Generator.
type Generated struct {
	Variants      []GeneratedVariant     `json:"variants"`
	PrimaryMetric string                 `json:"primary_metric"`
	Usage         *model.GenerationUsage `json:"-"`
}

// GeneratedVariant is one variant as returned by the generator.
type GeneratedVariant struct {
	Angle          string  `json:"angle"`
	ExpectedMetric string  `json:"expected_metric"`
	Hypothesis     string  `json:"hypothesis"`
	Headline       string  `json:"headline"`
	PrimaryText    string  `json:"primary_text"`
	Description    string  `json:"description"`
	CallToAction   string  `json:"call_to_action"`
	AssetID        string  `json:"asset_id"`
	PredictedCTR   float64 `json:"predicted_ctr"`
}

// UsageError is a generator failure that was still billed. Usage is the
// priced token usage of the rejected reply.
type UsageError struct {
	Err   error
	Usage *model.GenerationUsage
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// UsageOf returns the usage carried by err, or nil.
func UsageOf(err error) *model.GenerationUsage {
	var ue *UsageError
	if errors.As(err, &ue) {
		return ue.Usage
	}
	return nil
}

// Generator produces creative variants for a brief. A reply that was billed
// but rejected is reported as a *UsageError.
type Generator interface {
	Generate(ctx context.Context, brief Brief) (*Generated, error)
}

// Request is the input of Strategize for one ad set.
type Request struct {
	Audience     model.AudienceResult
	Assets       []model.CreativeAsset
	Brand        *model.BrandGuidelines
	ProductURL   string
	CampaignName string
	Objective    string
	Persona      string
}

// Engine plans creatives for ad sets.
type Engine struct {
	gen Generator
}

// NewEngine creates an Engine. A nil generator always uses the fallback.
func NewEngine(gen Generator) *Engine {
	return &Engine{gen: gen}
}

// TargetCount returns how many variants an audience family should test.
// High-intent audiences get fewer, cold audiences more.
func TargetCount(t model.AdSetType) int {
	switch t {
	case model.AdSetTypeRetargeting:
		return 3
	case model.AdSetTypeLookalike, model.AdSetTypeInterest:
		return 4
	default:
		return 5
	}
}

// Strategize always returns a usable result. Any generator failure, including
// a payload that fails validation, degrades to the fallback table.
func (e *Engine) Strategize(ctx context.Context, req Request) model.CreativeStrategyResult {
	target := TargetCount(req.Audience.Type)

	return e.generate(ctx, req, target).OrElse(func(err error) model.CreativeStrategyResult {
		zap.L().Warn("creative: generator unavailable, using fallback",
			zap.String("adset_id", req.Audience.AdSetID),
			zap.Error(err),
		)
		res := Fallback(req, target, err.Error())
		res.Usage = UsageOf(err)
		return res
	})
}

func (e *Engine) generate(ctx context.Context, req Request, target int) resilience.Result[model.CreativeStrategyResult] {
	if e.gen == nil {
		return resilience.Fail[model.CreativeStrategyResult](ErrNoGenerator)
	}

	out, err := e.gen.Generate(ctx, briefFor(req, target))
	if err != nil {
		return resilience.Fail[model.CreativeStrategyResult](err)
	}
	if err := validateGenerated(out, target); err != nil {
		if out != nil && out.Usage != nil {
			err = &UsageError{Err: err, Usage: out.Usage}
		}
		return resilience.Fail[model.CreativeStrategyResult](err)
	}
	return resilience.Ok(fromGenerated(req, target, out))
}

func briefFor(req Request, target int) Brief {
	return Brief{
		AdSetID:       req.Audience.AdSetID,
		AdSetName:     req.Audience.Name,
		AdSetType:     req.Audience.Type,
		Targeting:     req.Audience.Targeting,
		TargetCount:   target,
		ProductURL:    req.ProductURL,
		Objective:     req.Objective,
		Persona:       req.Persona,
		Assets:        req.Assets,
		Brand:         req.Brand,
		AllowedAngles: []model.Angle{model.AnglePain, model.AngleBenefit, model.AngleSocialProof, model.AngleOffer, model.AngleUrgency, model.AngleCuriosity},
	}
}

func validateGenerated(g *Generated, target int) error {
	if g == nil {
		return eris.Wrap(ErrInvalidResponse, "empty payload")
	}
	least := min(MinVariants, target)
	if len(g.Variants) < least || len(g.Variants) > MaxVariants {
		return eris.Wrapf(ErrInvalidResponse, "got %d variants, want %d-%d", len(g.Variants), least, MaxVariants)
	}
	for i, v := range g.Variants {
		if !model.Angle(v.Angle).Valid() {
			return eris.Wrapf(ErrInvalidResponse, "variant %d: unknown angle %q", i+1, v.Angle)
		}
		if v.ExpectedMetric != "" && !model.ExpectedMetric(v.ExpectedMetric).Valid() {
			return eris.Wrapf(ErrInvalidResponse, "variant %d: unknown metric %q", i+1, v.ExpectedMetric)
		}
		if v.Hypothesis == "" {
			return eris.Wrapf(ErrInvalidResponse, "variant %d: missing hypothesis", i+1)
		}
		if v.Headline == "" || v.PrimaryText == "" {
			return eris.Wrapf(ErrInvalidResponse, "variant %d: missing copy", i+1)
		}
	}
	return nil
}

func fromGenerated(req Request, target int, g *Generated) model.CreativeStrategyResult {
	assets := indexAssets(req.Assets)
	variants := make([]model.CreativeVariant, 0, len(g.Variants))
	for i, gv := range g.Variants {
		angle := model.Angle(gv.Angle)
		metric := model.ExpectedMetric(gv.ExpectedMetric)
		if metric == "" {
			metric = MetricFor(angle)
		}
		c := copyBlock{
			Headline:     gv.Headline,
			PrimaryText:  gv.PrimaryText,
			Description:  gv.Description,
			CallToAction: gv.CallToAction,
		}
		if a, ok := assets[gv.AssetID]; ok {
			c.ImageURL = a.ImageURL
			c.LinkURL = a.LinkURL
		}
		v := buildVariant(req, i+1, angle, metric, gv.Hypothesis, gv.AssetID, c)
		if gv.PredictedCTR > 0 {
			v.PredictedCTR = gv.PredictedCTR
		}
		variants = append(variants, v)
	}

	primary := model.ExpectedMetric(g.PrimaryMetric)
	if !primary.Valid() {
		primary = primaryMetric(req.Audience.Type)
	}

	return model.CreativeStrategyResult{
		AdSetID:          req.Audience.AdSetID,
		TargetCount:      target,
		Variants:         variants,
		TestingFramework: testingFramework(req.Audience.Type, primary, variants),
		Source:           model.CreativeSourceGenerator,
		Usage:            g.Usage,
	}
}

func indexAssets(assets []model.CreativeAsset) map[string]model.CreativeAsset {
	m := make(map[string]model.CreativeAsset, len(assets))
	for _, a := range assets {
		if a.ID != "" {
			m[a.ID] = a
		}
	}
	return m
}
