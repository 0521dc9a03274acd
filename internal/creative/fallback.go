package creative

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sells-group/campaign-cli/internal/model"
)

// anglePriority is the deterministic angle order per audience family.
func anglePriority(t model.AdSetType) []model.Angle {
	switch t {
	case model.AdSetTypeRetargeting:
		return []model.Angle{model.AngleOffer, model.AngleUrgency, model.AngleSocialProof}
	case model.AdSetTypeLookalike:
		return []model.Angle{model.AngleBenefit, model.AngleSocialProof, model.AngleOffer, model.AnglePain}
	case model.AdSetTypeInterest:
		return []model.Angle{model.AnglePain, model.AngleBenefit, model.AngleSocialProof, model.AngleCuriosity}
	default:
		return []model.Angle{model.AngleBenefit, model.AnglePain, model.AngleSocialProof, model.AngleCuriosity, model.AngleOffer}
	}
}

// MetricFor returns the KPI an angle is expected to move.
func MetricFor(a model.Angle) model.ExpectedMetric {
	switch a {
	case model.AnglePain, model.AngleBenefit:
		return model.MetricCTR
	case model.AngleSocialProof, model.AngleOffer, model.AngleUrgency:
		return model.MetricCVR
	default:
		return model.MetricEngagement
	}
}

var angleLift = map[model.Angle]float64{
	model.AnglePain:        1.10,
	model.AngleBenefit:     1.00,
	model.AngleSocialProof: 1.05,
	model.AngleOffer:       1.15,
	model.AngleUrgency:     1.10,
	model.AngleCuriosity:   0.95,
}

func hypothesisFor(a model.Angle, audience string) string {
	switch a {
	case model.AnglePain:
		return fmt.Sprintf("Naming the problem %s faces will earn more clicks than feature-led copy", audience)
	case model.AngleBenefit:
		return fmt.Sprintf("Leading with the core outcome will earn the highest click-through from %s", audience)
	case model.AngleSocialProof:
		return fmt.Sprintf("Customer proof will convert %s better than brand claims", audience)
	case model.AngleOffer:
		return fmt.Sprintf("An explicit offer will lift conversion rate for %s", audience)
	case model.AngleUrgency:
		return fmt.Sprintf("A time-bound message will pull conversions forward for %s", audience)
	default:
		return fmt.Sprintf("An open question will drive engagement from %s", audience)
	}
}

// Fallback builds a strategy from the angle table. It yields
// max(1, min(target, len(assets))) variants, synthesizing an asset from the
// product URL when none were supplied.
func Fallback(req Request, target int, reason string) model.CreativeStrategyResult {
	assets := req.Assets
	if len(assets) == 0 {
		assets = []model.CreativeAsset{syntheticAsset(req)}
	}
	n := min(target, len(assets))
	if n < 1 {
		n = 1
	}

	angles := anglePriority(req.Audience.Type)
	audience := req.Audience.Name
	if audience == "" {
		audience = string(req.Audience.Type) + " audience"
	}

	variants := make([]model.CreativeVariant, 0, n)
	for i := 0; i < n; i++ {
		angle := angles[i%len(angles)]
		asset := assets[i%len(assets)]
		c := copyBlock{
			Headline:     asset.Headline,
			PrimaryText:  asset.PrimaryText,
			Description:  asset.Description,
			ImageURL:     asset.ImageURL,
			LinkURL:      asset.LinkURL,
			CallToAction: asset.CallToAction,
		}
		variants = append(variants, buildVariant(req, i+1, angle, MetricFor(angle), hypothesisFor(angle, audience), asset.ID, c))
	}

	return model.CreativeStrategyResult{
		AdSetID:          req.Audience.AdSetID,
		TargetCount:      target,
		Variants:         variants,
		TestingFramework: testingFramework(req.Audience.Type, primaryMetric(req.Audience.Type), variants),
		Source:           model.CreativeSourceFallback,
		FallbackReason:   reason,
	}
}

func syntheticAsset(req Request) model.CreativeAsset {
	name := ""
	if req.Brand != nil {
		name = req.Brand.BrandName
	}
	if name == "" {
		name = hostOf(req.ProductURL)
	}
	return model.CreativeAsset{
		ID:          "generated_1",
		Type:        "link",
		Headline:    fmt.Sprintf("Discover %s", name),
		PrimaryText: fmt.Sprintf("See what %s can do for you.", name),
		LinkURL:     req.ProductURL,
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "our product"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

func primaryMetric(t model.AdSetType) model.ExpectedMetric {
	if t == model.AdSetTypeRetargeting {
		return model.MetricCVR
	}
	return model.MetricCTR
}

func testingFramework(t model.AdSetType, primary model.ExpectedMetric, variants []model.CreativeVariant) model.TestingFramework {
	days := 7
	if t == model.AdSetTypeRetargeting {
		days = 5
	}
	hyps := make([]string, len(variants))
	for i, v := range variants {
		hyps[i] = v.Hypothesis
	}
	return model.TestingFramework{
		PrimaryMetric:      primary,
		MinimumImpressions: 1000 * len(variants),
		EvaluationDays:     days,
		WinnerCriteria:     fmt.Sprintf("highest %s at 90%% confidence once every variant has the minimum impressions", primary),
		Hypotheses:         hyps,
	}
}
