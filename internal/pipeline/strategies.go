package pipeline

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/model"
)

const (
	defaultRetargetingDays = 30
	richLookalikePct       = 1.0
	hybridLookalikePct     = 2.0
	maxSynthesizedKeywords = 8
)

// Strategies returns the request's explicit strategies, or a default set
// derived from the semantic analysis and approach when none were given.
// Duplicate ad set keys are rejected since they would collide downstream.
func Strategies(req model.GenerationRequest, approach model.Approach) ([]model.AdSetStrategy, error) {
	strategies := req.Strategies
	if len(strategies) == 0 {
		strategies = Synthesize(req.Analysis, approach)
	}

	geo := countries(req)
	out := make([]model.AdSetStrategy, len(strategies))
	seen := make(map[string]string, len(strategies))
	for i, s := range strategies {
		if strings.TrimSpace(s.Name) == "" {
			return nil, eris.Errorf("pipeline: ad set strategy %d has no name", i+1)
		}
		if s.Params == nil {
			return nil, eris.Errorf("pipeline: ad set %q has no audience parameters", s.Name)
		}
		key := s.Key()
		if prev, ok := seen[key]; ok {
			return nil, eris.Errorf("pipeline: ad set names %q and %q collide", prev, s.Name)
		}
		seen[key] = s.Name

		if len(s.Demographics.Countries) == 0 {
			s.Demographics.Countries = geo
		}
		out[i] = s
	}
	return out, nil
}

// Synthesize builds the default ad set mix for an approach.
func Synthesize(a *model.SemanticAnalysis, approach model.Approach) []model.AdSetStrategy {
	keywords := interestKeywords(a)

	interest := func(mode model.CombinationMode) []model.AdSetStrategy {
		if len(keywords) == 0 {
			return nil
		}
		return []model.AdSetStrategy{{
			Name:   "Interest - " + strings.Join(keywords[:min(len(keywords), 3)], ", "),
			Type:   model.AdSetTypeInterest,
			Params: model.InterestParams{Interests: keywords, Mode: mode},
		}}
	}
	lookalike := func(pct float64) model.AdSetStrategy {
		return model.AdSetStrategy{
			Name:   lookalikeName(pct),
			Type:   model.AdSetTypeLookalike,
			Params: model.LookalikeParams{Percentage: &pct, SeedAudience: "purchasers"},
		}
	}
	broad := model.AdSetStrategy{Name: "Broad", Type: model.AdSetTypeBroad, Params: model.BroadParams{}}

	var out []model.AdSetStrategy
	switch approach {
	case model.ApproachRichData:
		out = append(out, model.AdSetStrategy{
			Name:   "Retargeting - Site Visitors 30d",
			Type:   model.AdSetTypeRetargeting,
			Params: model.RetargetingParams{Days: defaultRetargetingDays},
		}, lookalike(richLookalikePct))
		out = append(out, interest(model.CombinationStacked)...)
	case model.ApproachDiscoveryFirst:
		out = append(out, broad)
		out = append(out, interest(model.CombinationFlexible)...)
	default:
		out = append(out, broad)
		out = append(out, interest(model.CombinationFlexible)...)
		out = append(out, lookalike(hybridLookalikePct))
	}
	return out
}

func lookalikeName(pct float64) string {
	return "Lookalike " + strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

func interestKeywords(a *model.SemanticAnalysis) []string {
	if a == nil {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] || len(out) >= maxSynthesizedKeywords {
			return
		}
		seen[strings.ToLower(k)] = true
		out = append(out, k)
	}
	for _, k := range a.Keywords {
		add(k)
	}
	if len(out) == 0 {
		add(a.Persona)
	}
	return out
}

func countries(req model.GenerationRequest) []string {
	if len(req.GeoTargets) > 0 {
		return req.GeoTargets
	}
	if req.Analysis != nil && len(req.Analysis.Geo) > 0 {
		return req.Analysis.Geo
	}
	return nil
}
