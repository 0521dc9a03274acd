// Package audience turns ad set strategies into validated targeting specs
// with reach estimates and cross-ad-set overlap warnings.
package audience

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/campaign-cli/internal/interest"
	"github.com/sells-group/campaign-cli/internal/model"
)

// Reach bands by audience family.
var (
	RetargetingReach = model.ReachRange{Min: 1_000, Max: 50_000}
	InterestReach    = model.ReachRange{Min: 500_000, Max: 2_000_000}
	BroadReach       = model.ReachRange{Min: 10_000_000, Max: 50_000_000}
)

const (
	lookalikeReachPerPoint = 2_000_000
	lookalikeBand          = 0.2

	defaultRetargetingDays = 30
	broadAgeMin            = 18
	broadAgeMax            = 65
)

// Constructor builds audiences for every ad set of a campaign.
type Constructor struct {
	resolver  *interest.Resolver
	countries []string
}

// NewConstructor creates a Constructor. countries is the fallback geo for
// strategies that do not name their own.
func NewConstructor(resolver *interest.Resolver, countries []string) *Constructor {
	if resolver == nil {
		resolver = interest.NewResolver(nil, 1)
	}
	if len(countries) == 0 {
		countries = []string{"US"}
	}
	return &Constructor{resolver: resolver, countries: countries}
}

// ConstructAll builds each ad set independently, then runs the read-only
// overlap pass over the completed results. Results keep input order.
func (c *Constructor) ConstructAll(ctx context.Context, strategies []model.AdSetStrategy) ([]model.AudienceResult, []model.OverlapWarning, error) {
	results := make([]model.AudienceResult, len(strategies))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		g.Go(func() error {
			res, err := c.Construct(gctx, s)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	warnings := DetectOverlaps(results)
	return results, warnings, nil
}

// Construct builds and validates the audience for one strategy. Structural
// problems in the strategy are reported through validation status; only a
// missing or mismatched parameter variant is returned as an error.
func (c *Constructor) Construct(ctx context.Context, s model.AdSetStrategy) (model.AudienceResult, error) {
	res := model.AudienceResult{
		AdSetID:            s.Key(),
		Name:               s.Name,
		Type:               s.Type,
		ValidationMessages: []string{},
		OverlapWarnings:    []string{},
		ExclusionRationale: []string{},
	}
	res.Targeting = c.baseTargeting(s)

	if s.Params != nil && s.Params.AdSetType() != s.Type {
		return res, eris.Errorf("audience: ad set %q has %s parameters for type %s", s.Name, s.Params.AdSetType(), s.Type)
	}

	switch s.Type {
	case model.AdSetTypeRetargeting:
		p, _ := s.Params.(model.RetargetingParams)
		buildRetargeting(&res, p)
	case model.AdSetTypeLookalike:
		p, _ := s.Params.(model.LookalikeParams)
		buildLookalike(&res, p)
	case model.AdSetTypeInterest:
		p, _ := s.Params.(model.InterestParams)
		c.buildInterest(ctx, &res, p)
		res.EstimatedReach = adjustReach(res.Targeting, res.EstimatedReach)
	case model.AdSetTypeBroad:
		buildBroad(&res)
		res.EstimatedReach = adjustReach(res.Targeting, res.EstimatedReach)
	default:
		return res, eris.Errorf("audience: ad set %q has unknown type %q", s.Name, s.Type)
	}

	Validate(&res)

	zap.L().Debug("audience: constructed",
		zap.String("adset_id", res.AdSetID),
		zap.String("type", string(res.Type)),
		zap.Int64("reach_min", res.EstimatedReach.Min),
		zap.Int64("reach_max", res.EstimatedReach.Max),
		zap.String("status", string(res.ValidationStatus)),
	)
	return res, nil
}

func (c *Constructor) baseTargeting(s model.AdSetStrategy) model.Targeting {
	countries := s.Demographics.Countries
	if len(countries) == 0 {
		countries = c.countries
	}
	return model.Targeting{
		GeoLocations:       &model.GeoLocations{Countries: append([]string(nil), countries...)},
		AgeMin:             s.Demographics.AgeMin,
		AgeMax:             s.Demographics.AgeMax,
		Genders:            s.Demographics.Genders,
		PublisherPlatforms: []string{"facebook", "instagram"},
		FacebookPositions:  []string{"feed", "story"},
		InstagramPositions: []string{"stream", "story", "reels"},
	}
}

func buildRetargeting(res *model.AudienceResult, p model.RetargetingParams) {
	days := p.Days
	if days <= 0 {
		days = defaultRetargetingDays
		res.ValidationMessages = append(res.ValidationMessages,
			fmt.Sprintf("retargeting window not set, defaulting to %d days", defaultRetargetingDays))
	}
	res.Targeting.CustomAudiences = []model.AudienceRef{{
		ID:   fmt.Sprintf("website_visitors_%dd", days),
		Name: fmt.Sprintf("Recent visitors (%dd)", days),
	}}
	res.Targeting.ExcludedCustomAudiences = []model.AudienceRef{{
		ID:   "purchasers_180d",
		Name: "Purchasers (180d)",
	}}
	res.ExclusionRationale = append(res.ExclusionRationale,
		"Exclude known purchasers so retargeting spend reaches visitors who have not converted")
	res.EstimatedReach = RetargetingReach
}

func buildLookalike(res *model.AudienceResult, p model.LookalikeParams) {
	res.Targeting.ExcludedCustomAudiences = []model.AudienceRef{{
		ID:   "website_visitors_180d",
		Name: "Website visitors (180d)",
	}}
	res.ExclusionRationale = append(res.ExclusionRationale,
		"Exclude prior visitors to avoid double-counting users already reached by retargeting")

	if p.Percentage == nil {
		res.ValidationStatus = model.ValidationError
		res.ValidationMessages = append(res.ValidationMessages, "lookalike percentage must be a number")
		return
	}
	pct := *p.Percentage
	if pct <= 0 || pct > 10 {
		res.ValidationStatus = model.ValidationError
		res.ValidationMessages = append(res.ValidationMessages,
			fmt.Sprintf("lookalike percentage %.1f outside (0, 10]", pct))
		return
	}

	seed := p.SeedAudience
	if seed == "" {
		seed = "purchasers"
	}
	res.Targeting.LookalikeAudiences = []model.AudienceRef{{
		ID:   fmt.Sprintf("lookalike_%s_%gpct", model.AdSetKey(seed), pct),
		Name: fmt.Sprintf("Lookalike %g%% of %s", pct, seed),
	}}

	center := lookalikeReachPerPoint * pct
	res.EstimatedReach = model.ReachRange{
		Min: int64(center * (1 - lookalikeBand)),
		Max: int64(center * (1 + lookalikeBand)),
	}
}

func (c *Constructor) buildInterest(ctx context.Context, res *model.AudienceResult, p model.InterestParams) {
	res.EstimatedReach = InterestReach
	if len(p.Interests) == 0 {
		res.ValidationStatus = model.ValidationError
		res.ValidationMessages = append(res.ValidationMessages, "interest ad set requires at least one interest")
		return
	}

	resolved := c.resolver.Resolve(ctx, p.Interests)
	res.Interests = resolved

	// Distinct keywords may resolve to the same platform interest.
	refs := make([]model.InterestRef, 0, len(resolved))
	seen := make(map[string]bool, len(resolved))
	placeholders := 0
	for _, r := range resolved {
		if r.Placeholder {
			placeholders++
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		refs = append(refs, model.InterestRef{ID: r.ID, Name: r.Name})
	}
	if placeholders > 0 {
		res.ValidationMessages = append(res.ValidationMessages,
			fmt.Sprintf("%d of %d interests unresolved, using pass-through identifiers", placeholders, len(resolved)))
	}

	if p.Mode == model.CombinationFlexible {
		for _, ref := range refs {
			res.Targeting.FlexibleSpec = append(res.Targeting.FlexibleSpec, model.FlexibleGroup{
				Interests: []model.InterestRef{ref},
			})
		}
		return
	}
	res.Targeting.FlexibleSpec = []model.FlexibleGroup{{Interests: refs}}
}

func buildBroad(res *model.AudienceResult) {
	if res.Targeting.AgeMin == 0 && res.Targeting.AgeMax == 0 {
		res.Targeting.AgeMin = broadAgeMin
		res.Targeting.AgeMax = broadAgeMax
	}
	res.Targeting.AdvantageAudience = true
	res.EstimatedReach = BroadReach
}

// adjustReach applies one multiplier per targeting dimension present.
func adjustReach(t model.Targeting, r model.ReachRange) model.ReachRange {
	if len(t.FlexibleSpec) > 0 {
		r = r.Scale(0.3)
	}
	if len(t.CustomAudiences) > 0 {
		r = r.Scale(0.1)
	}
	if len(t.ExcludedCustomAudiences) > 0 {
		r = r.Scale(0.9)
	}
	return r
}
