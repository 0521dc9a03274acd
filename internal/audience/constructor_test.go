package audience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-cli/internal/interest"
	"github.com/sells-group/campaign-cli/internal/model"
	"github.com/sells-group/campaign-cli/pkg/meta"
)

type searchFunc func(ctx context.Context, query string) ([]meta.Interest, error)

func (f searchFunc) SearchInterests(ctx context.Context, query string) ([]meta.Interest, error) {
	return f(ctx, query)
}

func pct(v float64) *float64 { return &v }

func newTestConstructor() *Constructor {
	return NewConstructor(nil, []string{"US"})
}

func TestConstruct_Retargeting(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:   "Cart Abandoners",
		Type:   model.AdSetTypeRetargeting,
		Params: model.RetargetingParams{Days: 14},
	})
	require.NoError(t, err)

	assert.Equal(t, "cart_abandoners", res.AdSetID)
	assert.Equal(t, RetargetingReach, res.EstimatedReach)
	require.Len(t, res.Targeting.CustomAudiences, 1)
	assert.Equal(t, "website_visitors_14d", res.Targeting.CustomAudiences[0].ID)
	require.Len(t, res.Targeting.ExcludedCustomAudiences, 1)
	assert.Equal(t, "purchasers_180d", res.Targeting.ExcludedCustomAudiences[0].ID)
	assert.NotEmpty(t, res.ExclusionRationale)
	assert.Equal(t, model.ValidationValid, res.ValidationStatus)
}

func TestConstruct_RetargetingDefaultsWindow(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name: "Visitors",
		Type: model.AdSetTypeRetargeting,
	})
	require.NoError(t, err)
	assert.Equal(t, "website_visitors_30d", res.Targeting.CustomAudiences[0].ID)
	assert.Equal(t, model.ValidationValid, res.ValidationStatus)
}

func TestConstruct_LookalikeReach(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:   "LAL 1%",
		Type:   model.AdSetTypeLookalike,
		Params: model.LookalikeParams{Percentage: pct(1)},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1_600_000), res.EstimatedReach.Min)
	assert.Equal(t, int64(2_400_000), res.EstimatedReach.Max)
	require.Len(t, res.Targeting.LookalikeAudiences, 1)
	require.Len(t, res.Targeting.ExcludedCustomAudiences, 1)
	assert.Equal(t, "website_visitors_180d", res.Targeting.ExcludedCustomAudiences[0].ID)
	assert.Equal(t, model.ValidationValid, res.ValidationStatus)
}

func TestConstruct_LookalikeMissingPercentage(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:   "LAL",
		Type:   model.AdSetTypeLookalike,
		Params: model.LookalikeParams{},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ValidationError, res.ValidationStatus)
	assert.Contains(t, res.ValidationMessages, "lookalike percentage must be a number")
	assert.True(t, res.Blocked())
}

func TestConstruct_LookalikePercentageOutOfRange(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:   "LAL",
		Type:   model.AdSetTypeLookalike,
		Params: model.LookalikeParams{Percentage: pct(25)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ValidationError, res.ValidationStatus)
}

func TestConstruct_InterestStackedAndFlexible(t *testing.T) {
	c := newTestConstructor()

	stacked, err := c.Construct(context.Background(), model.AdSetStrategy{
		Name:   "Fitness stacked",
		Type:   model.AdSetTypeInterest,
		Params: model.InterestParams{Interests: []string{"Yoga", "Pilates"}, Mode: model.CombinationStacked},
	})
	require.NoError(t, err)
	require.Len(t, stacked.Targeting.FlexibleSpec, 1)
	assert.Len(t, stacked.Targeting.FlexibleSpec[0].Interests, 2)

	flexible, err := c.Construct(context.Background(), model.AdSetStrategy{
		Name:   "Fitness flexible",
		Type:   model.AdSetTypeInterest,
		Params: model.InterestParams{Interests: []string{"Yoga", "Pilates"}, Mode: model.CombinationFlexible},
	})
	require.NoError(t, err)
	require.Len(t, flexible.Targeting.FlexibleSpec, 2)
	assert.Equal(t, "PASS_THROUGH_YOGA", flexible.Targeting.FlexibleSpec[0].Interests[0].ID)

	// 500K-2M base narrowed by the flexible-group factor.
	assert.Equal(t, model.ReachRange{Min: 150_000, Max: 600_000}, flexible.EstimatedReach)
	assert.Equal(t, model.ValidationValid, flexible.ValidationStatus)
	assert.Len(t, flexible.Interests, 2)
}

func TestConstruct_InterestDedupesResolvedIDs(t *testing.T) {
	search := searchFunc(func(_ context.Context, query string) ([]meta.Interest, error) {
		return []meta.Interest{{ID: "6003", Name: "Running", AudienceSizeLowerBound: 1_000_000, AudienceSizeUpperBound: 2_000_000}}, nil
	})
	c := NewConstructor(interest.NewResolver(search, 2), []string{"US"})

	for _, mode := range []model.CombinationMode{model.CombinationFlexible, model.CombinationStacked} {
		res, err := c.Construct(context.Background(), model.AdSetStrategy{
			Name:   "Runners " + string(mode),
			Type:   model.AdSetTypeInterest,
			Params: model.InterestParams{Interests: []string{"Running", "Jogging"}, Mode: mode},
		})
		require.NoError(t, err)

		var ids []string
		for _, g := range res.Targeting.FlexibleSpec {
			for _, ref := range g.Interests {
				ids = append(ids, ref.ID)
			}
		}
		assert.Equal(t, []string{"6003"}, ids, string(mode))
		assert.Len(t, res.Interests, 2)
	}
}

func TestConstruct_InterestEmptyList(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:   "Empty",
		Type:   model.AdSetTypeInterest,
		Params: model.InterestParams{},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ValidationError, res.ValidationStatus)
	assert.Contains(t, res.ValidationMessages, "interest ad set requires at least one interest")
}

func TestConstruct_Broad(t *testing.T) {
	res, err := NewConstructor(nil, []string{"US", "CA"}).Construct(context.Background(), model.AdSetStrategy{
		Name: "Broad",
		Type: model.AdSetTypeBroad,
	})
	require.NoError(t, err)
	assert.Equal(t, 18, res.Targeting.AgeMin)
	assert.Equal(t, 65, res.Targeting.AgeMax)
	assert.Equal(t, []string{"US", "CA"}, res.Targeting.GeoLocations.Countries)
	assert.Empty(t, res.Targeting.FlexibleSpec)
	assert.True(t, res.Targeting.AdvantageAudience)
	assert.Equal(t, BroadReach, res.EstimatedReach)
}

func TestConstruct_InvalidAgeRange(t *testing.T) {
	res, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:         "Broad",
		Type:         model.AdSetTypeBroad,
		Demographics: model.Demographics{AgeMin: 40, AgeMax: 30},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ValidationError, res.ValidationStatus)
}

func TestConstruct_MismatchedParams(t *testing.T) {
	_, err := newTestConstructor().Construct(context.Background(), model.AdSetStrategy{
		Name:   "Confused",
		Type:   model.AdSetTypeBroad,
		Params: model.RetargetingParams{Days: 7},
	})
	assert.Error(t, err)
}

func TestConstructAll_KeepsOrderAndFlagsOverlap(t *testing.T) {
	strategies := []model.AdSetStrategy{
		{Name: "Broad A", Type: model.AdSetTypeBroad},
		{Name: "Visitors", Type: model.AdSetTypeRetargeting, Params: model.RetargetingParams{Days: 30}},
		{Name: "Broad B", Type: model.AdSetTypeBroad},
	}
	results, warnings, err := newTestConstructor().ConstructAll(context.Background(), strategies)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "broad_a", results[0].AdSetID)
	assert.Equal(t, "visitors", results[1].AdSetID)
	assert.Equal(t, "broad_b", results[2].AdSetID)

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"Broad A", "Broad B"}, warnings[0].Names)
	assert.Len(t, results[0].OverlapWarnings, 1)
	assert.Len(t, results[2].OverlapWarnings, 1)
	assert.Empty(t, results[1].OverlapWarnings)
}
