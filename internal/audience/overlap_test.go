package audience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/campaign-cli/internal/model"
)

func TestDetectOverlaps(t *testing.T) {
	results := []model.AudienceResult{
		{AdSetID: "i1", Name: "Interest 1", Type: model.AdSetTypeInterest},
		{AdSetID: "r1", Name: "Retarget 1", Type: model.AdSetTypeRetargeting},
		{AdSetID: "i2", Name: "Interest 2", Type: model.AdSetTypeInterest},
		{AdSetID: "r2", Name: "Retarget 2", Type: model.AdSetTypeRetargeting},
		{AdSetID: "i3", Name: "Interest 3", Type: model.AdSetTypeInterest},
		{AdSetID: "l1", Name: "LAL 1", Type: model.AdSetTypeLookalike},
	}

	warnings := DetectOverlaps(results)

	// Three interest pairs; retargeting never overlaps; a single lookalike has no pair.
	require.Len(t, warnings, 3)
	for _, w := range warnings {
		assert.Equal(t, model.AdSetTypeInterest, w.Type)
		assert.Len(t, w.AdSetIDs, 2)
	}
	assert.Len(t, results[0].OverlapWarnings, 2)
	assert.Len(t, results[2].OverlapWarnings, 2)
	assert.Len(t, results[4].OverlapWarnings, 2)
	assert.Empty(t, results[1].OverlapWarnings)
	assert.Empty(t, results[5].OverlapWarnings)
}

func TestDetectOverlaps_Symmetric(t *testing.T) {
	results := []model.AudienceResult{
		{AdSetID: "a", Name: "A", Type: model.AdSetTypeLookalike},
		{AdSetID: "b", Name: "B", Type: model.AdSetTypeLookalike},
	}
	warnings := DetectOverlaps(results)
	require.Len(t, warnings, 1)
	assert.Equal(t, results[0].OverlapWarnings, results[1].OverlapWarnings)
	assert.Equal(t, warnings[0].Message, results[0].OverlapWarnings[0])
}
