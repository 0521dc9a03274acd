package audience

import (
	"fmt"

	"github.com/sells-group/campaign-cli/internal/model"
)

// overlapProne reports whether two ad sets of this type are assumed to
// reach the same users.
func overlapProne(t model.AdSetType) bool {
	switch t {
	case model.AdSetTypeBroad, model.AdSetTypeInterest, model.AdSetTypeLookalike:
		return true
	}
	return false
}

// DetectOverlaps flags every same-type pair of overlap-prone ad sets. The
// message is attached to both members and returned once per pair.
func DetectOverlaps(results []model.AudienceResult) []model.OverlapWarning {
	var warnings []model.OverlapWarning
	for i := 0; i < len(results); i++ {
		a := &results[i]
		if !overlapProne(a.Type) {
			continue
		}
		for j := i + 1; j < len(results); j++ {
			b := &results[j]
			if b.Type != a.Type {
				continue
			}
			msg := fmt.Sprintf("%s ad sets %q and %q are likely to overlap", a.Type, a.Name, b.Name)
			a.OverlapWarnings = append(a.OverlapWarnings, msg)
			b.OverlapWarnings = append(b.OverlapWarnings, msg)
			warnings = append(warnings, model.OverlapWarning{
				AdSetIDs: []string{a.AdSetID, b.AdSetID},
				Names:    []string{a.Name, b.Name},
				Type:     a.Type,
				Message:  msg,
			})
		}
	}
	return warnings
}
