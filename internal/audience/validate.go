package audience

import (
	"fmt"

	"github.com/sells-group/campaign-cli/internal/model"
)

// Reach limits applied during validation.
const (
	MinReach int64 = 1_000
	MaxReach int64 = 100_000_000
)

// Validate grades a constructed audience. It only ever worsens the status
// already set by construction.
func Validate(res *model.AudienceResult) {
	status := res.ValidationStatus
	if status == "" {
		status = model.ValidationValid
	}
	raise := func(s model.ValidationStatus, msg string) {
		if s.Rank() > status.Rank() {
			status = s
		}
		res.ValidationMessages = append(res.ValidationMessages, msg)
	}

	if res.EstimatedReach.Max < MinReach {
		raise(model.ValidationError,
			fmt.Sprintf("estimated reach %d is below the %d minimum; ad set cannot launch", res.EstimatedReach.Max, MinReach))
	}
	if res.EstimatedReach.Max > MaxReach {
		raise(model.ValidationWarning,
			fmt.Sprintf("estimated reach %d exceeds %d; expect a longer learning phase", res.EstimatedReach.Max, MaxReach))
	}

	t := res.Targeting
	if t.HasAgeRange() && t.AgeMin >= t.AgeMax {
		raise(model.ValidationError, fmt.Sprintf("invalid age range %d-%d", t.AgeMin, t.AgeMax))
	}
	if len(t.CustomAudiences) > 0 && len(t.LookalikeAudiences) > 0 {
		raise(model.ValidationWarning, "custom and lookalike audiences combined send conflicting signals")
	}

	res.ValidationStatus = status
}
