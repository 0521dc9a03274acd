package model

// ValidationStatus grades an ad set after audience construction.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "VALID"
	ValidationWarning ValidationStatus = "WARNING"
	ValidationError   ValidationStatus = "ERROR"
)

// Rank orders statuses so the worst one wins when several checks fire.
func (s ValidationStatus) Rank() int {
	switch s {
	case ValidationError:
		return 2
	case ValidationWarning:
		return 1
	default:
		return 0
	}
}

// Targeting is the structural targeting spec submitted with an ad set.
// AgeMin and AgeMax of zero mean the dimension is unconstrained.
type Targeting struct {
	GeoLocations            *GeoLocations   `json:"geo_locations,omitempty"`
	AgeMin                  int             `json:"age_min,omitempty"`
	AgeMax                  int             `json:"age_max,omitempty"`
	Genders                 []int           `json:"genders,omitempty"`
	FlexibleSpec            []FlexibleGroup `json:"flexible_spec,omitempty"`
	CustomAudiences         []AudienceRef   `json:"custom_audiences,omitempty"`
	ExcludedCustomAudiences []AudienceRef   `json:"excluded_custom_audiences,omitempty"`
	LookalikeAudiences      []AudienceRef   `json:"lookalike_audiences,omitempty"`
	PublisherPlatforms      []string        `json:"publisher_platforms,omitempty"`
	FacebookPositions       []string        `json:"facebook_positions,omitempty"`
	InstagramPositions      []string        `json:"instagram_positions,omitempty"`
	AdvantageAudience       bool            `json:"advantage_audience,omitempty"`
}

// GeoLocations restricts delivery to a set of countries.
type GeoLocations struct {
	Countries []string `json:"countries"`
}

// FlexibleGroup is one entry of flexible_spec.
type FlexibleGroup struct {
	Interests []InterestRef `json:"interests,omitempty"`
	Behaviors []InterestRef `json:"behaviors,omitempty"`
}

// InterestRef references a platform interest or behavior.
type InterestRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AudienceRef references a custom or lookalike audience.
type AudienceRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// HasAgeRange reports whether both age bounds are set.
func (t Targeting) HasAgeRange() bool {
	return t.AgeMin > 0 && t.AgeMax > 0
}

// ReachRange is an estimated audience size band.
type ReachRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Mid returns the midpoint of the band.
func (r ReachRange) Mid() int64 {
	return (r.Min + r.Max) / 2
}

// Scale multiplies both bounds by f.
func (r ReachRange) Scale(f float64) ReachRange {
	return ReachRange{Min: int64(float64(r.Min) * f), Max: int64(float64(r.Max) * f)}
}

// ResolvedInterest is the outcome of resolving one free-text interest.
type ResolvedInterest struct {
	Query       string   `json:"query"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	AudienceMin int64    `json:"audience_size_lower_bound"`
	AudienceMax int64    `json:"audience_size_upper_bound"`
	Path        []string `json:"path,omitempty"`
	Placeholder bool     `json:"placeholder"`
}

// AudienceResult is the validated targeting for one ad set.
type AudienceResult struct {
	AdSetID            string             `json:"adset_id"`
	Name               string             `json:"name"`
	Type               AdSetType          `json:"type"`
	Targeting          Targeting          `json:"targeting"`
	EstimatedReach     ReachRange         `json:"estimated_reach"`
	ValidationStatus   ValidationStatus   `json:"validation_status"`
	ValidationMessages []string           `json:"validation_messages"`
	OverlapWarnings    []string           `json:"overlap_warnings"`
	ExclusionRationale []string           `json:"exclusion_rationale"`
	Interests          []ResolvedInterest `json:"resolved_interests,omitempty"`
}

// Blocked reports whether the ad set must be held back from submission.
func (a AudienceResult) Blocked() bool {
	return a.ValidationStatus == ValidationError
}

// OverlapWarning records a pair of ad sets expected to compete for the same users.
type OverlapWarning struct {
	AdSetIDs []string  `json:"adset_ids"`
	Names    []string  `json:"names"`
	Type     AdSetType `json:"type"`
	Message  string    `json:"message"`
}
