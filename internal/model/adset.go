package model

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// AdSetType identifies the audience family an ad set targets.
type AdSetType string

const (
	AdSetTypeBroad       AdSetType = "broad"
	AdSetTypeInterest    AdSetType = "interest"
	AdSetTypeRetargeting AdSetType = "retargeting"
	AdSetTypeLookalike   AdSetType = "lookalike"
)

// AllAdSetTypes returns every recognized ad set type.
func AllAdSetTypes() []AdSetType {
	return []AdSetType{AdSetTypeBroad, AdSetTypeInterest, AdSetTypeRetargeting, AdSetTypeLookalike}
}

// ParseAdSetType converts a raw string into an AdSetType. Unknown values are
// rejected rather than defaulted so that typos in upstream strategies surface.
func ParseAdSetType(s string) (AdSetType, error) {
	t := AdSetType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case AdSetTypeBroad, AdSetTypeInterest, AdSetTypeRetargeting, AdSetTypeLookalike:
		return t, nil
	default:
		return "", eris.Errorf("model: unknown ad set type %q", s)
	}
}

// BaselineCTR is the expected click-through rate of an audience family
// before creative effects.
func BaselineCTR(t AdSetType) float64 {
	switch t {
	case AdSetTypeRetargeting:
		return 0.02
	case AdSetTypeLookalike:
		return 0.012
	case AdSetTypeInterest:
		return 0.01
	default:
		return 0.008
	}
}

// CombinationMode controls how interest targeting is grouped.
type CombinationMode string

const (
	// CombinationStacked places every interest in a single group.
	CombinationStacked CombinationMode = "stacked"
	// CombinationFlexible places each interest in its own group.
	CombinationFlexible CombinationMode = "flexible"
)

// AudienceParams is the per-type parameter set of an ad set strategy. Each
// implementation carries exactly the fields its type needs.
type AudienceParams interface {
	AdSetType() AdSetType
}

// BroadParams has no psychographic fields; broad audiences are demographic only.
type BroadParams struct{}

// AdSetType implements AudienceParams.
func (BroadParams) AdSetType() AdSetType { return AdSetTypeBroad }

// InterestParams lists the interest keywords to resolve and how to combine them.
type InterestParams struct {
	Interests []string        `json:"interests" yaml:"interests"`
	Mode      CombinationMode `json:"combination,omitempty" yaml:"combination,omitempty"`
}

// AdSetType implements AudienceParams.
func (InterestParams) AdSetType() AdSetType { return AdSetTypeInterest }

// RetargetingParams sets the visitor lookback window in days.
type RetargetingParams struct {
	Days int `json:"days" yaml:"days"`
}

// AdSetType implements AudienceParams.
func (RetargetingParams) AdSetType() AdSetType { return AdSetTypeRetargeting }

// LookalikeParams sizes a lookalike audience. Percentage is nil when the
// upstream strategy did not supply a numeric value.
type LookalikeParams struct {
	Percentage   *float64 `json:"percentage,omitempty" yaml:"percentage,omitempty"`
	SeedAudience string   `json:"seed_audience,omitempty" yaml:"seed_audience,omitempty"`
}

// AdSetType implements AudienceParams.
func (LookalikeParams) AdSetType() AdSetType { return AdSetTypeLookalike }

// Demographics holds targeting dimensions shared by every ad set type.
type Demographics struct {
	Countries []string `json:"countries,omitempty" yaml:"countries,omitempty"`
	AgeMin    int      `json:"age_min,omitempty" yaml:"age_min,omitempty"`
	AgeMax    int      `json:"age_max,omitempty" yaml:"age_max,omitempty"`
	Genders   []int    `json:"genders,omitempty" yaml:"genders,omitempty"`
}

// AdSetStrategy is an upstream-produced plan for one ad set. It is consumed
// read-only by the audience, creative and budget stages.
type AdSetStrategy struct {
	Name         string
	Type         AdSetType
	Params       AudienceParams
	Demographics Demographics
}

// Key returns the stable identifier derived from the strategy name.
func (s AdSetStrategy) Key() string {
	return AdSetKey(s.Name)
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// AdSetKey slugifies an ad set name into a stable identifier.
func AdSetKey(name string) string {
	slug := nonSlugRe.ReplaceAllString(strings.ToLower(name), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "adset"
	}
	return slug
}

// strategyWire is the on-the-wire shape shared by JSON and YAML.
type strategyWire struct {
	Name         string       `json:"name" yaml:"name"`
	Type         string       `json:"type" yaml:"type"`
	Demographics Demographics `json:"demographics,omitempty" yaml:"demographics,omitempty"`
}

// MarshalJSON writes the strategy with its parameters under audience_parameters.
func (s AdSetStrategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name         string         `json:"name"`
		Type         AdSetType      `json:"type"`
		Params       AudienceParams `json:"audience_parameters,omitempty"`
		Demographics Demographics   `json:"demographics"`
	}{s.Name, s.Type, s.Params, s.Demographics})
}

// UnmarshalJSON decodes audience_parameters into the variant named by type.
func (s *AdSetStrategy) UnmarshalJSON(data []byte) error {
	var w struct {
		strategyWire
		Params json.RawMessage `json:"audience_parameters"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: decode ad set strategy")
	}
	return s.fill(w.strategyWire, func(target any) error {
		if len(w.Params) == 0 || string(w.Params) == "null" {
			return nil
		}
		return json.Unmarshal(w.Params, target)
	})
}

// UnmarshalYAML decodes audience_parameters into the variant named by type.
func (s *AdSetStrategy) UnmarshalYAML(node *yaml.Node) error {
	var w struct {
		strategyWire `yaml:",inline"`
		Params       yaml.Node `yaml:"audience_parameters"`
	}
	if err := node.Decode(&w); err != nil {
		return eris.Wrap(err, "model: decode ad set strategy")
	}
	return s.fill(w.strategyWire, func(target any) error {
		if w.Params.Kind == 0 {
			return nil
		}
		return w.Params.Decode(target)
	})
}

func (s *AdSetStrategy) fill(w strategyWire, decode func(any) error) error {
	t, err := ParseAdSetType(w.Type)
	if err != nil {
		return err
	}

	var params AudienceParams
	switch t {
	case AdSetTypeBroad:
		params = BroadParams{}
	case AdSetTypeInterest:
		var p InterestParams
		if err := decode(&p); err != nil {
			return eris.Wrapf(err, "model: decode interest parameters for %q", w.Name)
		}
		params = p
	case AdSetTypeRetargeting:
		var p RetargetingParams
		if err := decode(&p); err != nil {
			return eris.Wrapf(err, "model: decode retargeting parameters for %q", w.Name)
		}
		params = p
	case AdSetTypeLookalike:
		var p LookalikeParams
		if err := decode(&p); err != nil {
			return eris.Wrapf(err, "model: decode lookalike parameters for %q", w.Name)
		}
		params = p
	}

	*s = AdSetStrategy{
		Name:         w.Name,
		Type:         t,
		Params:       params,
		Demographics: w.Demographics,
	}
	return nil
}

// UnmarshalJSON tolerates a non-numeric percentage by leaving it nil so the
// audience stage can report it as a validation error instead of a decode error.
func (p *LookalikeParams) UnmarshalJSON(data []byte) error {
	var raw struct {
		Percentage   any    `json:"percentage"`
		SeedAudience string `json:"seed_audience"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.SeedAudience = raw.SeedAudience
	p.Percentage = numericOrNil(raw.Percentage)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON.
func (p *LookalikeParams) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Percentage   any    `yaml:"percentage"`
		SeedAudience string `yaml:"seed_audience"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	p.SeedAudience = raw.SeedAudience
	p.Percentage = numericOrNil(raw.Percentage)
	return nil
}

func numericOrNil(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}
