// Package assemble merges audience, creative and budget plans into the
// submission-ready campaign graph.
package assemble

import "strings"

// Objective is an outcome-driven campaign objective accepted by the ads platform.
type Objective string

const (
	ObjectiveTraffic      Objective = "OUTCOME_TRAFFIC"
	ObjectiveSales        Objective = "OUTCOME_SALES"
	ObjectiveLeads        Objective = "OUTCOME_LEADS"
	ObjectiveAwareness    Objective = "OUTCOME_AWARENESS"
	ObjectiveEngagement   Objective = "OUTCOME_ENGAGEMENT"
	ObjectiveAppPromotion Objective = "OUTCOME_APP_PROMOTION"
)

// Short is the objective name without its OUTCOME_ prefix.
func (o Objective) Short() string {
	return strings.TrimPrefix(string(o), "OUTCOME_")
}

// ParseObjective converts a legacy or outcome objective name to its outcome
// form. ok is false when the name is not recognized.
func ParseObjective(s string) (Objective, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OUTCOME_TRAFFIC", "LINK_CLICKS", "TRAFFIC":
		return ObjectiveTraffic, true
	case "OUTCOME_SALES", "CONVERSIONS", "PRODUCT_CATALOG_SALES", "SALES", "STORE_VISITS":
		return ObjectiveSales, true
	case "OUTCOME_LEADS", "LEAD_GENERATION", "LEADS":
		return ObjectiveLeads, true
	case "OUTCOME_AWARENESS", "BRAND_AWARENESS", "REACH", "AWARENESS":
		return ObjectiveAwareness, true
	case "OUTCOME_ENGAGEMENT", "POST_ENGAGEMENT", "PAGE_LIKES", "EVENT_RESPONSES", "VIDEO_VIEWS", "MESSAGES", "ENGAGEMENT":
		return ObjectiveEngagement, true
	case "OUTCOME_APP_PROMOTION", "APP_INSTALLS", "APP_PROMOTION":
		return ObjectiveAppPromotion, true
	default:
		return ObjectiveTraffic, false
	}
}

// MapObjective is ParseObjective with unknown or empty input mapped to traffic.
func MapObjective(s string) Objective {
	o, _ := ParseObjective(s)
	return o
}
