package assemble

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/campaign-cli/internal/model"
)

const (
	accountPath      = "act_{ad_account_id}"
	weeklyTolerance  = 1.1
	platformMinDaily = 1.0
)

// Input gathers the per-stage outputs for one campaign. Creatives and
// Budgets are keyed by ad set ID.
type Input struct {
	Request        model.GenerationRequest
	Approach       model.Approach
	Audiences      []model.AudienceResult
	Overlaps       []model.OverlapWarning
	Creatives      map[string]model.CreativeStrategyResult
	Budgets        map[string]model.BudgetOptimizationResult
	GenerationCost float64
}

// Assemble builds the campaign graph, the ordered API call plan and the
// pre-submission checklist. Ad sets whose audience failed validation are
// held back and listed as blocked.
func Assemble(in Input) (*model.Campaign, error) {
	objective := MapObjective(in.Request.Objective)
	c := &model.Campaign{
		Name:            CampaignName(in.Request),
		ProductURL:      in.Request.ProductURL,
		Approach:        in.Approach,
		OverlapWarnings: in.Overlaps,
		Payload: model.CampaignPayload{
			Name:                CampaignName(in.Request),
			Objective:           string(objective),
			Status:              "PAUSED",
			BuyingType:          "AUCTION",
			SpecialAdCategories: []string{},
		},
	}

	for _, aud := range in.Audiences {
		if aud.Blocked() {
			c.BlockedAdSets = append(c.BlockedAdSets, aud)
			continue
		}
		b, ok := in.Budgets[aud.AdSetID]
		if !ok {
			return nil, eris.Errorf("assemble: no budget plan for ad set %q", aud.AdSetID)
		}
		cr, ok := in.Creatives[aud.AdSetID]
		if !ok {
			return nil, eris.Errorf("assemble: no creative plan for ad set %q", aud.AdSetID)
		}
		c.AdSets = append(c.AdSets, assembleAdSet(aud, b, cr))
	}

	c.APICalls = apiCalls(c)
	c.Summary = summarize(c, in)
	c.Checklist = checklist(c, in)
	c.ReadyToSubmit = true
	for _, item := range c.Checklist {
		if item.Blocking && !item.Passed {
			c.ReadyToSubmit = false
		}
	}
	return c, nil
}

// CampaignName returns the requested name or one derived from the product host.
func CampaignName(req model.GenerationRequest) string {
	if req.CampaignName != "" {
		return req.CampaignName
	}
	host := req.ProductURL
	if u, err := url.Parse(req.ProductURL); err == nil && u.Hostname() != "" {
		host = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return fmt.Sprintf("%s - %s", host, MapObjective(req.Objective).Short())
}

func assembleAdSet(aud model.AudienceResult, b model.BudgetOptimizationResult, cr model.CreativeStrategyResult) model.AssembledAdSet {
	opt := model.OptimizationPayload{
		OptimizationGoal: b.BiddingStrategy.OptimizationGoal,
		BillingEvent:     b.BiddingStrategy.BillingEvent,
		BidStrategy:      b.BiddingStrategy.BidStrategy,
	}
	if b.BiddingStrategy.TargetCost != nil {
		cents := toCents(*b.BiddingStrategy.TargetCost)
		opt.BidAmount = &cents
	}

	pacing := []string{"standard"}
	if b.PacingStrategy.Type == model.PacingAccelerated {
		pacing = []string{"no_pacing"}
	}

	subs := make([]model.CreativeSubmission, len(cr.Variants))
	for i, v := range cr.Variants {
		subs[i] = model.CreativeSubmission{AdSetRef: aud.AdSetID, Creative: v.Payload}
	}

	return model.AssembledAdSet{
		AdSetID: aud.AdSetID,
		Payload: model.AdSetPayload{
			Name:         aud.Name,
			Targeting:    aud.Targeting,
			Optimization: opt,
			Budget: model.BudgetPayload{
				DailyBudget: toCents(b.BudgetStrategy.DailyBudget),
				BudgetType:  b.BudgetStrategy.BudgetType,
				Pacing:      pacing,
			},
			Status: "PAUSED",
		},
		Audience:  aud,
		Budget:    b,
		Creatives: subs,
		Variants:  cr.Variants,
	}
}

// apiCalls orders submission as campaign, ad sets, creatives, then ads.
func apiCalls(c *model.Campaign) []model.APICall {
	var calls []model.APICall
	add := func(endpoint, ref string, payload any, deps ...string) {
		calls = append(calls, model.APICall{
			Order:     len(calls) + 1,
			Method:    "POST",
			Endpoint:  endpoint,
			Ref:       ref,
			DependsOn: deps,
			Payload:   payload,
		})
	}

	add(accountPath+"/campaigns", "campaign", c.Payload)
	for _, as := range c.AdSets {
		add(accountPath+"/adsets", as.AdSetID, as.Payload, "campaign")
	}
	for _, as := range c.AdSets {
		for _, v := range as.Variants {
			add(accountPath+"/adcreatives", v.CreativeID, v.Payload)
		}
	}
	for _, as := range c.AdSets {
		for _, v := range as.Variants {
			add(accountPath+"/ads", "ad_"+v.CreativeID, map[string]string{
				"name":     v.CreativeID,
				"adset_id": "{" + as.AdSetID + ".id}",
				"creative": "{" + v.CreativeID + ".id}",
				"status":   "PAUSED",
			}, as.AdSetID, v.CreativeID)
		}
	}
	return calls
}

func summarize(c *model.Campaign, in Input) model.CampaignSummary {
	s := model.CampaignSummary{
		AdSets:            len(c.AdSets),
		BlockedAdSets:     len(c.BlockedAdSets),
		TotalBudget:       in.Request.Budget,
		GenerationCostUSD: in.GenerationCost,
	}
	for _, as := range c.AdSets {
		s.Creatives += len(as.Variants)
		s.DailySpend += as.Budget.BudgetStrategy.DailyBudget
		if cr, ok := in.Creatives[as.AdSetID]; ok && cr.Source == model.CreativeSourceFallback {
			s.FallbackCreatives += len(as.Variants)
		}
	}
	s.DailySpend = math.Round(s.DailySpend*100) / 100
	s.ProjectedWeekly = math.Round(s.DailySpend*7*100) / 100
	return s
}

// objectiveCheck fails without blocking when the requested objective is
// unknown and was defaulted. An empty objective defaults silently.
func objectiveCheck(requested, mapped string) model.ChecklistItem {
	_, ok := ParseObjective(requested)
	item := model.ChecklistItem{
		Check:  "objective_mapped",
		Passed: ok || strings.TrimSpace(requested) == "",
		Detail: fmt.Sprintf("%q -> %s", requested, mapped),
	}
	if !item.Passed {
		item.Detail = fmt.Sprintf("unknown objective %q, defaulted to %s", requested, mapped)
	}
	return item
}

func checklist(c *model.Campaign, in Input) []model.ChecklistItem {
	items := []model.ChecklistItem{
		objectiveCheck(in.Request.Objective, c.Payload.Objective),
		{
			Check:    "landing_url_present",
			Passed:   in.Request.ProductURL != "",
			Detail:   in.Request.ProductURL,
			Blocking: true,
		},
		{
			Check:    "adsets_present",
			Passed:   len(c.AdSets) > 0,
			Detail:   fmt.Sprintf("%d submittable ad sets", len(c.AdSets)),
			Blocking: true,
		},
	}

	blocked := make([]string, len(c.BlockedAdSets))
	for i, b := range c.BlockedAdSets {
		blocked[i] = b.Name
	}
	items = append(items, model.ChecklistItem{
		Check:  "targeting_valid",
		Passed: len(blocked) == 0,
		Detail: detailOr(blocked, "held back: ", "all ad sets passed targeting validation"),
	})

	var noCreative, underMin, dupes []string
	seen := make(map[string]bool)
	for _, as := range c.AdSets {
		if len(as.Variants) == 0 {
			noCreative = append(noCreative, as.AdSetID)
		}
		for _, v := range as.Variants {
			if seen[v.CreativeID] {
				dupes = append(dupes, v.CreativeID)
			}
			seen[v.CreativeID] = true
		}
		if as.Budget.BudgetStrategy.DailyBudget < platformMinDaily {
			underMin = append(underMin, as.AdSetID)
		}
	}
	items = append(items,
		model.ChecklistItem{
			Check:    "creatives_per_adset",
			Passed:   len(noCreative) == 0,
			Detail:   detailOr(noCreative, "no creatives: ", "every ad set has at least one creative"),
			Blocking: true,
		},
		model.ChecklistItem{
			Check:    "creative_ids_unique",
			Passed:   len(dupes) == 0,
			Detail:   detailOr(dupes, "duplicate creative IDs: ", fmt.Sprintf("%d distinct creatives", len(seen))),
			Blocking: true,
		},
		model.ChecklistItem{
			Check:    "daily_budget_minimum",
			Passed:   len(underMin) == 0,
			Detail:   detailOr(underMin, "below platform minimum: ", fmt.Sprintf("every ad set at or above $%.2f/day", platformMinDaily)),
			Blocking: true,
		},
		model.ChecklistItem{
			Check:    "budget_within_total",
			Passed:   c.Summary.ProjectedWeekly <= in.Request.Budget*weeklyTolerance+0.01,
			Detail:   fmt.Sprintf("projected $%.2f/week against $%.2f", c.Summary.ProjectedWeekly, in.Request.Budget),
			Blocking: true,
		},
	)

	page := model.ChecklistItem{Check: "page_id_present", Detail: "set brand.page_id before submitting creatives"}
	if in.Request.Brand != nil && in.Request.Brand.PageID != "" {
		page.Passed = true
		page.Detail = "creatives publish from page " + in.Request.Brand.PageID
	}
	items = append(items,
		page,
		model.ChecklistItem{
			Check:  "overlap_reviewed",
			Passed: len(c.OverlapWarnings) == 0,
			Detail: fmt.Sprintf("%d overlapping ad set pairs", len(c.OverlapWarnings)),
		},
	)
	return items
}

func detailOr(list []string, prefix, ok string) string {
	if len(list) == 0 {
		return ok
	}
	return prefix + strings.Join(list, ", ")
}

func toCents(usd float64) int64 {
	return int64(math.Round(usd * 100))
}
