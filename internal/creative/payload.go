package creative

import (
	"net/url"

	"github.com/sells-group/campaign-cli/internal/model"
)

type copyBlock struct {
	Headline     string
	PrimaryText  string
	Description  string
	ImageURL     string
	LinkURL      string
	CallToAction string
}

func defaultCTA(a model.Angle) string {
	switch a {
	case model.AngleOffer, model.AngleUrgency:
		return "SHOP_NOW"
	default:
		return "LEARN_MORE"
	}
}

func buildVariant(req Request, n int, angle model.Angle, metric model.ExpectedMetric, hypothesis, assetID string, c copyBlock) model.CreativeVariant {
	id := model.CreativeID(req.Audience.AdSetID, n)
	tracking := TrackingParameters(req.CampaignName, req.Audience.AdSetID, id)

	link := c.LinkURL
	if link == "" {
		link = req.ProductURL
	}
	cta := c.CallToAction
	if cta == "" {
		cta = defaultCTA(angle)
	}
	tagged := AppendTracking(link, tracking)

	pageID := ""
	if req.Brand != nil {
		pageID = req.Brand.PageID
	}

	return model.CreativeVariant{
		AdSetID:        req.Audience.AdSetID,
		CreativeID:     id,
		Angle:          angle,
		ExpectedMetric: metric,
		Hypothesis:     hypothesis,
		PredictedCTR:   model.BaselineCTR(req.Audience.Type) * angleLift[angle],
		AssetID:        assetID,
		Payload: model.CreativePayload{
			Name: id,
			ObjectStorySpec: model.ObjectStorySpec{
				PageID: pageID,
				LinkData: model.LinkData{
					Message:     c.PrimaryText,
					Name:        c.Headline,
					Description: c.Description,
					Link:        tagged,
					Picture:     c.ImageURL,
					CallToAction: model.CallToAction{
						Type:  cta,
						Value: map[string]string{"link": tagged},
					},
				},
			},
		},
		TrackingParameters: tracking,
	}
}

// TrackingParameters returns the UTM set for one creative.
func TrackingParameters(campaign, adsetID, creativeID string) map[string]string {
	return map[string]string{
		"utm_source":   "facebook",
		"utm_medium":   "paid_social",
		"utm_campaign": model.AdSetKey(campaign),
		"utm_term":     adsetID,
		"utm_content":  creativeID,
	}
}

// AppendTracking merges params into the query of raw. Existing keys are
// overwritten. An unparsable URL is returned unchanged.
func AppendTracking(raw string, params map[string]string) string {
	u, err := url.Parse(raw)
	if err != nil || raw == "" {
		return raw
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
