// internal/tracking/analytics.go
package tracking

import (
	"context"
	"math"

	"lead-automation/internal/models"
)

// LeadAnalytics is the dashboard summary over all leads.
type LeadAnalytics struct {
	TotalLeads               int                `json:"totalLeads"`
	ByStatus                 map[string]int     `json:"byStatus"`
	ByStage                  map[string]int     `json:"byStage"`
	AverageScore             float64            `json:"averageScore"`
	ScoreDistribution        map[string]int     `json:"scoreDistribution"`
	TotalTouchpoints         int                `json:"totalTouchpoints"`
	TouchpointsByType        map[string]int     `json:"touchpointsByType"`
	Conversions              int                `json:"conversions"`
	ConvertedLeads           int                `json:"convertedLeads"`
	ConversionValue          float64            `json:"conversionValue"`
	ConversionRate           float64            `json:"conversionRate"`
	AttributedValueByChannel map[string]float64 `json:"attributedValueByChannel"`
}

var scoreBands = []struct {
	label string
	max   int
}{
	{"0-20", 20},
	{"21-40", 40},
	{"41-60", 60},
	{"61-80", 80},
	{"81-100", 100},
}

func scoreBand(score int) string {
	for _, b := range scoreBands {
		if score <= b.max {
			return b.label
		}
	}
	return scoreBands[len(scoreBands)-1].label
}

// GetLeadAnalytics aggregates leads and conversions. Conversion value is
// credited to channels with the linear model.
func (s *Service) GetLeadAnalytics(ctx context.Context) (*LeadAnalytics, error) {
	leads, err := s.repo.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	conversions, err := s.repo.ListConversions(ctx, "")
	if err != nil {
		return nil, err
	}

	a := &LeadAnalytics{
		TotalLeads:               len(leads),
		ByStatus:                 map[string]int{},
		ByStage:                  map[string]int{},
		ScoreDistribution:        map[string]int{},
		TouchpointsByType:        map[string]int{},
		AttributedValueByChannel: map[string]float64{},
	}
	for _, b := range scoreBands {
		a.ScoreDistribution[b.label] = 0
	}

	channelOf := map[string]string{}
	var scoreSum int
	for _, lead := range leads {
		a.ByStatus[string(lead.Status)]++
		a.ByStage[string(lead.Journey.CurrentStage)]++
		a.ScoreDistribution[scoreBand(lead.Score)]++
		scoreSum += lead.Score
		if lead.ConvertedAt != nil {
			a.ConvertedLeads++
		}
		for _, tp := range lead.Journey.Touchpoints {
			a.TotalTouchpoints++
			a.TouchpointsByType[string(tp.Type)]++
			channelOf[tp.ID] = channel(tp)
		}
	}
	if len(leads) > 0 {
		a.AverageScore = round2(float64(scoreSum) / float64(len(leads)))
		a.ConversionRate = round2(float64(a.ConvertedLeads) / float64(len(leads)) * 100)
	}

	for _, c := range conversions {
		a.Conversions++
		a.ConversionValue += c.Value
		for _, credit := range c.Attribution.Linear {
			ch, ok := channelOf[credit.TouchpointID]
			if !ok {
				ch = "unknown"
			}
			a.AttributedValueByChannel[ch] += credit.Value
		}
	}
	a.ConversionValue = round2(a.ConversionValue)
	for ch, v := range a.AttributedValueByChannel {
		a.AttributedValueByChannel[ch] = round2(v)
	}
	return a, nil
}

func channel(tp models.Touchpoint) string {
	switch {
	case tp.Source.Channel != "":
		return tp.Source.Channel
	case tp.Source.UTM.Medium != "":
		return tp.Source.UTM.Medium
	default:
		return "direct"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
