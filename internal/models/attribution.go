// internal/models/attribution.go
package models

import "time"

type AttributionModelType string

const (
	AttributionFirstTouch    AttributionModelType = "first_touch"
	AttributionLastTouch     AttributionModelType = "last_touch"
	AttributionLinear        AttributionModelType = "linear"
	AttributionTimeDecay     AttributionModelType = "time_decay"
	AttributionPositionBased AttributionModelType = "position_based"
)

var AttributionModelTypes = []AttributionModelType{
	AttributionFirstTouch, AttributionLastTouch, AttributionLinear,
	AttributionTimeDecay, AttributionPositionBased,
}

// CreditAllocation is the share of a conversion given to one touchpoint.
// Credit is a percentage; Value is the matching share of the conversion value.
type CreditAllocation struct {
	TouchpointID string  `json:"touchpointId"`
	Credit       float64 `json:"credit"`
	Value        float64 `json:"value"`
}

// AttributionModel holds the five credit distributions over a lead's
// touchpoints for one conversion.
type AttributionModel struct {
	ConversionValue float64            `json:"conversionValue"`
	FirstTouch      []CreditAllocation `json:"firstTouch"`
	LastTouch       []CreditAllocation `json:"lastTouch"`
	Linear          []CreditAllocation `json:"linear"`
	TimeDecay       []CreditAllocation `json:"timeDecay"`
	PositionBased   []CreditAllocation `json:"positionBased"`
	ComputedAt      time.Time          `json:"computedAt"`
}

// Distribution returns the allocations for one model type.
func (m AttributionModel) Distribution(t AttributionModelType) []CreditAllocation {
	switch t {
	case AttributionFirstTouch:
		return m.FirstTouch
	case AttributionLastTouch:
		return m.LastTouch
	case AttributionLinear:
		return m.Linear
	case AttributionTimeDecay:
		return m.TimeDecay
	case AttributionPositionBased:
		return m.PositionBased
	default:
		return nil
	}
}

// Empty reports whether no attribution was possible.
func (m AttributionModel) Empty() bool {
	return len(m.FirstTouch) == 0
}

func (m AttributionModel) Clone() AttributionModel {
	cp := func(in []CreditAllocation) []CreditAllocation {
		if in == nil {
			return nil
		}
		return append([]CreditAllocation(nil), in...)
	}
	m.FirstTouch = cp(m.FirstTouch)
	m.LastTouch = cp(m.LastTouch)
	m.Linear = cp(m.Linear)
	m.TimeDecay = cp(m.TimeDecay)
	m.PositionBased = cp(m.PositionBased)
	return m
}

type ConversionEventType string

const (
	ConversionPurchase ConversionEventType = "purchase"
	ConversionSignup   ConversionEventType = "signup"
	ConversionTrial    ConversionEventType = "trial"
	ConversionDemo     ConversionEventType = "demo"
)

var ConversionEventTypes = []ConversionEventType{
	ConversionPurchase, ConversionSignup, ConversionTrial, ConversionDemo,
}

func (t ConversionEventType) Valid() bool {
	for _, v := range ConversionEventTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ConversionEvent is an immutable record of a realized conversion with the
// attribution snapshot computed at that moment.
type ConversionEvent struct {
	ID          string              `json:"id"`
	LeadID      string              `json:"leadId"`
	EventType   ConversionEventType `json:"eventType"`
	Value       float64             `json:"value"`
	Currency    string              `json:"currency"`
	Attribution AttributionModel    `json:"attribution"`
	OccurredAt  time.Time           `json:"occurredAt"`
}
