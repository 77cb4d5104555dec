// internal/models/journey.go
package models

import "time"

type Stage string

const (
	StageAwareness     Stage = "awareness"
	StageInterest      Stage = "interest"
	StageConsideration Stage = "consideration"
	StageIntent        Stage = "intent"
	StageEvaluation    Stage = "evaluation"
	StagePurchase      Stage = "purchase"
	StageOnboarding    Stage = "onboarding"
	StageRetention     Stage = "retention"
	StageAdvocacy      Stage = "advocacy"
)

// Stages is the funnel in order.
var Stages = []Stage{
	StageAwareness, StageInterest, StageConsideration, StageIntent, StageEvaluation,
	StagePurchase, StageOnboarding, StageRetention, StageAdvocacy,
}

func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index is the position of s in the funnel, or -1.
func (s Stage) Index() int {
	for i, v := range Stages {
		if v == s {
			return i
		}
	}
	return -1
}

// StageVisit is one stay in a funnel stage. ExitedAt is nil while open.
type StageVisit struct {
	Stage     Stage      `json:"stage"`
	EnteredAt time.Time  `json:"enteredAt"`
	ExitedAt  *time.Time `json:"exitedAt,omitempty"`
	DwellDays float64    `json:"dwellDays,omitempty"`
}

type CustomerJourney struct {
	Touchpoints  []Touchpoint      `json:"touchpoints"`
	CurrentStage Stage             `json:"currentStage"`
	StageHistory []StageVisit      `json:"stageHistory"`
	Attribution  *AttributionModel `json:"attribution,omitempty"`
}

func (j CustomerJourney) clone() CustomerJourney {
	c := j
	if j.Touchpoints != nil {
		c.Touchpoints = make([]Touchpoint, len(j.Touchpoints))
		for i, tp := range j.Touchpoints {
			c.Touchpoints[i] = tp.clone()
		}
	}
	if j.StageHistory != nil {
		c.StageHistory = make([]StageVisit, len(j.StageHistory))
		for i, v := range j.StageHistory {
			v.ExitedAt = cloneTime(v.ExitedAt)
			c.StageHistory[i] = v
		}
	}
	if j.Attribution != nil {
		a := j.Attribution.Clone()
		c.Attribution = &a
	}
	return c
}
