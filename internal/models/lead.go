// internal/models/lead.go
package models

import (
	"sort"
	"time"
)

type LeadStatus string

const (
	LeadStatusNew         LeadStatus = "new"
	LeadStatusContacted   LeadStatus = "contacted"
	LeadStatusQualified   LeadStatus = "qualified"
	LeadStatusProposal    LeadStatus = "proposal"
	LeadStatusNegotiation LeadStatus = "negotiation"
	LeadStatusClosedWon   LeadStatus = "closed-won"
	LeadStatusClosedLost  LeadStatus = "closed-lost"
	LeadStatusNurturing   LeadStatus = "nurturing"
	LeadStatusUnqualified LeadStatus = "unqualified"
)

// LeadStatuses lists every valid lead status.
var LeadStatuses = []LeadStatus{
	LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusProposal,
	LeadStatusNegotiation, LeadStatusClosedWon, LeadStatusClosedLost,
	LeadStatusNurturing, LeadStatusUnqualified,
}

func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Company holds the firmographic attributes of a lead.
type Company struct {
	Name     string  `json:"name,omitempty"`
	Industry string  `json:"industry,omitempty"`
	Size     int     `json:"size,omitempty"`
	Revenue  float64 `json:"revenue,omitempty"`
	Country  string  `json:"country,omitempty"`
	Website  string  `json:"website,omitempty"`
}

type Lead struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	FirstName    string                 `json:"firstName,omitempty"`
	LastName     string                 `json:"lastName,omitempty"`
	JobTitle     string                 `json:"jobTitle,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Source       string                 `json:"source,omitempty"`
	Company      Company                `json:"company"`
	Score        int                    `json:"score"`
	Status       LeadStatus             `json:"status"`
	AssignedTo   string                 `json:"assignedTo,omitempty"`
	Journey      CustomerJourney        `json:"journey"`
	CustomFields map[string]interface{} `json:"customFields,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
	UpdatedAt    time.Time              `json:"updatedAt"`
	ConvertedAt  *time.Time             `json:"convertedAt,omitempty"`
}

// NewLead creates a lead at the start of the funnel.
func NewLead(id, email string, now time.Time) *Lead {
	return &Lead{
		ID:           id,
		Email:        email,
		Status:       LeadStatusNew,
		CustomFields: map[string]interface{}{},
		Journey: CustomerJourney{
			CurrentStage: StageAwareness,
			StageHistory: []StageVisit{{Stage: StageAwareness, EnteredAt: now}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (l *Lead) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag adds tag to the set and reports whether it was newly added.
func (l *Lead) AddTag(tag string) bool {
	if tag == "" || l.HasTag(tag) {
		return false
	}
	l.Tags = append(l.Tags, tag)
	sort.Strings(l.Tags)
	return true
}

// RemoveTag removes tag and reports whether it was present.
func (l *Lead) RemoveTag(tag string) bool {
	for i, t := range l.Tags {
		if t == tag {
			l.Tags = append(l.Tags[:i], l.Tags[i+1:]...)
			return true
		}
	}
	return false
}

// Record flattens the lead into the nested map that conditions and
// scoring rules are evaluated against.
func (l *Lead) Record() map[string]interface{} {
	tags := make([]interface{}, len(l.Tags))
	for i, t := range l.Tags {
		tags[i] = t
	}
	return map[string]interface{}{
		"id":        l.ID,
		"email":     l.Email,
		"firstName": l.FirstName,
		"lastName":  l.LastName,
		"jobTitle":  l.JobTitle,
		"phone":     l.Phone,
		"source":    l.Source,
		"company": map[string]interface{}{
			"name":     l.Company.Name,
			"industry": l.Company.Industry,
			"size":     l.Company.Size,
			"revenue":  l.Company.Revenue,
			"country":  l.Company.Country,
			"website":  l.Company.Website,
		},
		"score":           l.Score,
		"status":          string(l.Status),
		"stage":           string(l.Journey.CurrentStage),
		"assignedTo":      l.AssignedTo,
		"tags":            tags,
		"customFields":    cloneMap(l.CustomFields),
		"touchpointCount": len(l.Journey.Touchpoints),
		"converted":       l.ConvertedAt != nil,
	}
}

// Clone returns a deep copy so stores never hand out shared state.
func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	c := *l
	c.CustomFields = cloneMap(l.CustomFields)
	c.Tags = append([]string(nil), l.Tags...)
	c.ConvertedAt = cloneTime(l.ConvertedAt)
	c.Journey = l.Journey.clone()
	return &c
}
