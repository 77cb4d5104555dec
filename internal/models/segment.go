// internal/models/segment.go
package models

import "time"

// Segment is a named set of conditions over leads.
type Segment struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Size       int         `json:"size"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}
