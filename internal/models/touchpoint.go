// internal/models/touchpoint.go
package models

import "time"

type TouchpointType string

const (
	TouchpointPageView          TouchpointType = "page_view"
	TouchpointEmailOpen         TouchpointType = "email_open"
	TouchpointEmailClick        TouchpointType = "email_click"
	TouchpointFormFill          TouchpointType = "form_fill"
	TouchpointDownload          TouchpointType = "download"
	TouchpointPurchase          TouchpointType = "purchase"
	TouchpointSupportTicket     TouchpointType = "support_ticket"
	TouchpointWebinarAttendance TouchpointType = "webinar_attendance"
)

var TouchpointTypes = []TouchpointType{
	TouchpointPageView, TouchpointEmailOpen, TouchpointEmailClick, TouchpointFormFill,
	TouchpointDownload, TouchpointPurchase, TouchpointSupportTicket, TouchpointWebinarAttendance,
}

func (t TouchpointType) Valid() bool {
	for _, v := range TouchpointTypes {
		if v == t {
			return true
		}
	}
	return false
}

type UTM struct {
	Source   string `json:"source,omitempty"`
	Medium   string `json:"medium,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// TouchpointSource is where an interaction came from.
type TouchpointSource struct {
	Channel  string `json:"channel,omitempty"`
	Campaign string `json:"campaign,omitempty"`
	Referrer string `json:"referrer,omitempty"`
	UTM      UTM    `json:"utm"`
}

type Engagement struct {
	TimeOnPageSeconds float64 `json:"timeOnPageSeconds,omitempty"`
	ScrollDepth       float64 `json:"scrollDepth,omitempty"`
}

// TouchpointContent describes what the lead interacted with.
type TouchpointContent struct {
	URL     string  `json:"url,omitempty"`
	Title   string  `json:"title,omitempty"`
	AssetID string  `json:"assetId,omitempty"`
	FormID  string  `json:"formId,omitempty"`
	EmailID string  `json:"emailId,omitempty"`
	Value   float64 `json:"value,omitempty"`
}

// Touchpoint is an immutable interaction event owned by one lead.
type Touchpoint struct {
	ID         string                 `json:"id"`
	LeadID     string                 `json:"leadId"`
	Type       TouchpointType         `json:"type"`
	Timestamp  time.Time              `json:"timestamp"`
	Source     TouchpointSource       `json:"source"`
	Engagement Engagement             `json:"engagement"`
	Content    TouchpointContent      `json:"content"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Record flattens the touchpoint for condition evaluation.
func (t Touchpoint) Record() map[string]interface{} {
	return map[string]interface{}{
		"id":        t.ID,
		"type":      string(t.Type),
		"timestamp": t.Timestamp.Format(time.RFC3339),
		"source": map[string]interface{}{
			"channel":  t.Source.Channel,
			"campaign": t.Source.Campaign,
			"referrer": t.Source.Referrer,
			"utm": map[string]interface{}{
				"source":   t.Source.UTM.Source,
				"medium":   t.Source.UTM.Medium,
				"campaign": t.Source.UTM.Campaign,
				"term":     t.Source.UTM.Term,
				"content":  t.Source.UTM.Content,
			},
		},
		"engagement": map[string]interface{}{
			"timeOnPageSeconds": t.Engagement.TimeOnPageSeconds,
			"scrollDepth":       t.Engagement.ScrollDepth,
		},
		"content": map[string]interface{}{
			"url":     t.Content.URL,
			"title":   t.Content.Title,
			"assetId": t.Content.AssetID,
			"formId":  t.Content.FormID,
			"emailId": t.Content.EmailID,
			"value":   t.Content.Value,
		},
		"metadata": cloneMap(t.Metadata),
	}
}

func (t Touchpoint) clone() Touchpoint {
	t.Metadata = cloneMap(t.Metadata)
	return t
}
