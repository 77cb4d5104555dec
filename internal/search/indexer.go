// internal/search/indexer.go
// Package search indexes touchpoints into Elasticsearch for the reporting
// dashboards.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"lead-automation/internal/common/logger"
	"lead-automation/internal/models"
)

const DefaultTouchpointIndex = "lead-touchpoints"

// TouchpointMapping is the index mapping for touchpoint documents.
const TouchpointMapping = `{
  "mappings": {
    "properties": {
      "touchpointId": {"type": "keyword"},
      "leadId":       {"type": "keyword"},
      "leadEmail":    {"type": "keyword"},
      "type":         {"type": "keyword"},
      "stage":        {"type": "keyword"},
      "score":        {"type": "integer"},
      "channel":      {"type": "keyword"},
      "campaign":     {"type": "keyword"},
      "url":          {"type": "keyword"},
      "timeOnPage":   {"type": "float"},
      "scrollDepth":  {"type": "float"},
      "industry":     {"type": "keyword"},
      "timestamp":    {"type": "date"}
    }
  }
}`

// TouchpointDocument is the indexed form of one touchpoint, denormalized
// with the lead state at the time it was recorded.
type TouchpointDocument struct {
	TouchpointID string    `json:"touchpointId"`
	LeadID       string    `json:"leadId"`
	LeadEmail    string    `json:"leadEmail"`
	Type         string    `json:"type"`
	Stage        string    `json:"stage"`
	Score        int       `json:"score"`
	Channel      string    `json:"channel,omitempty"`
	Campaign     string    `json:"campaign,omitempty"`
	URL          string    `json:"url,omitempty"`
	TimeOnPage   float64   `json:"timeOnPage,omitempty"`
	ScrollDepth  float64   `json:"scrollDepth,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewTouchpointDocument(lead *models.Lead, tp models.Touchpoint) TouchpointDocument {
	return TouchpointDocument{
		TouchpointID: tp.ID,
		LeadID:       lead.ID,
		LeadEmail:    lead.Email,
		Type:         string(tp.Type),
		Stage:        string(lead.Journey.CurrentStage),
		Score:        lead.Score,
		Channel:      tp.Source.Channel,
		Campaign:     tp.Source.Campaign,
		URL:          tp.Content.URL,
		TimeOnPage:   tp.Engagement.TimeOnPageSeconds,
		ScrollDepth:  tp.Engagement.ScrollDepth,
		Industry:     lead.Company.Industry,
		Timestamp:    tp.Timestamp,
	}
}

type TouchpointIndexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewTouchpointIndexer(client *elasticsearch.Client, index string, log logger.Logger) *TouchpointIndexer {
	if index == "" {
		index = DefaultTouchpointIndex
	}
	return &TouchpointIndexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "touchpoint-indexer"}),
	}
}

// IndexTouchpoint upserts the touchpoint document under its id.
func (i *TouchpointIndexer) IndexTouchpoint(ctx context.Context, lead *models.Lead, tp models.Touchpoint) error {
	body, err := json.Marshal(NewTouchpointDocument(lead, tp))
	if err != nil {
		return fmt.Errorf("marshal touchpoint document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: tp.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("index touchpoint %s: %w", tp.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index touchpoint %s: %s: %s", tp.ID, res.Status(), string(msg))
	}

	i.logger.Debug("Touchpoint indexed", map[string]interface{}{
		"touchpointId": tp.ID,
		"index":        i.index,
	})
	return nil
}
