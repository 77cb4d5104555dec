// internal/tracking/service.go
// Package tracking ingests touchpoints and conversions for leads. Each
// event updates the lead's journey, score and attribution under the lead's
// lock, then hands the resulting trigger events to the workflow engine.
package tracking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"lead-automation/internal/attribution"
	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/locks"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/common/metrics"
	"lead-automation/internal/journey"
	"lead-automation/internal/models"
	"lead-automation/internal/scoring"
	"lead-automation/internal/store"
	"lead-automation/internal/workflow"
)

type Repository interface {
	store.LeadStore
	store.ConversionStore
	store.SegmentStore
}

// EventHandler starts the workflows an event matches.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev workflow.Event) ([]*models.WorkflowExecution, error)
}

// ConversionCounter credits a conversion to the lead's A/B test variants.
type ConversionCounter interface {
	RecordConversion(ctx context.Context, leadID string) (int, error)
}

// Indexer receives every recorded touchpoint. Failures are logged only.
type Indexer interface {
	IndexTouchpoint(ctx context.Context, lead *models.Lead, tp models.Touchpoint) error
}

type Service struct {
	repo        Repository
	scorer      *scoring.Engine
	tracker     *journey.Tracker
	attribution *attribution.Calculator
	events      EventHandler
	tests       ConversionCounter
	indexer     Indexer
	leadLocks   *locks.KeyedMutex
	logger      logger.Logger
	now         func() time.Time
	newID       func() string
}

type Dependencies struct {
	Repo        Repository
	Scorer      *scoring.Engine
	Tracker     *journey.Tracker
	Attribution *attribution.Calculator
	Events      EventHandler
	Tests       ConversionCounter
	Indexer     Indexer
	LeadLocks   *locks.KeyedMutex
	Logger      logger.Logger
}

func NewService(deps Dependencies) *Service {
	leadLocks := deps.LeadLocks
	if leadLocks == nil {
		leadLocks = locks.NewKeyedMutex()
	}
	return &Service{
		repo:        deps.Repo,
		scorer:      deps.Scorer,
		tracker:     deps.Tracker,
		attribution: deps.Attribution,
		events:      deps.Events,
		tests:       deps.Tests,
		indexer:     deps.Indexer,
		leadLocks:   leadLocks,
		logger:      deps.Logger.WithFields(map[string]interface{}{"component": "tracking"}),
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// ==========================
// Touchpoints
// ==========================

// TouchpointInput identifies the lead by id, or by email for leads that may
// not exist yet. Profile fields fill blanks on the lead.
type TouchpointInput struct {
	LeadID     string
	Email      string
	Type       models.TouchpointType
	Timestamp  time.Time
	Source     models.TouchpointSource
	Engagement models.Engagement
	Content    models.TouchpointContent
	Metadata   map[string]interface{}
	Profile    Profile
}

// Profile carries lead attributes supplied with an event.
type Profile struct {
	FirstName string
	LastName  string
	JobTitle  string
	Phone     string
	Source    string
	Company   models.Company
}

type TouchpointResult struct {
	TouchpointID string
	LeadID       string
	LeadCreated  bool
	Score        int
	Stage        models.Stage
	StageChanged bool
	Executions   []string
}

// RecordTouchpoint appends a touchpoint to the lead's journey, advances its
// stage, rescores it and fires the matching workflow triggers.
func (s *Service) RecordTouchpoint(ctx context.Context, in TouchpointInput) (*TouchpointResult, error) {
	if !in.Type.Valid() {
		return nil, errors.NewInvalidTouchpointError(fmt.Sprintf("unknown touchpoint type %q", in.Type))
	}
	if in.LeadID == "" && strings.TrimSpace(in.Email) == "" {
		return nil, errors.NewInvalidTouchpointError("leadId or email is required")
	}

	var (
		result   *TouchpointResult
		snapshot *models.Lead
		tp       models.Touchpoint
		events   []workflow.Event
	)

	err := s.withLead(ctx, in.LeadID, in.Email, func(lead *models.Lead, created bool) error {
		now := s.now()
		applyProfile(lead, in.Profile)

		tp = models.Touchpoint{
			ID:         s.newID(),
			LeadID:     lead.ID,
			Type:       in.Type,
			Timestamp:  in.Timestamp,
			Source:     in.Source,
			Engagement: in.Engagement,
			Content:    in.Content,
			Metadata:   models.CloneMap(in.Metadata),
		}
		if tp.Timestamp.IsZero() {
			tp.Timestamp = now
		}

		change, moved := s.tracker.Apply(lead, tp)
		insertTouchpoint(lead, tp)

		previous := lead.Score
		score := s.scorer.ComputeScore(lead)
		lead.UpdatedAt = now

		events = append(events, workflow.Event{Type: models.TriggerTouchpointRecorded, LeadID: lead.ID, Touchpoint: &tp})
		if moved {
			metrics.StageTransitions.WithLabelValues(string(change.To)).Inc()
			events = append(events, workflow.Event{Type: models.TriggerStageChanged, LeadID: lead.ID, FromStage: change.From, Stage: change.To})
		}
		if score != previous {
			events = append(events, workflow.Event{Type: models.TriggerScoreThreshold, LeadID: lead.ID, PreviousScore: previous, Score: score})
		}

		result = &TouchpointResult{
			TouchpointID: tp.ID,
			LeadID:       lead.ID,
			LeadCreated:  created,
			Score:        score,
			Stage:        lead.Journey.CurrentStage,
			StageChanged: moved,
		}
		snapshot = lead.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TouchpointsRecorded.WithLabelValues(string(tp.Type)).Inc()
	metrics.LeadScore.Observe(float64(result.Score))
	s.logger.Info("Touchpoint recorded", map[string]interface{}{
		"leadId":       result.LeadID,
		"touchpointId": tp.ID,
		"type":         string(tp.Type),
		"score":        result.Score,
		"stage":        string(result.Stage),
	})

	if s.indexer != nil {
		if err := s.indexer.IndexTouchpoint(ctx, snapshot, tp); err != nil {
			s.logger.Warn("Touchpoint indexing failed", map[string]interface{}{
				"touchpointId": tp.ID,
				"error":        err.Error(),
			})
		}
	}

	result.Executions = s.dispatch(ctx, events)
	return result, nil
}

// insertTouchpoint keeps the journey ordered by timestamp; ties keep
// arrival order.
func insertTouchpoint(lead *models.Lead, tp models.Touchpoint) {
	tps := lead.Journey.Touchpoints
	i := sort.Search(len(tps), func(i int) bool { return tps[i].Timestamp.After(tp.Timestamp) })
	tps = append(tps, models.Touchpoint{})
	copy(tps[i+1:], tps[i:])
	tps[i] = tp
	lead.Journey.Touchpoints = tps
}

func applyProfile(lead *models.Lead, p Profile) {
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
		}
	}
	fill(&lead.FirstName, p.FirstName)
	fill(&lead.LastName, p.LastName)
	fill(&lead.JobTitle, p.JobTitle)
	fill(&lead.Phone, p.Phone)
	fill(&lead.Source, p.Source)
	fill(&lead.Company.Name, p.Company.Name)
	fill(&lead.Company.Industry, p.Company.Industry)
	fill(&lead.Company.Country, p.Company.Country)
	fill(&lead.Company.Website, p.Company.Website)
	if lead.Company.Size == 0 {
		lead.Company.Size = p.Company.Size
	}
	if lead.Company.Revenue == 0 {
		lead.Company.Revenue = p.Company.Revenue
	}
}

// ==========================
// Conversions
// ==========================

// ConversionInput describes a realized conversion. ConversionID is the
// caller's key for it, usually the order or signup id: recording the same
// key twice returns the first conversion instead of storing another.
type ConversionInput struct {
	ConversionID string
	LeadID       string
	EventType    models.ConversionEventType
	Value        float64
	Currency     string
	OccurredAt   time.Time
}

type ConversionResult struct {
	ConversionID string
	LeadID       string
	Attribution  models.AttributionModel
	Executions   []string
	// Duplicate is set when the conversion had already been recorded.
	Duplicate bool
}

// RecordConversion snapshots the attribution of the lead's touchpoints for
// the conversion, marks the lead converted and fires conversion triggers.
// The lead is saved before the conversion, so a failed call leaves no
// conversion behind and can be retried.
func (s *Service) RecordConversion(ctx context.Context, in ConversionInput) (*ConversionResult, error) {
	if in.LeadID == "" {
		return nil, errors.NewInvalidConversionError("leadId is required")
	}
	if !in.EventType.Valid() {
		return nil, errors.NewInvalidConversionError(fmt.Sprintf("unknown conversion type %q", in.EventType))
	}
	if in.Value < 0 {
		return nil, errors.NewInvalidConversionError(fmt.Sprintf("value must not be negative, got %v", in.Value))
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}

	conv, duplicate, err := s.saveConversion(ctx, in)
	if err != nil {
		return nil, err
	}
	if duplicate {
		s.logger.Info("Conversion already recorded", map[string]interface{}{
			"leadId":       conv.LeadID,
			"conversionId": conv.ID,
		})
		return &ConversionResult{
			ConversionID: conv.ID,
			LeadID:       conv.LeadID,
			Attribution:  conv.Attribution,
			Duplicate:    true,
		}, nil
	}

	metrics.ConversionsRecorded.WithLabelValues(string(conv.EventType)).Inc()
	metrics.ConversionValue.WithLabelValues(conv.Currency).Add(conv.Value)
	s.logger.Info("Conversion recorded", map[string]interface{}{
		"leadId":       conv.LeadID,
		"conversionId": conv.ID,
		"eventType":    string(conv.EventType),
		"value":        conv.Value,
		"touchpoints":  len(conv.Attribution.Linear),
	})

	if s.tests != nil {
		if _, err := s.tests.RecordConversion(ctx, conv.LeadID); err != nil {
			s.logger.Warn("A/B conversion not recorded", map[string]interface{}{
				"leadId": conv.LeadID,
				"error":  err.Error(),
			})
		}
	}

	executions := s.dispatch(ctx, []workflow.Event{{Type: models.TriggerConversion, LeadID: conv.LeadID, Conversion: conv}})
	return &ConversionResult{
		ConversionID: conv.ID,
		LeadID:       conv.LeadID,
		Attribution:  conv.Attribution,
		Executions:   executions,
	}, nil
}

// saveConversion updates the lead and stores the conversion under the lead
// lock. It reports an existing conversion with the same id as a duplicate.
func (s *Service) saveConversion(ctx context.Context, in ConversionInput) (*models.ConversionEvent, bool, error) {
	unlock := s.leadLocks.Lock(in.LeadID)
	defer unlock()

	lead, err := s.repo.GetLead(ctx, in.LeadID)
	if err != nil {
		return nil, false, err
	}

	if in.ConversionID != "" {
		existing, err := s.repo.ListConversions(ctx, lead.ID)
		if err != nil {
			return nil, false, err
		}
		for _, c := range existing {
			if c.ID == in.ConversionID {
				return c, true, nil
			}
		}
	}

	now := s.now()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	id := in.ConversionID
	if id == "" {
		id = s.newID()
	}

	attr := s.attribution.ComputeAttribution(lead.Journey.Touchpoints, in.Value)
	conv := &models.ConversionEvent{
		ID:          id,
		LeadID:      lead.ID,
		EventType:   in.EventType,
		Value:       in.Value,
		Currency:    strings.ToUpper(in.Currency),
		Attribution: attr,
		OccurredAt:  occurred,
	}

	snapshot := attr.Clone()
	lead.Journey.Attribution = &snapshot
	if lead.ConvertedAt == nil {
		lead.ConvertedAt = &occurred
	}
	if in.EventType == models.ConversionPurchase {
		lead.Status = models.LeadStatusClosedWon
	}
	lead.UpdatedAt = now
	if err := s.repo.UpdateLead(ctx, lead); err != nil {
		return nil, false, err
	}
	if err := s.repo.SaveConversion(ctx, conv); err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

// ==========================
// Helpers
// ==========================

// withLead loads the lead by id, or by email creating it when missing, and
// applies fn under the lead lock before saving.
func (s *Service) withLead(ctx context.Context, leadID, email string, fn func(lead *models.Lead, created bool) error) error {
	if leadID == "" {
		existing, err := s.repo.GetLeadByEmail(ctx, email)
		switch {
		case err == nil:
			leadID = existing.ID
		case errors.IsCode(err, errors.ErrCodeLeadNotFound):
			return s.createLead(ctx, email, fn)
		default:
			return err
		}
	}

	unlock := s.leadLocks.Lock(leadID)
	defer unlock()

	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return err
	}
	if err := fn(lead, false); err != nil {
		return err
	}
	return s.repo.UpdateLead(ctx, lead)
}

// createLead serializes creation per email so two first touches for the
// same address produce one lead.
func (s *Service) createLead(ctx context.Context, email string, fn func(lead *models.Lead, created bool) error) error {
	email = strings.ToLower(strings.TrimSpace(email))
	unlockEmail := s.leadLocks.Lock("email:" + email)
	existing, err := s.repo.GetLeadByEmail(ctx, email)
	if err == nil {
		unlockEmail()
		return s.withLead(ctx, existing.ID, "", fn)
	}
	defer unlockEmail()
	if !errors.IsCode(err, errors.ErrCodeLeadNotFound) {
		return err
	}

	lead := models.NewLead(s.newID(), email, s.now())
	unlock := s.leadLocks.Lock(lead.ID)
	defer unlock()

	if err := fn(lead, true); err != nil {
		return err
	}
	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return err
	}
	s.logger.Info("Lead created", map[string]interface{}{"leadId": lead.ID})
	return nil
}

func (s *Service) dispatch(ctx context.Context, events []workflow.Event) []string {
	if s.events == nil {
		return nil
	}
	var ids []string
	for _, ev := range events {
		started, err := s.events.HandleEvent(ctx, ev)
		if err != nil {
			s.logger.Error("Workflow trigger failed", map[string]interface{}{
				"leadId": ev.LeadID,
				"event":  string(ev.Type),
				"error":  err.Error(),
			})
		}
		for _, x := range started {
			ids = append(ids, x.ID)
		}
	}
	return ids
}
