// internal/tracking/service_test.go
package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-automation/internal/abtest"
	"lead-automation/internal/attribution"
	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/common/locks"
	"lead-automation/internal/common/logger"
	"lead-automation/internal/journey"
	"lead-automation/internal/models"
	"lead-automation/internal/scheduler"
	"lead-automation/internal/scoring"
	"lead-automation/internal/store/memory"
	"lead-automation/internal/workflow"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// ==========================
// Fakes
// ==========================

type recordingHandler struct {
	mu     sync.Mutex
	events []workflow.Event
}

func (r *recordingHandler) HandleEvent(_ context.Context, ev workflow.Event) ([]*models.WorkflowExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil, nil
}

func (r *recordingHandler) types() []models.TriggerType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TriggerType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type fakeIndexer struct {
	mu      sync.Mutex
	indexed []string
	err     error
}

func (f *fakeIndexer) IndexTouchpoint(_ context.Context, _ *models.Lead, tp models.Touchpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, tp.ID)
	return f.err
}

// failingLeadUpdates fails the first n lead writes.
type failingLeadUpdates struct {
	*memory.Store
	failures int
}

func (f *failingLeadUpdates) UpdateLead(ctx context.Context, lead *models.Lead) error {
	if f.failures > 0 {
		f.failures--
		return apperrors.NewStoreOperationFailedError("update_lead", errors.New("connection reset"))
	}
	return f.Store.UpdateLead(ctx, lead)
}

type fakeCounter struct {
	leads []string
}

func (f *fakeCounter) RecordConversion(_ context.Context, leadID string) (int, error) {
	f.leads = append(f.leads, leadID)
	return 1, nil
}

type fixture struct {
	svc     *Service
	store   *memory.Store
	events  *recordingHandler
	indexer *fakeIndexer
	counter *fakeCounter
}

func newFixture(t *testing.T, rules ...models.ScoringRule) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	f := &fixture{
		store:   memory.New(),
		events:  &recordingHandler{},
		indexer: &fakeIndexer{},
		counter: &fakeCounter{},
	}
	f.svc = NewService(Dependencies{
		Repo:        f.store,
		Scorer:      scoring.NewEngine(scoring.NewRuleSet(rules), log),
		Tracker:     journey.NewTracker(log),
		Attribution: attribution.NewCalculator(0),
		Events:      f.events,
		Tests:       f.counter,
		Indexer:     f.indexer,
		Logger:      log,
	})
	f.svc.now = func() time.Time { return base }
	return f
}

func pageView(email, url string, at time.Time) TouchpointInput {
	return TouchpointInput{
		Email:     email,
		Type:      models.TouchpointPageView,
		Timestamp: at,
		Source:    models.TouchpointSource{Channel: "organic"},
		Content:   models.TouchpointContent{URL: url},
	}
}

// ==========================
// RecordTouchpoint
// ==========================

func TestRecordTouchpoint_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   TouchpointInput
		code apperrors.ErrorCode
	}{
		{"unknown type", TouchpointInput{Email: "a@b.io", Type: "carrier_pigeon"}, apperrors.ErrCodeInvalidTouchpoint},
		{"no lead reference", TouchpointInput{Type: models.TouchpointPageView}, apperrors.ErrCodeInvalidTouchpoint},
		{"unknown lead id", TouchpointInput{LeadID: "missing", Type: models.TouchpointPageView}, apperrors.ErrCodeLeadNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordTouchpoint(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.code))
		})
	}
}

func TestRecordTouchpoint_CreatesLeadByEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := pageView("Jane@Acme.io ", "https://acme.io/blog", base)
	in.Profile = Profile{FirstName: "Jane", Company: models.Company{Name: "Acme", Industry: "saas"}}
	first, err := f.svc.RecordTouchpoint(ctx, in)
	require.NoError(t, err)
	assert.True(t, first.LeadCreated)

	second, err := f.svc.RecordTouchpoint(ctx, pageView("jane@acme.io", "https://acme.io/docs", base.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, second.LeadCreated)
	assert.Equal(t, first.LeadID, second.LeadID)

	lead, err := f.store.GetLead(ctx, first.LeadID)
	require.NoError(t, err)
	assert.Equal(t, "jane@acme.io", lead.Email)
	assert.Equal(t, "Jane", lead.FirstName)
	assert.Equal(t, "saas", lead.Company.Industry)
	assert.Len(t, lead.Journey.Touchpoints, 2)
	assert.Equal(t, []string{first.TouchpointID, second.TouchpointID}, f.indexer.indexed)
}

func TestRecordTouchpoint_OrdersJourneyByTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late, err := f.svc.RecordTouchpoint(ctx, pageView("a@b.io", "/x", base.Add(time.Hour)))
	require.NoError(t, err)
	early, err := f.svc.RecordTouchpoint(ctx, pageView("a@b.io", "/y", base))
	require.NoError(t, err)

	lead, err := f.store.GetLead(ctx, late.LeadID)
	require.NoError(t, err)
	require.Len(t, lead.Journey.Touchpoints, 2)
	assert.Equal(t, early.TouchpointID, lead.Journey.Touchpoints[0].ID)
	assert.Equal(t, late.TouchpointID, lead.Journey.Touchpoints[1].ID)
}

func TestRecordTouchpoint_EmitsEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordTouchpoint(ctx, TouchpointInput{
		Email:     "a@b.io",
		Type:      models.TouchpointFormFill,
		Timestamp: base,
	})
	require.NoError(t, err)

	// A form fill moves awareness to interest and scores nothing.
	assert.Equal(t, []models.TriggerType{
		models.TriggerTouchpointRecorded,
		models.TriggerStageChanged,
	}, f.events.types())
	assert.Equal(t, models.StageAwareness, f.events.events[1].FromStage)
	assert.Equal(t, models.StageInterest, f.events.events[1].Stage)

	_, err = f.svc.RecordTouchpoint(ctx, TouchpointInput{
		Email:     "a@b.io",
		Type:      models.TouchpointDownload,
		Timestamp: base.Add(time.Minute),
	})
	require.NoError(t, err)

	types := f.events.types()
	assert.Contains(t, types[2:], models.TriggerScoreThreshold)
	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, 0, last.PreviousScore)
	assert.Equal(t, 10, last.Score)
}

func TestRecordTouchpoint_IndexerFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.indexer.err = errors.New("cluster red")

	res, err := f.svc.RecordTouchpoint(context.Background(), pageView("a@b.io", "/", base))
	require.NoError(t, err)
	assert.NotEmpty(t, res.TouchpointID)
}

func TestRecordTouchpoint_ConcurrentFirstTouches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.RecordTouchpoint(ctx, pageView("same@lead.io", "/", base.Add(time.Duration(i)*time.Second)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	leads, err := f.store.ListLeads(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Len(t, leads[0].Journey.Touchpoints, 20)
	assert.Equal(t, 10, leads[0].Score, "page views cap at 10")
}

// ==========================
// Journey + attribution scenario
// ==========================

func TestScenario_JourneyAndLinearAttribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1, err := f.svc.RecordTouchpoint(ctx, pageView("jane@acme.io", "https://acme.io/", base))
	require.NoError(t, err)
	assert.Equal(t, models.StageAwareness, r1.Stage)

	r2, err := f.svc.RecordTouchpoint(ctx, TouchpointInput{
		LeadID:    r1.LeadID,
		Type:      models.TouchpointFormFill,
		Timestamp: base.Add(24 * time.Hour),
		Source:    models.TouchpointSource{Channel: "email"},
		Content:   models.TouchpointContent{FormID: "newsletter"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.StageInterest, r2.Stage)

	r3, err := f.svc.RecordTouchpoint(ctx, pageView("jane@acme.io", "https://acme.io/pricing", base.Add(48*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, models.StageConsideration, r3.Stage)
	assert.True(t, r3.StageChanged)

	conv, err := f.svc.RecordConversion(ctx, ConversionInput{
		LeadID:    r1.LeadID,
		EventType: models.ConversionPurchase,
		Value:     250,
	})
	require.NoError(t, err)

	require.Len(t, conv.Attribution.Linear, 3)
	var sum float64
	for _, c := range conv.Attribution.Linear {
		assert.InDelta(t, 83.33, c.Value, 0.01)
		sum += c.Value
	}
	assert.InDelta(t, 250, sum, 0.01)
	assert.Equal(t, r1.TouchpointID, conv.Attribution.FirstTouch[0].TouchpointID)

	lead, err := f.store.GetLead(ctx, r1.LeadID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusClosedWon, lead.Status)
	require.NotNil(t, lead.ConvertedAt)
	require.NotNil(t, lead.Journey.Attribution)
	assert.Equal(t, 250.0, lead.Journey.Attribution.ConversionValue)
	require.Len(t, lead.Journey.StageHistory, 3)
	assert.InDelta(t, 1.0, lead.Journey.StageHistory[0].DwellDays, 0.0001)

	saved, err := f.store.ListConversions(ctx, r1.LeadID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "USD", saved[0].Currency)
	assert.Equal(t, []string{r1.LeadID}, f.counter.leads)
	assert.Equal(t, models.TriggerConversion, f.events.types()[len(f.events.types())-1])
}

func TestRecordConversion_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		in   ConversionInput
		code apperrors.ErrorCode
	}{
		{"missing lead id", ConversionInput{EventType: models.ConversionSignup}, apperrors.ErrCodeInvalidConversion},
		{"unknown type", ConversionInput{LeadID: "l", EventType: "refund"}, apperrors.ErrCodeInvalidConversion},
		{"negative value", ConversionInput{LeadID: "l", EventType: models.ConversionPurchase, Value: -5}, apperrors.ErrCodeInvalidConversion},
		{"unknown lead", ConversionInput{LeadID: "missing", EventType: models.ConversionDemo}, apperrors.ErrCodeLeadNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordConversion(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.code))
		})
	}
}

func TestRecordConversion_NoTouchpoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateLead(ctx, models.NewLead("lead-1", "a@b.io", base)))

	conv, err := f.svc.RecordConversion(ctx, ConversionInput{LeadID: "lead-1", EventType: models.ConversionSignup, Value: 10})
	require.NoError(t, err)
	assert.True(t, conv.Attribution.Empty())

	lead, err := f.store.GetLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, lead.Status, "only purchases close the lead")
}

func TestRecordConversion_RetryAfterLeadWriteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RecordTouchpoint(ctx, pageView("a@b.io", "/pricing", base))
	require.NoError(t, err)
	lead, err := f.store.GetLeadByEmail(ctx, "a@b.io")
	require.NoError(t, err)
	f.svc.repo = &failingLeadUpdates{Store: f.store, failures: 1}

	in := ConversionInput{LeadID: lead.ID, EventType: models.ConversionPurchase, Value: 250}
	_, err = f.svc.RecordConversion(ctx, in)
	require.Error(t, err)

	saved, err := f.store.ListConversions(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, saved, "a failed lead write leaves no conversion behind")

	_, err = f.svc.RecordConversion(ctx, in)
	require.NoError(t, err)

	saved, err = f.store.ListConversions(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	analytics, err := f.svc.GetLeadAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 250.0, analytics.ConversionValue)
}

func TestRecordConversion_SameKeyRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.RecordTouchpoint(ctx, pageView("a@b.io", "/pricing", base))
	require.NoError(t, err)
	lead, err := f.store.GetLeadByEmail(ctx, "a@b.io")
	require.NoError(t, err)

	in := ConversionInput{ConversionID: "order-77", LeadID: lead.ID, EventType: models.ConversionPurchase, Value: 250}
	first, err := f.svc.RecordConversion(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, "order-77", first.ConversionID)
	eventsAfterFirst := len(f.events.types())

	second, err := f.svc.RecordConversion(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, "order-77", second.ConversionID)
	assert.Equal(t, first.Attribution.ConversionValue, second.Attribution.ConversionValue)

	saved, err := f.store.ListConversions(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
	assert.Equal(t, []string{lead.ID}, f.counter.leads, "split tests count the conversion once")
	assert.Len(t, f.events.types(), eventsAfterFirst, "no second conversion event")
}

// ==========================
// End to end with the workflow engine
// ==========================

func TestStageTriggerStartsWorkflow(t *testing.T) {
	log := logger.NewTestLogger(t)
	st := memory.New()
	leadLocks := locks.NewKeyedMutex()
	ctx := context.Background()

	engine := workflow.NewEngine(st, scheduler.NewMemoryQueue(), workflow.Collaborators{
		SplitTests: abtest.NewService(st, log),
	}, workflow.Options{LeadLocks: leadLocks}, log)
	svc := NewService(Dependencies{
		Repo:        st,
		Scorer:      scoring.NewEngine(scoring.NewRuleSet(nil), log),
		Tracker:     journey.NewTracker(log),
		Attribution: attribution.NewCalculator(0),
		Events:      engine,
		LeadLocks:   leadLocks,
		Logger:      log,
	})

	require.NoError(t, st.SaveWorkflow(ctx, &models.Workflow{
		ID:      "sales-ready",
		Active:  true,
		Trigger: models.Trigger{Type: models.TriggerStageChanged, Stage: models.StageConsideration},
		Actions: []models.Action{
			{ID: "tag", Active: true, Config: models.AddTagConfig{Tag: "sales-ready"}},
			{ID: "status", Active: true, Config: models.UpdateFieldConfig{Field: "status", Value: "qualified"}},
		},
	}))

	res, err := svc.RecordTouchpoint(ctx, pageView("jane@acme.io", "https://acme.io/pricing", time.Now()))
	require.NoError(t, err)
	require.Len(t, res.Executions, 1)

	lead, err := st.GetLead(ctx, res.LeadID)
	require.NoError(t, err)
	assert.True(t, lead.HasTag("sales-ready"))
	assert.Equal(t, models.LeadStatusQualified, lead.Status)
}

// ==========================
// Analytics and segments
// ==========================

func TestGetLeadAnalyticsAndSegments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.RecordTouchpoint(ctx, pageView("a@acme.io", "/pricing", base))
	require.NoError(t, err)
	_, err = f.svc.RecordTouchpoint(ctx, TouchpointInput{
		Email:     "b@other.io",
		Type:      models.TouchpointDownload,
		Timestamp: base,
		Source:    models.TouchpointSource{UTM: models.UTM{Medium: "cpc"}},
	})
	require.NoError(t, err)
	_, err = f.svc.RecordConversion(ctx, ConversionInput{LeadID: a.LeadID, EventType: models.ConversionPurchase, Value: 100})
	require.NoError(t, err)

	require.NoError(t, f.store.SaveSegment(ctx, &models.Segment{
		ID:         "engaged",
		Conditions: []models.Condition{{Field: "score", Operator: models.OpGreaterThan, Value: 5}},
	}))

	stats, err := f.svc.GetLeadAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLeads)
	assert.Equal(t, 2, stats.TotalTouchpoints)
	assert.Equal(t, 1, stats.TouchpointsByType["page_view"])
	assert.Equal(t, 1, stats.TouchpointsByType["download"])
	assert.Equal(t, 1, stats.ByStage["consideration"])
	assert.Equal(t, 1, stats.ByStatus["closed-won"])
	assert.Equal(t, 2, stats.ScoreDistribution["0-20"])
	assert.InDelta(t, 5.5, stats.AverageScore, 0.001)
	assert.Equal(t, 1, stats.Conversions)
	assert.Equal(t, 1, stats.ConvertedLeads)
	assert.InDelta(t, 50, stats.ConversionRate, 0.001)
	assert.InDelta(t, 100, stats.AttributedValueByChannel["organic"], 0.001)

	sizes, err := f.svc.RecomputeSegments(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"engaged": 1}, sizes)

	seg, err := f.store.GetSegment(ctx, "engaged")
	require.NoError(t, err)
	assert.Equal(t, 1, seg.Size)
	assert.Equal(t, base, seg.UpdatedAt)
}
