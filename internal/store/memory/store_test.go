// internal/store/memory/store_test.go
package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/models"
	"lead-automation/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeads_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	lead := models.NewLead("l1", "Jane@Acme.io", time.Now())

	require.NoError(t, s.CreateLead(ctx, lead))
	assert.Error(t, s.CreateLead(ctx, lead))
	assert.Error(t, s.CreateLead(ctx, models.NewLead("l2", "jane@acme.io", time.Now())))

	byEmail, err := s.GetLeadByEmail(ctx, " jane@ACME.io")
	require.NoError(t, err)
	assert.Equal(t, "l1", byEmail.ID)

	byEmail.Score = 77
	byEmail.Email = "jane@new.io"
	require.NoError(t, s.UpdateLead(ctx, byEmail))

	got, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 77, got.Score)

	_, err = s.GetLeadByEmail(ctx, "jane@acme.io")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLeadNotFound))
	_, err = s.GetLeadByEmail(ctx, "jane@new.io")
	assert.NoError(t, err)
}

func TestLeads_ReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateLead(ctx, models.NewLead("l1", "a@b.io", time.Now())))

	got, _ := s.GetLead(ctx, "l1")
	got.Tags = append(got.Tags, "mutated")

	again, _ := s.GetLead(ctx, "l1")
	assert.Empty(t, again.Tags)
}

func TestNotFoundCodes(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetLead(ctx, "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeLeadNotFound))
	_, err = s.GetWorkflow(ctx, "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWorkflowNotFound))
	_, err = s.GetExecution(ctx, "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExecutionNotFound))
	_, err = s.GetTest(ctx, "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTestNotFound))
	_, err = s.GetSegment(ctx, "x")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSegmentNotFound))
	assert.True(t, apperrors.IsCode(s.UpdateLead(ctx, &models.Lead{ID: "x"}), apperrors.ErrCodeLeadNotFound))
}

func TestWorkflows_AnalyticsAndDispatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SaveWorkflow(ctx, &models.Workflow{ID: "wf", Active: true}))

	require.NoError(t, s.UpdateAnalytics(ctx, "wf", func(a *models.WorkflowAnalytics) { a.TotalExecutions++ }))
	require.NoError(t, s.UpdateAnalytics(ctx, "wf", func(a *models.WorkflowAnalytics) { a.TotalExecutions++ }))
	wf, _ := s.GetWorkflow(ctx, "wf")
	assert.Equal(t, 2, wf.Analytics.TotalExecutions)

	first, err := s.MarkDispatched(ctx, "wf", time.Now())
	require.NoError(t, err)
	second, err := s.MarkDispatched(ctx, "wf", time.Now())
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)
}

func TestExecutions_ListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now()
	for i, e := range []struct{ id, wf, lead string }{
		{"e3", "wf1", "l1"}, {"e1", "wf1", "l1"}, {"e2", "wf2", "l1"}, {"e4", "wf1", "l2"},
	} {
		require.NoError(t, s.CreateExecution(ctx, &models.WorkflowExecution{
			ID: e.id, WorkflowID: e.wf, LeadID: e.lead,
			Status: models.ExecutionRunning, StartedAt: base.Add(time.Duration(4-i) * time.Minute),
		}))
	}

	got, err := s.ListExecutions(ctx, store.ExecutionFilter{WorkflowID: "wf1", LeadID: "l1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e3", got[1].ID)

	all, _ := s.ListExecutions(ctx, store.ExecutionFilter{Status: models.ExecutionRunning})
	assert.Len(t, all, 4)
}

func TestABTests_UpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SaveTest(ctx, &models.ABTest{ID: "t", Variants: []models.Variant{{ID: "a"}, {ID: "b"}}}))

	boom := errors.New("boom")
	err := s.UpdateTest(ctx, "t", func(test *models.ABTest) error {
		test.Variants[0].Visitors = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	test, _ := s.GetTest(ctx, "t")
	assert.Zero(t, test.Variants[0].Visitors)
}

func TestConversionsAndSegments(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SaveConversion(ctx, &models.ConversionEvent{ID: "c1", LeadID: "l1", Value: 10}))
	require.NoError(t, s.SaveConversion(ctx, &models.ConversionEvent{ID: "c2", LeadID: "l2", Value: 20}))

	mine, _ := s.ListConversions(ctx, "l1")
	assert.Len(t, mine, 1)
	all, _ := s.ListConversions(ctx, "")
	assert.Len(t, all, 2)

	require.NoError(t, s.SaveSegment(ctx, &models.Segment{ID: "s", Name: "hot"}))
	require.NoError(t, s.SaveSegment(ctx, &models.Segment{ID: "s", Name: "hot", Size: 3}))
	segs, _ := s.ListSegments(ctx)
	require.Len(t, segs, 1)
	assert.Equal(t, 3, segs[0].Size)
}
