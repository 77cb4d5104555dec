// internal/store/memory/store.go
// Package memory is an in-process store. Records live in append-only
// slices indexed by id; every read and write copies, so callers never share
// state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/models"
	"lead-automation/internal/store"
)

type Store struct {
	mu sync.RWMutex

	leads       []*models.Lead
	leadIndex   map[string]int
	emailIndex  map[string]string
	workflows   []*models.Workflow
	wfIndex     map[string]int
	executions  []*models.WorkflowExecution
	execIndex   map[string]int
	conversions []*models.ConversionEvent
	tests       []*models.ABTest
	testIndex   map[string]int
	segments    []*models.Segment
	segIndex    map[string]int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		leadIndex:  map[string]int{},
		emailIndex: map[string]string{},
		wfIndex:    map[string]int{},
		execIndex:  map[string]int{},
		testIndex:  map[string]int{},
		segIndex:   map[string]int{},
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ==========================
// Leads
// ==========================

func (s *Store) CreateLead(_ context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.leadIndex[lead.ID]; ok {
		return apperrors.NewStoreOperationFailedError("create_lead", fmt.Errorf("lead %s already exists", lead.ID))
	}
	email := normalizeEmail(lead.Email)
	if _, ok := s.emailIndex[email]; ok && email != "" {
		return apperrors.NewStoreOperationFailedError("create_lead", fmt.Errorf("email %s already registered", lead.Email))
	}
	s.leads = append(s.leads, lead.Clone())
	s.leadIndex[lead.ID] = len(s.leads) - 1
	if email != "" {
		s.emailIndex[email] = lead.ID
	}
	return nil
}

func (s *Store) GetLead(_ context.Context, id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.leadIndex[id]
	if !ok {
		return nil, apperrors.NewLeadNotFoundError(id)
	}
	return s.leads[i].Clone(), nil
}

func (s *Store) GetLeadByEmail(_ context.Context, email string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[normalizeEmail(email)]
	if !ok {
		return nil, apperrors.NewLeadNotFoundError(email)
	}
	return s.leads[s.leadIndex[id]].Clone(), nil
}

func (s *Store) UpdateLead(_ context.Context, lead *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.leadIndex[lead.ID]
	if !ok {
		return apperrors.NewLeadNotFoundError(lead.ID)
	}
	old := normalizeEmail(s.leads[i].Email)
	email := normalizeEmail(lead.Email)
	if email != old {
		if owner, taken := s.emailIndex[email]; taken && owner != lead.ID {
			return apperrors.NewStoreOperationFailedError("update_lead", fmt.Errorf("email %s already registered", lead.Email))
		}
		delete(s.emailIndex, old)
		if email != "" {
			s.emailIndex[email] = lead.ID
		}
	}
	s.leads[i] = lead.Clone()
	return nil
}

func (s *Store) ListLeads(_ context.Context) ([]*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Lead, len(s.leads))
	for i, l := range s.leads {
		out[i] = l.Clone()
	}
	return out, nil
}

// ==========================
// Workflows
// ==========================

func (s *Store) SaveWorkflow(_ context.Context, wf *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.wfIndex[wf.ID]; ok {
		s.workflows[i] = wf.Clone()
		return nil
	}
	s.workflows = append(s.workflows, wf.Clone())
	s.wfIndex[wf.ID] = len(s.workflows) - 1
	return nil
}

func (s *Store) GetWorkflow(_ context.Context, id string) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.wfIndex[id]
	if !ok {
		return nil, apperrors.NewWorkflowNotFoundError(id)
	}
	return s.workflows[i].Clone(), nil
}

func (s *Store) ListWorkflows(_ context.Context) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Workflow, len(s.workflows))
	for i, wf := range s.workflows {
		out[i] = wf.Clone()
	}
	return out, nil
}

func (s *Store) UpdateAnalytics(_ context.Context, id string, fn func(*models.WorkflowAnalytics)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.wfIndex[id]
	if !ok {
		return apperrors.NewWorkflowNotFoundError(id)
	}
	fn(&s.workflows[i].Analytics)
	return nil
}

func (s *Store) MarkDispatched(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.wfIndex[id]
	if !ok {
		return false, apperrors.NewWorkflowNotFoundError(id)
	}
	if s.workflows[i].LastDispatchedAt != nil {
		return false, nil
	}
	t := at
	s.workflows[i].LastDispatchedAt = &t
	return true, nil
}

// ==========================
// Executions
// ==========================

func (s *Store) CreateExecution(_ context.Context, exec *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execIndex[exec.ID]; ok {
		return apperrors.NewStoreOperationFailedError("create_execution", fmt.Errorf("execution %s already exists", exec.ID))
	}
	s.executions = append(s.executions, exec.Clone())
	s.execIndex[exec.ID] = len(s.executions) - 1
	return nil
}

func (s *Store) GetExecution(_ context.Context, id string) (*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.execIndex[id]
	if !ok {
		return nil, apperrors.NewExecutionNotFoundError(id)
	}
	return s.executions[i].Clone(), nil
}

func (s *Store) UpdateExecution(_ context.Context, exec *models.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.execIndex[exec.ID]
	if !ok {
		return apperrors.NewExecutionNotFoundError(exec.ID)
	}
	s.executions[i] = exec.Clone()
	return nil
}

func (s *Store) ListExecutions(_ context.Context, f store.ExecutionFilter) ([]*models.WorkflowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.WorkflowExecution
	for _, e := range s.executions {
		if f.WorkflowID != "" && e.WorkflowID != f.WorkflowID {
			continue
		}
		if f.LeadID != "" && e.LeadID != f.LeadID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ==========================
// Conversions
// ==========================

func (s *Store) SaveConversion(_ context.Context, conv *models.ConversionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *conv
	c.Attribution = conv.Attribution.Clone()
	s.conversions = append(s.conversions, &c)
	return nil
}

func (s *Store) ListConversions(_ context.Context, leadID string) ([]*models.ConversionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ConversionEvent
	for _, conv := range s.conversions {
		if leadID != "" && conv.LeadID != leadID {
			continue
		}
		c := *conv
		c.Attribution = conv.Attribution.Clone()
		out = append(out, &c)
	}
	return out, nil
}

// ==========================
// A/B Tests
// ==========================

func (s *Store) SaveTest(_ context.Context, test *models.ABTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.testIndex[test.ID]; ok {
		s.tests[i] = test.Clone()
		return nil
	}
	s.tests = append(s.tests, test.Clone())
	s.testIndex[test.ID] = len(s.tests) - 1
	return nil
}

func (s *Store) GetTest(_ context.Context, id string) (*models.ABTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.testIndex[id]
	if !ok {
		return nil, apperrors.NewTestNotFoundError(id)
	}
	return s.tests[i].Clone(), nil
}

func (s *Store) ListTests(_ context.Context) ([]*models.ABTest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ABTest, len(s.tests))
	for i, t := range s.tests {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *Store) UpdateTest(_ context.Context, id string, fn func(*models.ABTest) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.testIndex[id]
	if !ok {
		return apperrors.NewTestNotFoundError(id)
	}
	working := s.tests[i].Clone()
	if err := fn(working); err != nil {
		return err
	}
	s.tests[i] = working
	return nil
}

// ==========================
// Segments
// ==========================

func (s *Store) SaveSegment(_ context.Context, seg *models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *seg
	c.Conditions = append([]models.Condition(nil), seg.Conditions...)
	if i, ok := s.segIndex[seg.ID]; ok {
		s.segments[i] = &c
		return nil
	}
	s.segments = append(s.segments, &c)
	s.segIndex[seg.ID] = len(s.segments) - 1
	return nil
}

func (s *Store) GetSegment(_ context.Context, id string) (*models.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.segIndex[id]
	if !ok {
		return nil, apperrors.NewSegmentNotFoundError(id)
	}
	c := *s.segments[i]
	c.Conditions = append([]models.Condition(nil), c.Conditions...)
	return &c, nil
}

func (s *Store) ListSegments(_ context.Context) ([]*models.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Segment, len(s.segments))
	for i, seg := range s.segments {
		c := *seg
		c.Conditions = append([]models.Condition(nil), seg.Conditions...)
		out[i] = &c
	}
	return out, nil
}
