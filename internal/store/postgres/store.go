// internal/store/postgres/store.go
// Package postgres persists engine state as JSONB documents through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"lead-automation/internal/common/database"
	apperrors "lead-automation/internal/common/errors"
	"lead-automation/internal/models"
	"lead-automation/internal/store"
)

type Store struct {
	db *database.PostgresClient
}

var _ store.Store = (*Store)(nil)

func New(db *database.PostgresClient) *Store {
	return &Store{db: db}
}

func wrap(op string, err error) error {
	return apperrors.NewStoreOperationFailedError(op, err)
}

// encode returns the JSONB text for v. lib/pq sends []byte as bytea, so
// documents are passed as strings.
func encode(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	return string(raw), err
}

// ==========================
// Leads
// ==========================

const (
	insertLeadQuery  = `INSERT INTO leads (id, email, doc, updated_at) VALUES ($1, $2, $3, $4)`
	selectLeadQuery  = `SELECT doc FROM leads WHERE id = $1`
	leadByEmailQuery = `SELECT doc FROM leads WHERE email = $1`
	updateLeadQuery  = `UPDATE leads SET email = $2, doc = $3, updated_at = $4 WHERE id = $1`
	listLeadsQuery   = `SELECT doc FROM leads ORDER BY id`
)

func (s *Store) CreateLead(ctx context.Context, lead *models.Lead) error {
	doc, err := encode(lead)
	if err != nil {
		return wrap("create_lead", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, insertLeadQuery, lead.ID, normalizeEmail(lead.Email), doc, lead.UpdatedAt); err != nil {
		return wrap("create_lead", err)
	}
	return nil
}

func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.getDoc(ctx, selectLeadQuery, id, &lead); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewLeadNotFoundError(id)
		}
		return nil, wrap("get_lead", err)
	}
	return &lead, nil
}

func (s *Store) GetLeadByEmail(ctx context.Context, email string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.getDoc(ctx, leadByEmailQuery, normalizeEmail(email), &lead); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewLeadNotFoundError(email)
		}
		return nil, wrap("get_lead_by_email", err)
	}
	return &lead, nil
}

func (s *Store) UpdateLead(ctx context.Context, lead *models.Lead) error {
	doc, err := encode(lead)
	if err != nil {
		return wrap("update_lead", err)
	}
	res, err := s.db.DB.ExecContext(ctx, updateLeadQuery, lead.ID, normalizeEmail(lead.Email), doc, lead.UpdatedAt)
	if err != nil {
		return wrap("update_lead", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewLeadNotFoundError(lead.ID)
	}
	return nil
}

func (s *Store) ListLeads(ctx context.Context) ([]*models.Lead, error) {
	var out []*models.Lead
	err := s.listDocs(ctx, listLeadsQuery, nil, func(raw []byte) error {
		var l models.Lead
		if err := json.Unmarshal(raw, &l); err != nil {
			return err
		}
		out = append(out, &l)
		return nil
	})
	if err != nil {
		return nil, wrap("list_leads", err)
	}
	return out, nil
}

// ==========================
// Workflows
// ==========================

const (
	upsertWorkflowQuery = `INSERT INTO workflows (id, doc, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`
	selectWorkflowQuery    = `SELECT doc FROM workflows WHERE id = $1`
	lockWorkflowQuery      = `SELECT doc FROM workflows WHERE id = $1 FOR UPDATE`
	listWorkflowsQuery     = `SELECT doc FROM workflows ORDER BY id`
	updateWorkflowDocQuery = `UPDATE workflows SET doc = $2, updated_at = now() WHERE id = $1`
)

func (s *Store) SaveWorkflow(ctx context.Context, wf *models.Workflow) error {
	doc, err := encode(wf)
	if err != nil {
		return wrap("save_workflow", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, upsertWorkflowQuery, wf.ID, doc, wf.UpdatedAt); err != nil {
		return wrap("save_workflow", err)
	}
	return nil
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*models.Workflow, error) {
	var wf models.Workflow
	if err := s.getDoc(ctx, selectWorkflowQuery, id, &wf); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewWorkflowNotFoundError(id)
		}
		return nil, wrap("get_workflow", err)
	}
	return &wf, nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	var out []*models.Workflow
	err := s.listDocs(ctx, listWorkflowsQuery, nil, func(raw []byte) error {
		var wf models.Workflow
		if err := json.Unmarshal(raw, &wf); err != nil {
			return err
		}
		out = append(out, &wf)
		return nil
	})
	if err != nil {
		return nil, wrap("list_workflows", err)
	}
	return out, nil
}

// mutateWorkflow locks the workflow row, applies fn and writes it back when
// fn reports a change.
func (s *Store) mutateWorkflow(ctx context.Context, op, id string, fn func(*models.Workflow) bool) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		if err := tx.QueryRowContext(ctx, lockWorkflowQuery, id).Scan(&raw); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return apperrors.NewWorkflowNotFoundError(id)
			}
			return wrap(op, err)
		}
		var wf models.Workflow
		if err := json.Unmarshal(raw, &wf); err != nil {
			return wrap(op, err)
		}
		if !fn(&wf) {
			return nil
		}
		doc, err := encode(&wf)
		if err != nil {
			return wrap(op, err)
		}
		if _, err := tx.ExecContext(ctx, updateWorkflowDocQuery, id, doc); err != nil {
			return wrap(op, err)
		}
		return nil
	})
}

func (s *Store) UpdateAnalytics(ctx context.Context, id string, fn func(*models.WorkflowAnalytics)) error {
	return s.mutateWorkflow(ctx, "update_analytics", id, func(wf *models.Workflow) bool {
		fn(&wf.Analytics)
		return true
	})
}

func (s *Store) MarkDispatched(ctx context.Context, id string, at time.Time) (bool, error) {
	marked := false
	err := s.mutateWorkflow(ctx, "mark_dispatched", id, func(wf *models.Workflow) bool {
		if wf.LastDispatchedAt != nil {
			return false
		}
		t := at
		wf.LastDispatchedAt = &t
		marked = true
		return true
	})
	if err != nil {
		return false, err
	}
	return marked, nil
}

// ==========================
// Executions
// ==========================

const (
	insertExecutionQuery = `INSERT INTO workflow_executions (id, workflow_id, lead_id, status, started_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)`
	selectExecutionQuery = `SELECT doc FROM workflow_executions WHERE id = $1`
	updateExecutionQuery = `UPDATE workflow_executions SET status = $2, doc = $3 WHERE id = $1`
	listExecutionsQuery  = `SELECT doc FROM workflow_executions`
)

func (s *Store) CreateExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	doc, err := encode(exec)
	if err != nil {
		return wrap("create_execution", err)
	}
	_, err = s.db.DB.ExecContext(ctx, insertExecutionQuery,
		exec.ID, exec.WorkflowID, exec.LeadID, string(exec.Status), exec.StartedAt, doc)
	if err != nil {
		return wrap("create_execution", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	var exec models.WorkflowExecution
	if err := s.getDoc(ctx, selectExecutionQuery, id, &exec); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewExecutionNotFoundError(id)
		}
		return nil, wrap("get_execution", err)
	}
	return &exec, nil
}

func (s *Store) UpdateExecution(ctx context.Context, exec *models.WorkflowExecution) error {
	doc, err := encode(exec)
	if err != nil {
		return wrap("update_execution", err)
	}
	res, err := s.db.DB.ExecContext(ctx, updateExecutionQuery, exec.ID, string(exec.Status), doc)
	if err != nil {
		return wrap("update_execution", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewExecutionNotFoundError(exec.ID)
	}
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, f store.ExecutionFilter) ([]*models.WorkflowExecution, error) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("workflow_id", f.WorkflowID)
	add("lead_id", f.LeadID)
	add("status", string(f.Status))

	query := listExecutionsQuery
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at"

	var out []*models.WorkflowExecution
	err := s.listDocs(ctx, query, args, func(raw []byte) error {
		var e models.WorkflowExecution
		if err := json.Unmarshal(raw, &e); err != nil {
			return err
		}
		out = append(out, &e)
		return nil
	})
	if err != nil {
		return nil, wrap("list_executions", err)
	}
	return out, nil
}

// ==========================
// Conversions
// ==========================

const (
	insertConversionQuery = `INSERT INTO conversions (id, lead_id, occurred_at, doc) VALUES ($1, $2, $3, $4)`
	listConversionsQuery  = `SELECT doc FROM conversions ORDER BY occurred_at`
	leadConversionsQuery  = `SELECT doc FROM conversions WHERE lead_id = $1 ORDER BY occurred_at`
)

func (s *Store) SaveConversion(ctx context.Context, conv *models.ConversionEvent) error {
	doc, err := encode(conv)
	if err != nil {
		return wrap("save_conversion", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, insertConversionQuery, conv.ID, conv.LeadID, conv.OccurredAt, doc); err != nil {
		return wrap("save_conversion", err)
	}
	return nil
}

func (s *Store) ListConversions(ctx context.Context, leadID string) ([]*models.ConversionEvent, error) {
	query, args := listConversionsQuery, []interface{}(nil)
	if leadID != "" {
		query, args = leadConversionsQuery, []interface{}{leadID}
	}
	var out []*models.ConversionEvent
	err := s.listDocs(ctx, query, args, func(raw []byte) error {
		var c models.ConversionEvent
		if err := json.Unmarshal(raw, &c); err != nil {
			return err
		}
		out = append(out, &c)
		return nil
	})
	if err != nil {
		return nil, wrap("list_conversions", err)
	}
	return out, nil
}

// ==========================
// A/B Tests
// ==========================

const (
	upsertTestQuery = `INSERT INTO ab_tests (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`
	selectTestQuery = `SELECT doc FROM ab_tests WHERE id = $1`
	lockTestQuery   = `SELECT doc FROM ab_tests WHERE id = $1 FOR UPDATE`
	updateTestQuery = `UPDATE ab_tests SET doc = $2 WHERE id = $1`
	listTestsQuery  = `SELECT doc FROM ab_tests ORDER BY id`
)

func (s *Store) SaveTest(ctx context.Context, test *models.ABTest) error {
	doc, err := encode(test)
	if err != nil {
		return wrap("save_test", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, upsertTestQuery, test.ID, doc); err != nil {
		return wrap("save_test", err)
	}
	return nil
}

func (s *Store) GetTest(ctx context.Context, id string) (*models.ABTest, error) {
	var test models.ABTest
	if err := s.getDoc(ctx, selectTestQuery, id, &test); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewTestNotFoundError(id)
		}
		return nil, wrap("get_test", err)
	}
	return &test, nil
}

func (s *Store) ListTests(ctx context.Context) ([]*models.ABTest, error) {
	var out []*models.ABTest
	err := s.listDocs(ctx, listTestsQuery, nil, func(raw []byte) error {
		var t models.ABTest
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		out = append(out, &t)
		return nil
	})
	if err != nil {
		return nil, wrap("list_tests", err)
	}
	return out, nil
}

func (s *Store) UpdateTest(ctx context.Context, id string, fn func(*models.ABTest) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		if err := tx.QueryRowContext(ctx, lockTestQuery, id).Scan(&raw); err != nil {
			if stderrors.Is(err, sql.ErrNoRows) {
				return apperrors.NewTestNotFoundError(id)
			}
			return wrap("update_test", err)
		}
		var test models.ABTest
		if err := json.Unmarshal(raw, &test); err != nil {
			return wrap("update_test", err)
		}
		if err := fn(&test); err != nil {
			return err
		}
		doc, err := encode(&test)
		if err != nil {
			return wrap("update_test", err)
		}
		if _, err := tx.ExecContext(ctx, updateTestQuery, id, doc); err != nil {
			return wrap("update_test", err)
		}
		return nil
	})
}

// ==========================
// Segments
// ==========================

const (
	upsertSegmentQuery = `INSERT INTO segments (id, doc) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`
	selectSegmentQuery = `SELECT doc FROM segments WHERE id = $1`
	listSegmentsQuery  = `SELECT doc FROM segments ORDER BY id`
)

func (s *Store) SaveSegment(ctx context.Context, seg *models.Segment) error {
	doc, err := encode(seg)
	if err != nil {
		return wrap("save_segment", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, upsertSegmentQuery, seg.ID, doc); err != nil {
		return wrap("save_segment", err)
	}
	return nil
}

func (s *Store) GetSegment(ctx context.Context, id string) (*models.Segment, error) {
	var seg models.Segment
	if err := s.getDoc(ctx, selectSegmentQuery, id, &seg); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewSegmentNotFoundError(id)
		}
		return nil, wrap("get_segment", err)
	}
	return &seg, nil
}

func (s *Store) ListSegments(ctx context.Context) ([]*models.Segment, error) {
	var out []*models.Segment
	err := s.listDocs(ctx, listSegmentsQuery, nil, func(raw []byte) error {
		var seg models.Segment
		if err := json.Unmarshal(raw, &seg); err != nil {
			return err
		}
		out = append(out, &seg)
		return nil
	})
	if err != nil {
		return nil, wrap("list_segments", err)
	}
	return out, nil
}

// ==========================
// Helpers
// ==========================

func (s *Store) getDoc(ctx context.Context, query, key string, dest interface{}) error {
	var raw []byte
	if err := s.db.DB.QueryRowContext(ctx, query, key).Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (s *Store) listDocs(ctx context.Context, query string, args []interface{}, each func([]byte) error) error {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := each(raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
