// pkg/registry/registry.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"lead-automation/internal/common/errors"
	"lead-automation/internal/common/validation"
	"lead-automation/internal/models"
)

// LoadDefinitions reads, schema-validates and decodes a definitions file.
func LoadDefinitions(path string) (*Definitions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDefinitions(data)
}

func ParseDefinitions(data []byte) (*Definitions, error) {
	result := validation.Validate(
		gojsonschema.NewStringLoader(DefinitionsSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if !result.Valid {
		return nil, errors.NewInvalidDefinitionError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var defs Definitions
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, errors.NewInvalidDefinitionError(err.Error())
	}
	if problems, _ := defs.Check(); len(problems) > 0 {
		return nil, errors.NewInvalidDefinitionError(strings.Join(problems, "; "))
	}
	return &defs, nil
}

// Check reports what a schema cannot express. Problems (duplicate ids,
// dangling test or segment references) reject the file. Warnings cover
// actions of an unrecognised type, which load and fail when an execution
// reaches them.
func (d *Definitions) Check() (problems, warnings []string) {
	dup := func(kind string) func(id string) {
		seen := map[string]bool{}
		return func(id string) {
			if seen[id] {
				problems = append(problems, fmt.Sprintf("duplicate %s id %q", kind, id))
			}
			seen[id] = true
		}
	}

	ruleID := dup("scoring rule")
	for _, r := range d.ScoringRules {
		ruleID(r.ID)
	}

	tests := map[string]bool{}
	testID := dup("A/B test")
	for _, t := range d.ABTests {
		testID(t.ID)
		tests[t.ID] = true
	}

	segments := map[string]bool{}
	segmentID := dup("segment")
	for _, s := range d.Segments {
		segmentID(s.ID)
		segments[s.ID] = true
	}

	workflowID := dup("workflow")
	for _, wf := range d.Workflows {
		workflowID(wf.ID)
		actionID := dup("action in workflow " + wf.ID)
		for _, a := range wf.Actions {
			actionID(a.ID)
			switch c := a.Config.(type) {
			case models.UnknownActionConfig:
				warnings = append(warnings, fmt.Sprintf("workflow %s: action %s has unknown type %q", wf.ID, a.ID, c.Type))
			case models.SplitTestConfig:
				if !tests[c.TestID] {
					problems = append(problems, fmt.Sprintf("workflow %s: action %s references unknown test %q", wf.ID, a.ID, c.TestID))
				}
			case models.WaitConfig:
				if c.Minutes <= 0 {
					problems = append(problems, fmt.Sprintf("workflow %s: action %s waits %d minutes", wf.ID, a.ID, c.Minutes))
				}
			}
		}
		if wf.Trigger.Type == models.TriggerScheduled && wf.Trigger.ScheduledAt == nil {
			problems = append(problems, fmt.Sprintf("workflow %s: scheduled trigger without scheduledAt", wf.ID))
		}
		if seg := wf.Trigger.SegmentID; seg != "" && !segments[seg] {
			problems = append(problems, fmt.Sprintf("workflow %s: trigger references unknown segment %q", wf.ID, seg))
		}
	}
	return problems, warnings
}

// SaveDefinitions writes d as indented JSON, creating the directory.
func SaveDefinitions(d *Definitions, path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal definitions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write definitions file: %w", err)
	}
	return nil
}

// Seeder is the subset of the store the definitions are written to.
type Seeder interface {
	SaveWorkflow(ctx context.Context, wf *models.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	SaveTest(ctx context.Context, test *models.ABTest) error
	GetTest(ctx context.Context, id string) (*models.ABTest, error)
	SaveSegment(ctx context.Context, seg *models.Segment) error
	GetSegment(ctx context.Context, id string) (*models.Segment, error)
}

// Seed writes workflows, tests and segments to the store. Existing
// workflows keep their analytics and dispatch marker, existing tests keep
// their counters and assignments, and segments keep their last computed size.
func (d *Definitions) Seed(ctx context.Context, s Seeder) error {
	for _, wf := range d.Workflows {
		c := wf.Clone()
		existing, err := s.GetWorkflow(ctx, wf.ID)
		switch {
		case err == nil:
			c.Analytics = existing.Analytics
			c.LastDispatchedAt = existing.LastDispatchedAt
			c.CreatedAt = existing.CreatedAt
		case !errors.IsCode(err, errors.ErrCodeWorkflowNotFound):
			return err
		}
		if err := s.SaveWorkflow(ctx, c); err != nil {
			return err
		}
	}
	for _, t := range d.ABTests {
		if _, err := s.GetTest(ctx, t.ID); err == nil {
			continue
		} else if !errors.IsCode(err, errors.ErrCodeTestNotFound) {
			return err
		}
		if err := s.SaveTest(ctx, t.Clone()); err != nil {
			return err
		}
	}
	for _, seg := range d.Segments {
		c := *seg
		existing, err := s.GetSegment(ctx, seg.ID)
		switch {
		case err == nil:
			c.Size = existing.Size
			c.UpdatedAt = existing.UpdatedAt
		case !errors.IsCode(err, errors.ErrCodeSegmentNotFound):
			return err
		}
		if err := s.SaveSegment(ctx, &c); err != nil {
			return err
		}
	}
	return nil
}
