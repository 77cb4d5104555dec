// internal/tracking/segments.go
package tracking

import (
	"context"

	"lead-automation/internal/condition"
)

// RecomputeSegments refreshes every segment's size from the current leads
// and returns the sizes by segment id.
func (s *Service) RecomputeSegments(ctx context.Context) (map[string]int, error) {
	segments, err := s.repo.ListSegments(ctx)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return map[string]int{}, nil
	}

	leads, err := s.repo.ListLeads(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]map[string]interface{}, len(leads))
	for i, lead := range leads {
		records[i] = lead.Record()
	}

	now := s.now()
	sizes := make(map[string]int, len(segments))
	for _, seg := range segments {
		size := 0
		for _, r := range records {
			if condition.All(r, seg.Conditions) {
				size++
			}
		}
		sizes[seg.ID] = size
		if size == seg.Size && !seg.UpdatedAt.IsZero() {
			continue
		}
		seg.Size = size
		seg.UpdatedAt = now
		if err := s.repo.SaveSegment(ctx, seg); err != nil {
			return sizes, err
		}
	}

	s.logger.Debug("Segments recomputed", map[string]interface{}{"segments": len(segments)})
	return sizes, nil
}
