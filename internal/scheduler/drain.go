// internal/scheduler/drain.go
package scheduler

import (
	"context"
	"time"

	"lead-automation/internal/common/logger"
)

// Continuer resumes a suspended execution.
type Continuer interface {
	Continue(ctx context.Context, executionID string) error
}

// retryDelay is how long a continuation that failed to resume waits before
// it is claimed again.
const retryDelay = time.Minute

// Drainer claims due continuations and resumes them.
type Drainer struct {
	queue     Queue
	continuer Continuer
	batch     int
	logger    logger.Logger
	now       func() time.Time
}

func NewDrainer(queue Queue, continuer Continuer, batch int, log logger.Logger) *Drainer {
	if batch <= 0 {
		batch = 100
	}
	return &Drainer{
		queue:     queue,
		continuer: continuer,
		batch:     batch,
		logger:    log.WithFields(map[string]interface{}{"component": "continuation-drain"}),
		now:       time.Now,
	}
}

// Drain resumes due continuations until none are left. An entry is acked
// only after its execution resumed; one whose resume fails is put back with
// a delay, and one this process never gets to ack is handed out again when
// its claim lease runs out.
func (d *Drainer) Drain(ctx context.Context) error {
	for {
		now := d.now()
		ids, err := d.queue.Claim(ctx, now, d.batch)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := d.continuer.Continue(ctx, id); err != nil {
				d.logger.Error("Continuation failed, requeued", map[string]interface{}{
					"executionId": id,
					"error":       err.Error(),
				})
				if err := d.queue.Schedule(ctx, id, now.Add(retryDelay)); err != nil {
					return err
				}
				continue
			}
			if err := d.queue.Ack(ctx, id, now); err != nil {
				return err
			}
		}
		if len(ids) < d.batch {
			return nil
		}
	}
}
