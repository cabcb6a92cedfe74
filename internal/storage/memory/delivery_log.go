package memory

import (
	"context"
	"sync"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/storage"
)

// maxRuns bounds the in-memory history.
const maxRuns = 500

// DeliveryLog is an in-memory implementation of storage.DeliveryLog.
type DeliveryLog struct {
	mu   sync.RWMutex
	runs []*domain.BroadcastRun
}

// NewDeliveryLog creates a new in-memory delivery log.
func NewDeliveryLog() *DeliveryLog {
	return &DeliveryLog{}
}

var _ storage.DeliveryLog = (*DeliveryLog)(nil)

// RecordRun appends a run, dropping the oldest beyond maxRuns.
func (l *DeliveryLog) RecordRun(_ context.Context, run *domain.BroadcastRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	c := *run
	c.Deliveries = append([]domain.Delivery(nil), run.Deliveries...)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.runs = append(l.runs, &c)
	if len(l.runs) > maxRuns {
		l.runs = l.runs[len(l.runs)-maxRuns:]
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (l *DeliveryLog) RecentRuns(_ context.Context, limit int) ([]*domain.BroadcastRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.BroadcastRun
	for i := len(l.runs) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		c := *l.runs[i]
		c.Deliveries = nil
		out = append(out, &c)
	}
	return out, nil
}

// Deliveries returns every recorded delivery for runID.
func (l *DeliveryLog) Deliveries(runID string) []domain.Delivery {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, r := range l.runs {
		if r.RunID == runID {
			return append([]domain.Delivery(nil), r.Deliveries...)
		}
	}
	return nil
}
