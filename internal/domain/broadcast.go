package domain

import "time"

// Delivery status values.
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// BroadcastRun summarizes one broadcaster execution.
// Corresponds to broadcast_runs table in ClickHouse.
type BroadcastRun struct {
	RunID       string
	StartedAt   time.Time
	FinishedAt  time.Time
	SignalCount int
	Eligible    int // opted in with wallet
	Premium     int
	Sent        int
	Failed      int
	Deliveries  []Delivery
}

// Delivery is one attempted push within a run.
type Delivery struct {
	RunID     string
	UserID    int64
	ChatID    int64
	Status    string
	Error     string
	Signals   int
	AttemptAt time.Time
}
