package clickhouse

import (
	"context"
	"fmt"
	"time"

	"edgeai-booster/internal/domain"
	"edgeai-booster/internal/observability"
	"edgeai-booster/internal/storage"
)

// DeliveryLog implements storage.DeliveryLog using ClickHouse.
// Runs and deliveries are append-only MergeTree rows.
type DeliveryLog struct {
	conn *Conn
}

// NewDeliveryLog creates a new DeliveryLog.
func NewDeliveryLog(conn *Conn) *DeliveryLog {
	return &DeliveryLog{conn: conn}
}

// Compile-time interface check.
var _ storage.DeliveryLog = (*DeliveryLog)(nil)

// RecordRun writes the run summary, then its deliveries in one batch.
func (l *DeliveryLog) RecordRun(ctx context.Context, run *domain.BroadcastRun) (err error) {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "record_run", time.Since(start).Seconds(), err) }()

	err = l.conn.Exec(ctx, `
		INSERT INTO broadcast_runs (
			run_id, started_at, finished_at, signal_count, eligible, premium, sent, failed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		uint32(run.SignalCount),
		uint32(run.Eligible),
		uint32(run.Premium),
		uint32(run.Sent),
		uint32(run.Failed),
	)
	if err != nil {
		return fmt.Errorf("insert broadcast run: %w", err)
	}

	if len(run.Deliveries) == 0 {
		return nil
	}

	batch, err := l.conn.PrepareBatch(ctx, `
		INSERT INTO broadcast_deliveries (
			run_id, user_id, chat_id, status, error, signals, attempt_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, d := range run.Deliveries {
		err = batch.Append(
			run.RunID, d.UserID, d.ChatID,
			d.Status, d.Error, uint32(d.Signals), d.AttemptAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// RecentRuns returns up to limit run summaries ordered by started_at DESC.
func (l *DeliveryLog) RecentRuns(ctx context.Context, limit int) (_ []*domain.BroadcastRun, err error) {
	if limit <= 0 {
		limit = 20
	}

	start := time.Now()
	defer func() { observability.RecordDBQuery("clickhouse", "recent_runs", time.Since(start).Seconds(), err) }()

	rows, err := l.conn.Query(ctx, `
		SELECT run_id, started_at, finished_at, signal_count, eligible, premium, sent, failed
		FROM broadcast_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ?
	`, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var result []*domain.BroadcastRun
	for rows.Next() {
		var (
			run                                      domain.BroadcastRun
			signals, eligible, premium, sent, failed uint32
		)
		if err := rows.Scan(
			&run.RunID, &run.StartedAt, &run.FinishedAt,
			&signals, &eligible, &premium, &sent, &failed,
		); err != nil {
			return nil, fmt.Errorf("scan broadcast run: %w", err)
		}
		run.StartedAt = run.StartedAt.UTC()
		run.FinishedAt = run.FinishedAt.UTC()
		run.SignalCount = int(signals)
		run.Eligible = int(eligible)
		run.Premium = int(premium)
		run.Sent = int(sent)
		run.Failed = int(failed)
		result = append(result, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broadcast runs: %w", err)
	}
	return result, nil
}

// DeliveryCount returns the number of delivery rows stored for runID.
func (l *DeliveryLog) DeliveryCount(ctx context.Context, runID string) (int, error) {
	var n uint64
	if err := l.conn.QueryRow(ctx, `SELECT count() FROM broadcast_deliveries WHERE run_id = ?`, runID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return int(n), nil
}
