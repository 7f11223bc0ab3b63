// Package repositories persists fabric activity to PostgreSQL.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skorotkiewicz/gnunet-social/internal/db"
	"github.com/skorotkiewicz/gnunet-social/internal/protocol"
)

// MaxListLimit caps ListRecent.
const MaxListLimit = 500

// ActivityRecord is one archived event.
type ActivityRecord struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	PeerID    string          `json:"peer_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewActivityRecord renders ev as an archive row. The payload is the
// event's JSON wire form.
func NewActivityRecord(ev protocol.Event, now time.Time) (ActivityRecord, error) {
	payload, err := protocol.JSON.EncodeEvent(ev)
	if err != nil {
		return ActivityRecord{}, fmt.Errorf("encode event: %w", err)
	}
	return ActivityRecord{
		ID:        uuid.NewString(),
		Kind:      ev.Kind(),
		PeerID:    protocol.ActorOf(ev),
		Payload:   payload,
		CreatedAt: now.UTC(),
	}, nil
}

// PostgresActivityRepository stores activity records in the activity_log
// table.
type PostgresActivityRepository struct {
	pool db.Pool

	// NowFunc overrides the archive timestamp.
	NowFunc func() time.Time
}

// NewPostgresActivityRepository constructs an activity repository backed by
// PostgreSQL.
func NewPostgresActivityRepository(pool db.Pool) *PostgresActivityRepository {
	return &PostgresActivityRepository{pool: pool, NowFunc: time.Now}
}

// Append archives ev.
func (r *PostgresActivityRepository) Append(ctx context.Context, ev protocol.Event) error {
	record, err := NewActivityRecord(ev, r.NowFunc())
	if err != nil {
		return err
	}
	return r.Insert(ctx, record)
}

// Insert persists a prepared record.
func (r *PostgresActivityRepository) Insert(ctx context.Context, record ActivityRecord) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO activity_log (id, kind, peer_id, payload, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, record.ID, record.Kind, record.PeerID, []byte(record.Payload), record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("insert activity: %w", err)
	}

	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *PostgresActivityRepository) ListRecent(ctx context.Context, limit int) ([]ActivityRecord, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, kind, peer_id, payload, created_at
        FROM activity_log
        ORDER BY created_at DESC, id DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	records := make([]ActivityRecord, 0, limit)
	for rows.Next() {
		var (
			record  ActivityRecord
			payload []byte
		)
		if err := rows.Scan(&record.ID, &record.Kind, &record.PeerID, &payload, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		record.Payload = json.RawMessage(payload)
		record.CreatedAt = record.CreatedAt.UTC()
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}

	return records, nil
}
