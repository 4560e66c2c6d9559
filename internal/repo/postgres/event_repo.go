package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

type EventWriteRecord struct {
	Name       string
	OccurredAt time.Time
	Props      map[string]any
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

func (r *EventRepo) InsertBatch(ctx context.Context, userID *uuid.UUID, events []EventWriteRecord) error {
	if len(events) == 0 {
		return nil
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	const query = `
INSERT INTO events (
	user_id,
	name,
	payload,
	occurred_at,
	created_at
) VALUES (
	$1,
	$2,
	$3::jsonb,
	$4,
	NOW()
)
`

	var uid any
	if userID != nil && *userID != uuid.Nil {
		uid = *userID
	}

	batch := &pgx.Batch{}
	for _, event := range events {
		props := event.Props
		if props == nil {
			props = map[string]any{}
		}
		payload, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("marshal event props: %w", err)
		}

		occurredAt := event.OccurredAt.UTC()
		if event.OccurredAt.IsZero() {
			occurredAt = time.Now().UTC()
		}
		batch.Queue(query, uid, event.Name, string(payload), occurredAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert event batch item #%d: %w", i, err)
		}
	}

	return nil
}
