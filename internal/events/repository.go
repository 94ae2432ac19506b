package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetservice/internal/actor"
)

// Event is one entry in a request's timeline, rendered on the detail view
// across all role dashboards.
type Event struct {
	ID         int64           `json:"id"`
	RequestID  string          `json:"requestId"`
	EventType  string          `json:"eventType"`
	Summary    string          `json:"summary"`
	ActorID    string          `json:"actorId"`
	ActorRole  string          `json:"actorRole"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func Insert(ctx context.Context, tx pgx.Tx, requestID, eventType, summary string, act actor.Actor, occurredAt time.Time, data any) error {
	var s *string
	if data != nil {
		b, _ := json.Marshal(data)
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO request_events (request_id, event_type, summary, actor_id, actor_role, occurred_at, data)
VALUES ($1, $2, $3, $4, $5, $6, CAST($7 AS jsonb))
`
	_, err := tx.Exec(ctx, q, requestID, eventType, summary, act.ID, string(act.Role), occurredAt, s)
	return err
}

func ListByRequest(ctx context.Context, db *pgxpool.Pool, requestID string) ([]Event, error) {
	const q = `
SELECT id, request_id, event_type, summary, actor_id, actor_role, occurred_at, data
FROM request_events
WHERE request_id = $1
ORDER BY occurred_at ASC, id ASC
`
	rows, err := db.Query(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RequestID, &e.EventType, &e.Summary, &e.ActorID, &e.ActorRole, &e.OccurredAt, &e.Data); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
