package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetservice/internal/actor"
)

type Entry struct {
	ID        int64           `json:"id"`
	RequestID *string         `json:"requestId,omitempty"`
	Action    string          `json:"action"`
	ActorID   string          `json:"actorId"`
	ActorRole string          `json:"actorRole"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Insert writes an audit row inside the caller's transaction so the trail
// commits or rolls back with the mutation it describes.
func Insert(ctx context.Context, tx pgx.Tx, requestID *string, action string, act actor.Actor, metadata any) error {
	var s *string
	if metadata != nil {
		b, _ := json.Marshal(metadata)
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (request_id, action, actor_id, actor_role, metadata)
VALUES ($1, $2, $3, $4, CAST($5 AS jsonb))
`
	_, err := tx.Exec(ctx, q, requestID, action, act.ID, string(act.Role), s)
	return err
}

func (r *Repository) ListByRequest(ctx context.Context, requestID string) ([]Entry, error) {
	const q = `
SELECT id, request_id, action, actor_id, actor_role, metadata, created_at
FROM audit_logs
WHERE request_id = $1
ORDER BY created_at ASC
`
	rows, err := r.db.Query(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Action, &e.ActorID, &e.ActorRole, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
