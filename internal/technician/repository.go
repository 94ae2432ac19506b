package technician

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Technician struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, name string) (*Technician, error) {
	const q = `
INSERT INTO technicians (id, name, active)
VALUES ($1, $2, TRUE)
RETURNING id, name, active, created_at
`
	var t Technician
	if err := r.db.QueryRow(ctx, q, uuid.NewString(), name).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Technician, error) {
	const q = `SELECT id, name, active, created_at FROM technicians WHERE id = $1`
	var t Technician
	if err := r.db.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) List(ctx context.Context, includeInactive bool) ([]Technician, error) {
	q := `SELECT id, name, active, created_at FROM technicians`
	if !includeInactive {
		q += ` WHERE active`
	}
	q += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Technician
	for rows.Next() {
		var t Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Deactivate retires a technician from new assignments. Past assignments
// stay on their requests untouched.
func (r *Repository) Deactivate(ctx context.Context, id string) (*Technician, error) {
	const q = `
UPDATE technicians SET active = FALSE WHERE id = $1
RETURNING id, name, active, created_at
`
	var t Technician
	if err := r.db.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTx reads a technician inside the caller's transaction. Dispatch uses
// it to check the active flag under the same snapshot as the assignment.
func GetTx(ctx context.Context, tx pgx.Tx, id string) (*Technician, error) {
	const q = `SELECT id, name, active, created_at FROM technicians WHERE id = $1`
	var t Technician
	if err := tx.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name, &t.Active, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
