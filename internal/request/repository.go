package request

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetservice/internal/actor"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const requestColumns = `
id, customer_id, vehicle_id, service_title, COALESCE(description,''), mileage,
COALESCE(po,''), COALESCE(fmc,''), status, COALESCE(prior_status,''),
scheduled_at, technician_id, second_technician_id, started_at, completed_at,
COALESCE(notes,''), COALESCE(dispatch_notes,''), created_by_role, invoice_id,
created_at, updated_at
`

func scanRequest(row pgx.Row) (*ServiceRequest, error) {
	var r ServiceRequest
	var status, priorStatus, createdByRole string
	if err := row.Scan(
		&r.ID, &r.CustomerID, &r.VehicleID, &r.ServiceTitle, &r.Description, &r.Mileage,
		&r.PO, &r.FMC, &status, &priorStatus,
		&r.ScheduledAt, &r.TechnicianID, &r.SecondTechnicianID, &r.StartedAt, &r.CompletedAt,
		&r.Notes, &r.DispatchNotes, &createdByRole, &r.InvoiceID,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.PriorStatus = Status(priorStatus)
	r.CreatedByRole = actor.Role(createdByRole)
	return &r, nil
}

type CreateInput struct {
	CustomerID   string
	VehicleID    string
	ServiceTitle string
	Description  string
	Mileage      *int64
	PO           string
	FMC          string
}

func (r *Repository) Create(ctx context.Context, in CreateInput, createdBy actor.Role) (*ServiceRequest, error) {
	const q = `
INSERT INTO service_requests
  (id, customer_id, vehicle_id, service_title, description, mileage, po, fmc, status, created_by_role)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + requestColumns
	row := r.db.QueryRow(ctx, q,
		uuid.NewString(), in.CustomerID, in.VehicleID, in.ServiceTitle, in.Description,
		in.Mileage, in.PO, in.FMC, string(StatusNew), string(createdBy),
	)
	return scanRequest(row)
}

func (r *Repository) GetByID(ctx context.Context, id string) (*ServiceRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`
	return scanRequest(r.db.QueryRow(ctx, q, id))
}

func GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (*ServiceRequest, error) {
	const q = `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1 FOR UPDATE`
	return scanRequest(tx.QueryRow(ctx, q, id))
}

// Filter selects a role-specific queue. Zero values mean "no constraint".
type Filter struct {
	Statuses     []Status
	CustomerID   string
	TechnicianID string

	// ScheduledOn matches the calendar day of scheduled_at in ScheduledOn's
	// own time zone: the window is [00:00, +24h) at that zone's offset. The
	// tech-today queue passes server-local now, so the server runs in the
	// shop's timezone (TZ env) or the day boundary is UTC's.
	ScheduledOn *time.Time
}

// DispatchQueue is the statuses the dispatch board pulls from.
var DispatchQueue = []Status{StatusReadyToSchedule, StatusWaitingApproval}

func (r *Repository) List(ctx context.Context, f Filter) ([]ServiceRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM service_requests WHERE 1=1`
	args := []any{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		q += ` AND status = ANY($` + strconv.Itoa(len(args)) + `)`
	}
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		q += ` AND customer_id = $` + strconv.Itoa(len(args))
	}
	if f.TechnicianID != "" {
		args = append(args, f.TechnicianID)
		n := strconv.Itoa(len(args))
		q += ` AND (technician_id = $` + n + ` OR second_technician_id = $` + n + `)`
	}
	if f.ScheduledOn != nil {
		y, m, d := f.ScheduledOn.Date()
		dayStart := time.Date(y, m, d, 0, 0, 0, 0, f.ScheduledOn.Location())
		args = append(args, dayStart)
		n := strconv.Itoa(len(args))
		q += ` AND scheduled_at >= $` + n + ` AND scheduled_at < $` + n + ` + INTERVAL '1 day'`
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ServiceRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// SaveTransition persists the fields Apply may have changed, conditionally
// on the status the transaction read. Zero rows means another writer got
// there first; callers surface that as a store conflict and retry.
func SaveTransition(ctx context.Context, tx pgx.Tx, up *ServiceRequest, expected Status) error {
	const q = `
UPDATE service_requests
SET status = $2, prior_status = NULLIF($3, ''),
    scheduled_at = $4, technician_id = $5, second_technician_id = $6,
    started_at = $7, completed_at = $8, invoice_id = $9, updated_at = NOW()
WHERE id = $1 AND status = $10
`
	tag, err := tx.Exec(ctx, q,
		up.ID, string(up.Status), string(up.PriorStatus),
		up.ScheduledAt, up.TechnicianID, up.SecondTechnicianID,
		up.StartedAt, up.CompletedAt, up.InvoiceID, string(expected),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return Errf(CodeStoreConflict, "request %s changed concurrently", up.ID)
	}
	return nil
}

// SaveAssignment persists a dispatch assignment (schedule window, technicians,
// dispatch notes, and the resulting status) as one conditional write.
func SaveAssignment(ctx context.Context, tx pgx.Tx, up *ServiceRequest, expected Status) error {
	const q = `
UPDATE service_requests
SET status = $2, scheduled_at = $3, technician_id = $4, second_technician_id = $5,
    dispatch_notes = $6, updated_at = NOW()
WHERE id = $1 AND status = $7
`
	tag, err := tx.Exec(ctx, q,
		up.ID, string(up.Status), up.ScheduledAt, up.TechnicianID,
		up.SecondTechnicianID, up.DispatchNotes, string(expected),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return Errf(CodeStoreConflict, "request %s changed concurrently", up.ID)
	}
	return nil
}

type MetadataInput struct {
	ServiceTitle *string
	Description  *string
	Mileage      *int64
	PO           *string
	FMC          *string
}

// UpdateMetadata patches the descriptive fields OFFICE/ADMIN own. Nil
// fields are left untouched.
func (r *Repository) UpdateMetadata(ctx context.Context, id string, in MetadataInput) (*ServiceRequest, error) {
	const q = `
UPDATE service_requests
SET service_title = COALESCE($2, service_title),
    description   = COALESCE($3, description),
    mileage       = COALESCE($4, mileage),
    po            = COALESCE($5, po),
    fmc           = COALESCE($6, fmc),
    updated_at    = NOW()
WHERE id = $1
RETURNING ` + requestColumns
	row := r.db.QueryRow(ctx, q, id, in.ServiceTitle, in.Description, in.Mileage, in.PO, in.FMC)
	return scanRequest(row)
}

// UpdateNotes writes the office-owned notes field.
func (r *Repository) UpdateNotes(ctx context.Context, id, notes string) (*ServiceRequest, error) {
	const q = `
UPDATE service_requests SET notes = $2, updated_at = NOW() WHERE id = $1
RETURNING ` + requestColumns
	return scanRequest(r.db.QueryRow(ctx, q, id, notes))
}

// UpdateDispatchNotes writes the dispatcher-owned notes field.
func (r *Repository) UpdateDispatchNotes(ctx context.Context, id, notes string) (*ServiceRequest, error) {
	const q = `
UPDATE service_requests SET dispatch_notes = $2, updated_at = NOW() WHERE id = $1
RETURNING ` + requestColumns
	return scanRequest(r.db.QueryRow(ctx, q, id, notes))
}

