package part

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CatalogPart is a priced part the office maintains; request parts default
// their cost/price from it when a part number matches.
type CatalogPart struct {
	ID         string          `json:"id"`
	PartNumber string          `json:"partNumber"`
	Name       string          `json:"name"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// RequestPart is a part consumed by one service request. Read-only to the
// invoice deriver; its price can be overridden up until finalize.
type RequestPart struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"requestId"`
	PartNumber string          `json:"partNumber,omitempty"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	UnitCost   decimal.Decimal `json:"unitCost"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) UpsertCatalog(ctx context.Context, partNumber, name string, unitCost, unitPrice decimal.Decimal) (*CatalogPart, error) {
	const q = `
INSERT INTO catalog_parts (id, part_number, name, unit_cost, unit_price, active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (part_number) DO UPDATE SET
  name = EXCLUDED.name,
  unit_cost = EXCLUDED.unit_cost,
  unit_price = EXCLUDED.unit_price,
  active = TRUE,
  updated_at = NOW()
RETURNING id, part_number, name, unit_cost::text, unit_price::text, active, created_at, updated_at
`
	return scanCatalog(r.db.QueryRow(ctx, q, uuid.NewString(), partNumber, name, unitCost, unitPrice))
}

func (r *Repository) ListCatalog(ctx context.Context) ([]CatalogPart, error) {
	const q = `
SELECT id, part_number, name, unit_cost::text, unit_price::text, active, created_at, updated_at
FROM catalog_parts
WHERE active
ORDER BY part_number ASC
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CatalogPart
	for rows.Next() {
		p, err := scanCatalog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repository) FindCatalogByNumber(ctx context.Context, partNumber string) (*CatalogPart, error) {
	const q = `
SELECT id, part_number, name, unit_cost::text, unit_price::text, active, created_at, updated_at
FROM catalog_parts
WHERE part_number = $1
`
	return scanCatalog(r.db.QueryRow(ctx, q, partNumber))
}

func scanCatalog(row pgx.Row) (*CatalogPart, error) {
	var p CatalogPart
	var cost, price string
	if err := row.Scan(&p.ID, &p.PartNumber, &p.Name, &cost, &price, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.UnitCost, err = decimal.NewFromString(cost); err != nil {
		return nil, err
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &p, nil
}

type AddInput struct {
	PartNumber string
	Name       string
	Quantity   int64
	UnitCost   decimal.Decimal
	UnitPrice  decimal.Decimal
}

// Add attaches a part to a request inside the caller's transaction, which
// holds the request row lock so parts cannot land on a billed record.
func Add(ctx context.Context, tx pgx.Tx, requestID string, in AddInput) (*RequestPart, error) {
	const q = `
INSERT INTO request_parts (id, request_id, part_number, name, quantity, unit_cost, unit_price)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
RETURNING id, request_id, COALESCE(part_number,''), name, quantity, unit_cost::text, unit_price::text, created_at
`
	return scanRequestPart(tx.QueryRow(ctx, q,
		uuid.NewString(), requestID, in.PartNumber, in.Name, in.Quantity, in.UnitCost, in.UnitPrice,
	))
}

func (r *Repository) ListByRequest(ctx context.Context, requestID string) ([]RequestPart, error) {
	rows, err := r.db.Query(ctx, listByRequestQuery, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequestParts(rows)
}

// ListByRequestTx reads a request's parts under the finalize transaction.
func ListByRequestTx(ctx context.Context, tx pgx.Tx, requestID string) ([]RequestPart, error) {
	rows, err := tx.Query(ctx, listByRequestQuery, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequestParts(rows)
}

const listByRequestQuery = `
SELECT id, request_id, COALESCE(part_number,''), name, quantity, unit_cost::text, unit_price::text, created_at
FROM request_parts
WHERE request_id = $1
ORDER BY created_at ASC
`

// UpdatePrice overrides a line's unit price during finalize.
func UpdatePrice(ctx context.Context, tx pgx.Tx, requestID, partID string, unitPrice decimal.Decimal) error {
	const q = `
UPDATE request_parts SET unit_price = $3 WHERE request_id = $1 AND id = $2
`
	tag, err := tx.Exec(ctx, q, requestID, partID, unitPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func collectRequestParts(rows pgx.Rows) ([]RequestPart, error) {
	var out []RequestPart
	for rows.Next() {
		p, err := scanRequestPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanRequestPart(row pgx.Row) (*RequestPart, error) {
	var p RequestPart
	var cost, price string
	if err := row.Scan(&p.ID, &p.RequestID, &p.PartNumber, &p.Name, &p.Quantity, &cost, &price, &p.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if p.UnitCost, err = decimal.NewFromString(cost); err != nil {
		return nil, err
	}
	if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &p, nil
}
