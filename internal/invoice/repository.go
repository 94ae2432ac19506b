package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fleetservice/internal/request"
)

// Invoice is immutable once finalizedAt is set. The UNIQUE constraint on
// request_id is the authoritative at-most-one-invoice guard; the engine
// treats the resulting conflict as AlreadyFinalized.
type Invoice struct {
	ID            string          `json:"id"`
	RequestID     string          `json:"requestId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	LaborCost     decimal.Decimal `json:"laborCost"`
	PartsTotal    decimal.Decimal `json:"partsTotal"`
	TaxAmount     decimal.Decimal `json:"taxAmount"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	FinalizedAt   time.Time       `json:"finalizedAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const invoiceColumns = `
id, request_id, invoice_number, labor_cost::text, parts_total::text,
tax_amount::text, grand_total::text, finalized_at
`

// Insert creates the invoice row. A unique violation on request_id means
// another finalize got there first and surfaces as AlreadyFinalized.
func Insert(ctx context.Context, tx pgx.Tx, requestID, prefix string, t Totals, finalizedAt time.Time) (*Invoice, error) {
	const q = `
INSERT INTO invoices (id, request_id, invoice_number, labor_cost, parts_total, tax_amount, grand_total, finalized_at)
VALUES ($1, $2, $3 || '-' || nextval('invoice_number_seq'), $4, $5, $6, $7, $8)
RETURNING ` + invoiceColumns
	row := tx.QueryRow(ctx, q,
		uuid.NewString(), requestID, prefix,
		t.LaborCost, t.PartsTotal, t.TaxAmount, t.GrandTotal, finalizedAt,
	)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, mapDuplicateInvoice(err, requestID)
	}
	return inv, nil
}

// mapDuplicateInvoice turns the unique violation on invoices.request_id into
// AlreadyFinalized. The constraint is the authoritative at-most-one guard;
// losing the race is not a fatal error.
func mapDuplicateInvoice(err error, requestID string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return request.Errf(request.CodeAlreadyFinalized, "request %s already has an invoice", requestID)
	}
	return err
}

func (r *Repository) GetByRequest(ctx context.Context, requestID string) (*Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE request_id = $1`
	return scanInvoice(r.db.QueryRow(ctx, q, requestID))
}

func GetByRequestTx(ctx context.Context, tx pgx.Tx, requestID string) (*Invoice, error) {
	const q = `SELECT ` + invoiceColumns + ` FROM invoices WHERE request_id = $1`
	return scanInvoice(tx.QueryRow(ctx, q, requestID))
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var labor, parts, tax, grand string
	if err := row.Scan(
		&inv.ID, &inv.RequestID, &inv.InvoiceNumber, &labor, &parts, &tax, &grand, &inv.FinalizedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if inv.LaborCost, err = decimal.NewFromString(labor); err != nil {
		return nil, err
	}
	if inv.PartsTotal, err = decimal.NewFromString(parts); err != nil {
		return nil, err
	}
	if inv.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return nil, err
	}
	if inv.GrandTotal, err = decimal.NewFromString(grand); err != nil {
		return nil, err
	}
	return &inv, nil
}
