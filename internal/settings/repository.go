package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Settings is the shop-wide configuration row. A single row keyed id=1;
// taxRate feeds the invoice deriver.
type Settings struct {
	ShopName      string          `json:"shopName"`
	InvoicePrefix string          `json:"invoicePrefix"`
	TaxRate       decimal.Decimal `json:"taxRate"`
}

type Repository struct {
	db             *pgxpool.Pool
	defaultTaxRate decimal.Decimal
}

func NewRepository(db *pgxpool.Pool, defaultTaxRate decimal.Decimal) *Repository {
	return &Repository{db: db, defaultTaxRate: defaultTaxRate}
}

func (r *Repository) defaults() *Settings {
	return &Settings{
		ShopName:      "Fleet Service",
		InvoicePrefix: "INV",
		TaxRate:       r.defaultTaxRate,
	}
}

func (r *Repository) Get(ctx context.Context) (*Settings, error) {
	const q = `
SELECT shop_name, invoice_prefix, tax_rate::text
FROM shop_settings
WHERE id = 1
`
	var s Settings
	var rate string
	err := r.db.QueryRow(ctx, q).Scan(&s.ShopName, &s.InvoicePrefix, &rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.defaults(), nil
	}
	if err != nil {
		return nil, err
	}
	s.TaxRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetTx reads settings under the caller's transaction so finalize computes
// tax from the same snapshot it writes the invoice in.
func (r *Repository) GetTx(ctx context.Context, tx pgx.Tx) (*Settings, error) {
	const q = `
SELECT shop_name, invoice_prefix, tax_rate::text
FROM shop_settings
WHERE id = 1
`
	var s Settings
	var rate string
	err := tx.QueryRow(ctx, q).Scan(&s.ShopName, &s.InvoicePrefix, &rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.defaults(), nil
	}
	if err != nil {
		return nil, err
	}
	s.TaxRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) Upsert(ctx context.Context, s Settings) (*Settings, error) {
	const q = `
INSERT INTO shop_settings (id, shop_name, invoice_prefix, tax_rate)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
  shop_name = EXCLUDED.shop_name,
  invoice_prefix = EXCLUDED.invoice_prefix,
  tax_rate = EXCLUDED.tax_rate,
  updated_at = NOW()
RETURNING shop_name, invoice_prefix, tax_rate::text
`
	var out Settings
	var rate string
	if err := r.db.QueryRow(ctx, q, s.ShopName, s.InvoicePrefix, s.TaxRate).Scan(&out.ShopName, &out.InvoicePrefix, &rate); err != nil {
		return nil, err
	}
	var err error
	out.TaxRate, err = decimal.NewFromString(rate)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
