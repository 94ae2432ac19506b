package invoice

import (
	"github.com/shopspring/decimal"
)

// Line is one billable request part: quantity at a unit price.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

type Totals struct {
	LaborCost  decimal.Decimal
	PartsTotal decimal.Decimal
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

type CurrencyScale int32

const (
	DefaultCurrencyScale CurrencyScale = 2

	// Tax keeps sub-cent precision so totals derive deterministically from
	// the inputs; rounding to payable cents is a presentation concern.
	taxScale int32 = 4
)

type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Compute derives invoice totals from labor, part lines, and the shop tax
// rate. Deterministic, no hidden state:
//
//	partsTotal = Σ(unitPrice × quantity)
//	subtotal   = laborCost + partsTotal
//	taxAmount  = subtotal × taxRate
//	grandTotal = subtotal + taxAmount
func Compute(laborCost decimal.Decimal, lines []Line, taxRate decimal.Decimal, scale CurrencyScale) (Totals, error) {
	if laborCost.IsNegative() {
		return Totals{}, ValidationError{Code: "LABOR_COST_INVALID", Message: "labor cost must be >= 0"}
	}
	if taxRate.IsNegative() {
		return Totals{}, ValidationError{Code: "TAX_RATE_INVALID", Message: "tax rate must be >= 0"}
	}
	if scale <= 0 {
		scale = DefaultCurrencyScale
	}

	partsTotal := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Totals{}, ValidationError{Code: "PART_QUANTITY_INVALID", Message: "part quantity must be > 0"}
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, ValidationError{Code: "PART_PRICE_INVALID", Message: "part price must be >= 0"}
		}
		partsTotal = partsTotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	partsTotal = partsTotal.Round(int32(scale))

	labor := laborCost.Round(int32(scale))
	subtotal := labor.Add(partsTotal)
	tax := subtotal.Mul(taxRate).Round(taxScale)

	return Totals{
		LaborCost:  labor,
		PartsTotal: partsTotal,
		Subtotal:   subtotal,
		TaxAmount:  tax,
		GrandTotal: subtotal.Add(tax),
	}, nil
}
