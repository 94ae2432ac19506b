package invoice

import (
	"github.com/shopspring/decimal"

	"fleetservice/internal/part"
	"fleetservice/internal/request"
)

// Finalizable checks the lifecycle guard for invoice derivation. It returns
// already=true when the request is BILLED, so a re-submission reads the
// stored invoice instead of deriving a second one. Any other non-COMPLETED
// status is a NotCompleted error.
func Finalizable(cur *request.ServiceRequest) (already bool, err error) {
	if cur.Status == request.StatusBilled {
		return true, nil
	}
	if cur.Status != request.StatusCompleted {
		return false, request.Errf(request.CodeNotCompleted, "request %s is %s, not COMPLETED", cur.ID, cur.Status)
	}
	return false, nil
}

// DeriveTotals computes invoice totals from the request's part lines and the
// shop tax rate. Pure; the handler persists the result under the row lock it
// read the request with.
func DeriveTotals(laborCost decimal.Decimal, parts []part.RequestPart, taxRate decimal.Decimal) (Totals, error) {
	lines := make([]Line, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, Line{UnitPrice: p.UnitPrice, Quantity: p.Quantity})
	}
	totals, err := Compute(laborCost, lines, taxRate, DefaultCurrencyScale)
	if err != nil {
		return Totals{}, request.Errf(request.CodeMissingPayload, "%s", err.Error())
	}
	return totals, nil
}
