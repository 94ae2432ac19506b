package invoice

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetservice/internal/part"
	"fleetservice/internal/request"
)

func TestFinalizable(t *testing.T) {
	already, err := Finalizable(&request.ServiceRequest{ID: "req-1", Status: request.StatusCompleted})
	require.NoError(t, err)
	assert.False(t, already)

	// Re-submission against a billed request reads the stored invoice.
	already, err = Finalizable(&request.ServiceRequest{ID: "req-1", Status: request.StatusBilled})
	require.NoError(t, err)
	assert.True(t, already)

	for _, status := range []request.Status{
		request.StatusNew, request.StatusWaitingApproval, request.StatusWaitingParts,
		request.StatusReadyToSchedule, request.StatusScheduled, request.StatusInProgress,
		request.StatusDeclined, request.StatusCancelled, request.StatusAttentionRequired,
	} {
		_, err := Finalizable(&request.ServiceRequest{ID: "req-1", Status: status})
		require.Error(t, err, "status %s", status)
		assert.True(t, request.IsCode(err, request.CodeNotCompleted), "status %s: got %v", status, err)
	}
}

func TestDeriveTotals(t *testing.T) {
	parts := []part.RequestPart{
		{UnitPrice: dec("20.00"), Quantity: 2},
	}
	totals, err := DeriveTotals(dec("150.00"), parts, dec("0.0825"))
	require.NoError(t, err)
	assert.True(t, totals.PartsTotal.Equal(dec("40.00")))
	assert.True(t, totals.Subtotal.Equal(dec("190.00")))
	assert.True(t, totals.GrandTotal.Equal(dec("205.675")))

	// Calculator rejections surface as MISSING_PAYLOAD so handlers answer 400.
	_, err = DeriveTotals(dec("-1"), nil, dec("0.0825"))
	require.Error(t, err)
	assert.True(t, request.IsCode(err, request.CodeMissingPayload))
}

func TestMapDuplicateInvoice(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "invoices_request_id_key"}
	err := mapDuplicateInvoice(dup, "req-1")
	assert.True(t, request.IsCode(err, request.CodeAlreadyFinalized))

	wrapped := fmt.Errorf("insert: %w", dup)
	assert.True(t, request.IsCode(mapDuplicateInvoice(wrapped, "req-1"), request.CodeAlreadyFinalized))

	// Anything else passes through untouched.
	other := fmt.Errorf("connection reset")
	assert.Equal(t, other, mapDuplicateInvoice(other, "req-1"))
}
