package transfer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/events"
	"stockforecast/internal/domain/registers/stock"
)

func TestTransfer_Validate(t *testing.T) {
	day := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		build func() *Transfer
		field string
	}{
		{
			name:  "no moves",
			build: func() *Transfer { return NewTransfer(KindOutgoing, &day) },
			field: "moves",
		},
		{
			name: "zero quantity",
			build: func() *Transfer {
				doc := NewTransfer(KindOutgoing, &day)
				doc.AddMove(id.New(), 0)
				return doc
			},
			field: "moves[0].quantity",
		},
		{
			name: "sale line on receipt",
			build: func() *Transfer {
				doc := NewTransfer(KindIncoming, &day)
				m := doc.AddMove(id.New(), types.NewQuantity(1))
				m.SaleLine = &OrderLink{OrderID: id.New()}
				return doc
			},
			field: "moves[0].saleLine",
		},
		{
			name: "link without order",
			build: func() *Transfer {
				doc := NewTransfer(KindIncoming, &day)
				m := doc.AddMove(id.New(), types.NewQuantity(1))
				m.PurchaseLine = &OrderLink{}
				return doc
			},
			field: "moves[0].purchaseLine.orderId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate(context.Background())
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestTransfer_Contributions(t *testing.T) {
	day := time.Date(2026, 5, 1, 15, 30, 0, 0, time.UTC)
	order := id.New()
	product := id.New()

	doc := NewTransfer(KindOutgoing, &day)
	m := doc.AddMove(product, types.NewQuantity(4))
	m.SaleLine = &OrderLink{OrderID: order}
	doc.AddMove(id.New(), types.NewQuantity(9))
	doc.Normalize()

	snap := doc.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), snap.Day)
	assert.Equal(t, []events.Contribution{{
		ProductID: product,
		Measure:   events.MeasureSale,
		Quantity:  types.NewQuantity(4),
		OrderID:   order,
	}}, snap.Contributions)

	require.NoError(t, doc.Cancel())
	assert.Nil(t, doc.Snapshot())
}

func TestTransfer_Unscheduled_UsesCreationDay(t *testing.T) {
	doc := NewTransfer(KindIncoming, nil)
	assert.Equal(t, types.Day(doc.CreatedAt), doc.EffectiveDay())
}

func TestTransfer_Normalize_ClearsZeroDates(t *testing.T) {
	doc := NewTransfer(KindOutgoing, &time.Time{})
	m := doc.AddMove(id.New(), types.NewQuantity(1))
	m.Deadline = &time.Time{}

	doc.Normalize()

	assert.Nil(t, doc.ScheduledDate)
	assert.Nil(t, doc.Moves[0].Deadline)
	assert.Equal(t, types.Day(doc.CreatedAt), doc.EffectiveDay())
}

func TestTransfer_Reservations(t *testing.T) {
	doc := NewTransfer(KindOutgoing, nil)
	p1, p2 := id.New(), id.New()
	doc.AddMove(p1, types.NewQuantity(1))
	doc.AddMove(p2, types.NewQuantity(1))
	assert.Empty(t, doc.Reservations())

	_, err := doc.Reserve()
	require.NoError(t, err)
	assert.Equal(t, []events.Reservation{
		{ProductID: p1, Day: doc.EffectiveDay()},
		{ProductID: p2, Day: doc.EffectiveDay()},
	}, doc.Reservations())

	require.NoError(t, doc.Cancel())
	assert.Empty(t, doc.Reservations())
}

func TestTransfer_Lifecycle(t *testing.T) {
	doc := NewTransfer(KindIncoming, nil)
	doc.AddMove(id.New(), types.NewQuantity(2))
	doc.AddMove(id.New(), types.NewQuantity(3))

	reservations, err := doc.Reserve()
	require.NoError(t, err)
	assert.Len(t, reservations, 2)
	assert.Equal(t, MoveAssigned, doc.Moves[0].State)
	require.NotNil(t, doc.Moves[0].Deadline)

	again, err := doc.Reserve()
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, doc.Confirm())
	assert.Equal(t, StateDone, doc.State)
	assert.Equal(t, MoveDone, doc.Moves[1].State)

	movements := doc.Movements(types.Day(doc.CreatedAt))
	require.Len(t, movements, 2)
	assert.Equal(t, stock.RecordTypeReceipt, movements[0].RecordType)
	assert.Equal(t, doc.ID, movements[0].RecorderID)

	err = doc.Cancel()
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}
