package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
)

func TestSnapshot_Equal(t *testing.T) {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	p1, p2, order := id.New(), id.New(), id.New()

	a := &Snapshot{Day: day, Contributions: []Contribution{
		{ProductID: p1, Measure: MeasureSale, Quantity: types.NewQuantity(2), OrderID: order},
		{ProductID: p2, Measure: MeasureSale, Quantity: types.NewQuantity(1), OrderID: order},
	}}
	b := &Snapshot{Day: day, Contributions: []Contribution{a.Contributions[1], a.Contributions[0]}}

	assert.True(t, a.Equal(b))
	assert.True(t, (*Snapshot)(nil).Equal(nil))
	assert.False(t, a.Equal(nil))

	moved := &Snapshot{Day: day.AddDate(0, 0, 1), Contributions: a.Contributions}
	assert.False(t, a.Equal(moved))

	changed := &Snapshot{Day: day, Contributions: []Contribution{
		a.Contributions[0],
		{ProductID: p2, Measure: MeasureSale, Quantity: types.NewQuantity(3), OrderID: order},
	}}
	assert.False(t, a.Equal(changed))
}
