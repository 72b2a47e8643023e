package types

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"1", 10_000},
		{"12.5", 125_000},
		{"-0.0001", -1},
		{"0.00005", 1},
		{"-0.00005", -1},
		{"1e3", 10_000_000},
		{" 3.25 ", 32_500},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuantity_Invalid(t *testing.T) {
	_, err := ParseQuantity("")
	assert.Error(t, err)

	_, err = ParseQuantity("abc")
	assert.Error(t, err)

	// Past int64 once scaled by 1e4.
	for _, in := range []string{"1e15", "-1e15", "922337203685477.5808"} {
		_, err = ParseQuantity(in)
		assert.Error(t, err, in)
	}

	q, err := ParseQuantity("922337203685477.5807")
	require.NoError(t, err)
	assert.Equal(t, Quantity(math.MaxInt64), q)

	var payload struct {
		A Quantity `json:"a"`
	}
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1e15}`), &payload))
}

func TestQuantity_JSON(t *testing.T) {
	var payload struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
		C Quantity `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 2.5, "b": "7", "c": null}`), &payload))

	assert.Equal(t, MustQuantity("2.5"), payload.A)
	assert.Equal(t, NewQuantity(7), payload.B)
	assert.True(t, payload.C.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 2.5, "b": 7, "c": 0}`, string(out))
	assert.Equal(t, "-1.2500", MustQuantity("-1.25").String())
}

func TestQuantity_MulRatio(t *testing.T) {
	// 3 units of a BoM line per 2 produced, scaled to 5 produced.
	assert.Equal(t, MustQuantity("7.5"), NewQuantity(3).MulRatio(NewQuantity(5), NewQuantity(2)))
	assert.True(t, NewQuantity(3).MulRatio(NewQuantity(5), 0).IsZero())
}

func TestEffectiveDay(t *testing.T) {
	created := time.Date(2026, 3, 4, 22, 15, 0, 0, time.UTC)
	planned := time.Date(2026, 3, 9, 8, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), EffectiveDay(&planned, created))
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), EffectiveDay(nil, created))

	from, to := DayWindow(created)
	assert.Equal(t, 24*time.Hour, to.Sub(from))
}
