package report_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/events"
	"stockforecast/internal/domain/forecast"
)

func TestRowColumns(t *testing.T) {
	assert.Equal(t, "id", rowCols[0])
	assert.Contains(t, rowCols, "today_current_stock")
	assert.Contains(t, rowCols, "used_in_refs")
	for _, c := range rowValueCols {
		assert.Contains(t, rowCols, c)
	}
}

func TestInsertQuery(t *testing.T) {
	repo := NewForecastRepo(nil)
	row := forecast.NewRow(id.New(), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	orderID := id.New()
	row.Add(forecast.Contribution{ProductID: row.ProductID, Measure: events.MeasureSale, Quantity: types.NewQuantity(3), OrderID: orderID})

	q, err := repo.insertQuery(row)
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(sql, "INSERT INTO rpt_forecast_rows ("+strings.Join(rowCols, ",")+") VALUES ($1,"))
	assert.True(t, strings.HasSuffix(sql, "ON CONFLICT (product_id, date) DO NOTHING"))
	require.Len(t, args, len(rowCols))

	for i, c := range rowCols {
		switch c {
		case "sale_order_quantity":
			assert.Equal(t, int64(30_000), args[i])
		case "bom_refs":
			assert.Equal(t, []id.ID{}, args[i])
		case "order_lines":
			assert.JSONEq(t, `{"sale":{"`+orderID.String()+`":1}}`, string(args[i].([]byte)))
		}
	}
}

func TestUpdateQuery(t *testing.T) {
	repo := NewForecastRepo(nil)
	row := forecast.NewRow(id.New(), time.Now())
	row.Version = 4

	q, err := repo.updateQuery(row, time.Now())
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "version = version + 1")
	assert.Contains(t, sql, "order_lines = $14")
	assert.True(t, strings.HasSuffix(sql, "WHERE id = $16 AND version = $17"))
	require.Len(t, args, 17)
	assert.Equal(t, []byte("{}"), args[13])
	assert.Equal(t, 4, args[16])
}

func TestFilterQuery(t *testing.T) {
	repo := NewForecastRepo(nil)
	from := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	sql, args, err := filterQuery(repo.builder.Select("COUNT(*)").From(forecastTable), forecast.Filter{
		ProductIDs:  []id.ID{id.New()},
		DateFrom:    &from,
		NonZeroOnly: true,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM rpt_forecast_rows WHERE product_id IN ($1) AND date >= $2 AND today_current_stock <> $3", sql)
	require.Len(t, args, 3)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), args[1])
}
