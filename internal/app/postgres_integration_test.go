//go:build integration

package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"stockforecast/internal/app"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/infrastructure/storage/postgres"
)

func setupPostgres(t *testing.T) (*postgres.TxManager, *app.Services) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("forecast_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := postgres.NewMigrator(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txm := postgres.NewTxManager(pool)
	repos, err := app.PostgresRepositories(txm, true)
	require.NoError(t, err)
	return txm, app.NewServices(repos, zap.NewNop())
}

func TestPostgres_SaleConfirmMaintainsForecast(t *testing.T) {
	_, svc := setupPostgres(t)
	ctx := context.Background()

	p := product.NewProduct("P1", "Product")
	require.NoError(t, svc.Products.Create(ctx, p))

	commitment := types.Today().AddDate(0, 0, 4)
	so := sale.NewOrder(&commitment)
	so.Customer = "ACME"
	so.AddLine(p.ID, types.NewQuantity(3))
	require.NoError(t, svc.Sales.Create(ctx, so))

	_, err := svc.Sales.Confirm(ctx, so.ID)
	require.NoError(t, err)

	onHand, err := svc.Stock.OnHand(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(-3), onHand)

	res, err := svc.Forecast.List(ctx, forecast.Filter{ProductIDs: []id.ID{p.ID}})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	row := res.Items[0]
	assert.True(t, row.Date.Equal(commitment))
	assert.Equal(t, types.NewQuantity(3), row.SaleOrderQuantity)
	assert.True(t, row.SaleOrderRefs.Contains(so.ID))

	history, err := svc.Forecast.History(ctx, row.ID, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestPostgres_RecomputeRangeIsStable(t *testing.T) {
	_, svc := setupPostgres(t)
	ctx := context.Background()

	p := product.NewProduct("P2", "Product")
	require.NoError(t, svc.Products.Create(ctx, p))

	commitment := types.Today().AddDate(0, 0, 1)
	so := sale.NewOrder(&commitment)
	so.AddLine(p.ID, types.NewQuantity(2))
	require.NoError(t, svc.Sales.Create(ctx, so))
	_, err := svc.Sales.Confirm(ctx, so.ID)
	require.NoError(t, err)

	before, err := svc.Forecast.List(ctx, forecast.Filter{ProductIDs: []id.ID{p.ID}})
	require.NoError(t, err)
	require.Len(t, before.Items, 1)

	n, err := svc.Forecast.RecomputeRange(ctx, types.Today(), commitment)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := svc.Forecast.Get(ctx, before.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, before.Items[0].SaleOrderQuantity, after.SaleOrderQuantity)
	assert.Equal(t, before.Items[0].TodayCurrentStock, after.TodayCurrentStock)
}
