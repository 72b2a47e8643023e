package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/forecast"
)

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	products := NewProductRepo(s)
	boom := errors.New("boom")

	p := product.NewProduct("P1", "Product")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, products.Create(ctx, p))
		_, err := products.GetByID(ctx, p.ID)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = products.GetByID(ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRunInTransaction_RollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	products := NewProductRepo(s)

	p := product.NewProduct("P1", "Product")
	assert.Panics(t, func() {
		_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
			_ = products.Create(ctx, p)
			panic("boom")
		})
	})

	_, err := products.GetByID(ctx, p.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRunInTransaction_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	products := NewProductRepo(s)

	p := product.NewProduct("P1", "Product")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			return products.Create(ctx, p)
		})
	})
	require.NoError(t, err)

	got, err := products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "P1", got.Code)
}

func TestForecastRepo_InsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewForecastRepo(NewStore())

	productID := id.New()
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	row := forecast.NewRow(productID, day)
	row.SaleOrderQuantity = types.NewQuantity(2)
	inserted, err := repo.Insert(ctx, row)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := forecast.NewRow(productID, day)
	inserted, err = repo.Insert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted, "one row per product and day")

	got, err := repo.GetForUpdate(ctx, productID, day.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, row.ID, got.ID)

	stale := got.Clone()
	got.ForecastQuantity = types.NewQuantity(1)
	require.NoError(t, repo.Update(ctx, got))
	assert.Equal(t, 2, got.Version)

	err = repo.Update(ctx, stale)
	assert.True(t, apperror.IsConcurrentModification(err))

	require.NoError(t, repo.Delete(ctx, row.ID))
	_, err = repo.GetForUpdate(ctx, productID, day)
	assert.True(t, apperror.IsNotFound(err))

	// The key is free again.
	inserted, err = repo.Insert(ctx, forecast.NewRow(productID, day))
	require.NoError(t, err)
	assert.True(t, inserted)
}
