// Package memory provides in-process implementations of every repository.
// It backs the "memory" storage driver and the domain tests.
//
// All repositories of one Store share a single lock. A transaction holds
// the lock for its whole duration and restores a snapshot of every table
// on rollback, so transactions are fully serialized.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/domain/registers/stock"
)

type txKey struct{}

// tables holds the data. Stored values are never mutated in place: every
// write replaces the entry with a fresh copy, so a snapshot only needs to
// copy the maps.
type tables struct {
	products      map[id.ID]*product.Product
	boms          map[id.ID]*bom.BoM
	transfers     map[id.ID]*transfer.Transfer
	manufacturing map[id.ID]*manufacturing.Order
	purchases     map[id.ID]*purchase.Order
	sales         map[id.ID]*sale.Order
	movements     []stock.Movement
	balances      map[id.ID]stock.Balance
	rows          map[id.ID]*forecast.Row
	rowKeys       map[string]id.ID
	sequences     map[string]int64
	journal       []forecast.RowChange
}

func newTables() tables {
	return tables{
		products:      make(map[id.ID]*product.Product),
		boms:          make(map[id.ID]*bom.BoM),
		transfers:     make(map[id.ID]*transfer.Transfer),
		manufacturing: make(map[id.ID]*manufacturing.Order),
		purchases:     make(map[id.ID]*purchase.Order),
		sales:         make(map[id.ID]*sale.Order),
		balances:      make(map[id.ID]stock.Balance),
		rows:          make(map[id.ID]*forecast.Row),
		rowKeys:       make(map[string]id.ID),
		sequences:     make(map[string]int64),
	}
}

func (t tables) snapshot() tables {
	return tables{
		products:      maps.Clone(t.products),
		boms:          maps.Clone(t.boms),
		transfers:     maps.Clone(t.transfers),
		manufacturing: maps.Clone(t.manufacturing),
		purchases:     maps.Clone(t.purchases),
		sales:         maps.Clone(t.sales),
		movements:     slices.Clone(t.movements),
		balances:      maps.Clone(t.balances),
		rows:          maps.Clone(t.rows),
		rowKeys:       maps.Clone(t.rowKeys),
		sequences:     maps.Clone(t.sequences),
		journal:       slices.Clone(t.journal),
	}
}

// Store is an in-memory database.
type Store struct {
	mu   sync.Mutex
	data tables
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newTables()}
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.data = saved
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.data = saved
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// do runs fn under the store lock unless ctx already holds it.
func (s *Store) do(ctx context.Context, fn func(t *tables) error) error {
	if inTx(ctx) {
		return fn(&s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.data)
}

// page applies offset and limit to a sorted slice.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ tx.ReadOnlyManager = (*Store)(nil)
