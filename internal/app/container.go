// Package app wires repositories, services and the event bus together.
package app

import (
	"go.uber.org/zap"

	"stockforecast/internal/core/numerator"
	"stockforecast/internal/core/tx"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/manufacturing"
	"stockforecast/internal/domain/documents/purchase"
	"stockforecast/internal/domain/documents/sale"
	"stockforecast/internal/domain/documents/transfer"
	"stockforecast/internal/domain/forecast"
	"stockforecast/internal/domain/registers/stock"
	"stockforecast/internal/infrastructure/event"
	"stockforecast/internal/infrastructure/storage/memory"
	"stockforecast/internal/infrastructure/storage/postgres"
	"stockforecast/internal/infrastructure/storage/postgres/catalog_repo"
	"stockforecast/internal/infrastructure/storage/postgres/document_repo"
	"stockforecast/internal/infrastructure/storage/postgres/register_repo"
	"stockforecast/internal/infrastructure/storage/postgres/report_repo"
)

// Repositories is one storage backend.
type Repositories struct {
	TxManager     tx.Manager
	Numerator     numerator.Generator
	Products      product.Repository
	BoMs          bom.Repository
	Transfers     transfer.Repository
	Manufacturing manufacturing.Repository
	Purchases     purchase.Repository
	Sales         sale.Repository
	Stock         stock.Repository
	Forecast      forecast.Repository
	History       forecast.HistoryReader

	// Recorders receive every report row change inside the transaction.
	Recorders []forecast.ChangeRecorder
}

// MemoryRepositories builds repositories over an in-memory store.
func MemoryRepositories(s *memory.Store) Repositories {
	journal := memory.NewJournal(s)
	return Repositories{
		TxManager:     s,
		Numerator:     memory.NewNumerator(s),
		Products:      memory.NewProductRepo(s),
		BoMs:          memory.NewBomRepo(s),
		Transfers:     memory.NewTransferRepo(s),
		Manufacturing: memory.NewManufacturingRepo(s),
		Purchases:     memory.NewPurchaseRepo(s),
		Sales:         memory.NewSaleRepo(s),
		Stock:         memory.NewStockRepo(s),
		Forecast:      memory.NewForecastRepo(s),
		History:       journal,
		Recorders:     []forecast.ChangeRecorder{journal},
	}
}

// PostgresRepositories builds repositories over PostgreSQL. With outbox
// set, row changes are also queued in sys_outbox for the relay.
func PostgresRepositories(txm *postgres.TxManager, outbox bool) (Repositories, error) {
	journal, err := postgres.NewJournal(txm)
	if err != nil {
		return Repositories{}, err
	}

	recorders := []forecast.ChangeRecorder{journal}
	if outbox {
		recorders = append(recorders, postgres.NewOutboxRecorder(txm))
	}

	return Repositories{
		TxManager:     txm,
		Numerator:     postgres.NewNumerator(txm),
		Products:      catalog_repo.NewProductRepo(txm),
		BoMs:          catalog_repo.NewBomRepo(txm),
		Transfers:     document_repo.NewTransferRepo(txm),
		Manufacturing: document_repo.NewManufacturingRepo(txm),
		Purchases:     document_repo.NewPurchaseRepo(txm),
		Sales:         document_repo.NewSaleRepo(txm),
		Stock:         register_repo.NewStockRepo(txm),
		Forecast:      report_repo.NewForecastRepo(txm),
		History:       journal,
		Recorders:     recorders,
	}, nil
}

// Services holds every domain service.
type Services struct {
	Bus           *event.SyncBus
	Products      *product.Service
	BoMs          *bom.Service
	Stock         *stock.Service
	Transfers     *transfer.Service
	Manufacturing *manufacturing.Service
	Purchases     *purchase.Service
	Sales         *sale.Service
	Maintainer    *forecast.Maintainer
	Forecast      *forecast.Service
}

// NewServices builds the services and subscribes the forecast maintainer
// to document events.
func NewServices(repos Repositories, log *zap.Logger) *Services {
	bus := event.NewSyncBus(log)

	stockSvc := stock.NewService(repos.Stock)
	products := product.NewService(repos.Products, repos.TxManager, stockSvc, repos.Transfers)
	boms := bom.NewService(repos.BoMs, repos.TxManager, products)

	transfers := transfer.NewService(repos.Transfers, products, stockSvc, repos.Numerator, repos.TxManager, bus)
	mos := manufacturing.NewService(repos.Manufacturing, products, boms, stockSvc, repos.Numerator, repos.TxManager, bus)
	purchases := purchase.NewService(repos.Purchases, products, transfers, repos.Numerator, repos.TxManager, bus)
	sales := sale.NewService(repos.Sales, products, transfers, repos.Numerator, repos.TxManager, bus)

	agg := forecast.NewAggregator(repos.Transfers, repos.Manufacturing, stockSvc, products, boms)
	maintainer := forecast.NewMaintainer(repos.Forecast, agg, repos.Recorders...)
	bus.Subscribe(maintainer)

	return &Services{
		Bus:           bus,
		Products:      products,
		BoMs:          boms,
		Stock:         stockSvc,
		Transfers:     transfers,
		Manufacturing: mos,
		Purchases:     purchases,
		Sales:         sales,
		Maintainer:    maintainer,
		Forecast:      forecast.NewService(repos.Forecast, maintainer, repos.History, repos.TxManager),
	}
}
