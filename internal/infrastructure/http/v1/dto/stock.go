package dto

import (
	"time"

	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/registers/stock"
)

// StockBalanceResponse represents stock balance in API responses.
type StockBalanceResponse struct {
	ProductID      string         `json:"productId"`
	Quantity       types.Quantity `json:"quantity"`
	LastMovementAt *time.Time     `json:"lastMovementAt,omitempty"`
}

// FromStockBalance converts a balance to its response.
func FromStockBalance(b stock.Balance) StockBalanceResponse {
	return StockBalanceResponse{
		ProductID:      b.ProductID.String(),
		Quantity:       b.Quantity,
		LastMovementAt: b.LastMovementAt,
	}
}

// StockMovementResponse represents stock movement in API responses.
type StockMovementResponse struct {
	LineID          string         `json:"lineId"`
	RecorderID      string         `json:"recorderId"`
	RecorderType    string         `json:"recorderType"`
	RecorderVersion int            `json:"recorderVersion"`
	Period          time.Time      `json:"period"`
	RecordType      string         `json:"recordType"`
	ProductID       string         `json:"productId"`
	Quantity        types.Quantity `json:"quantity"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// FromStockMovement converts a movement to its response.
func FromStockMovement(m stock.Movement) StockMovementResponse {
	return StockMovementResponse{
		LineID:          m.LineID.String(),
		RecorderID:      m.RecorderID.String(),
		RecorderType:    m.RecorderType,
		RecorderVersion: m.RecorderVersion,
		Period:          m.Period,
		RecordType:      string(m.RecordType),
		ProductID:       m.ProductID.String(),
		Quantity:        m.Quantity,
		CreatedAt:       m.CreatedAt,
	}
}
