// Package entity holds the base types embedded by catalogs and documents.
package entity

import (
	"context"
	"time"

	"stockforecast/internal/core/id"
)

// Validatable entities check their own invariants without store access.
// Validate returns nil or an *apperror.AppError with field details.
type Validatable interface {
	Validate(ctx context.Context) error
}

// Entity gives repositories the key and version of any stored record.
type Entity interface {
	Base() *BaseEntity
}

// BaseEntity is the stored identity of a record. Version starts at 1 and
// is bumped by the repository on every successful update.
type BaseEntity struct {
	ID           id.ID `db:"id" json:"id"`
	DeletionMark bool  `db:"deletion_mark" json:"deletionMark"`
	Version      int   `db:"version" json:"version"`
}

func NewBaseEntity() BaseEntity {
	return BaseEntity{ID: id.New(), Version: 1}
}

func (b *BaseEntity) Base() *BaseEntity {
	return b
}

// BaseDocument adds the document number and audit stamps.
type BaseDocument struct {
	BaseEntity

	Number    string    `db:"number" json:"number"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument stamps CreatedAt, which also decides the effective day
// of an undated document.
func NewBaseDocument() BaseDocument {
	now := time.Now().UTC()
	return BaseDocument{BaseEntity: NewBaseEntity(), CreatedAt: now, UpdatedAt: now}
}

func (b *BaseDocument) Document() *BaseDocument {
	return b
}

// BaseCatalog carries no audit stamps.
type BaseCatalog struct {
	BaseEntity
}

func NewBaseCatalog() BaseCatalog {
	return BaseCatalog{BaseEntity: NewBaseEntity()}
}
