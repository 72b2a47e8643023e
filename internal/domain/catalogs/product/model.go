// Package product provides the Product catalog.
// Variants of one template share TemplateID; a standalone product is its own template.
package product

import (
	"context"
	"strings"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/entity"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
)

// Product is a stockable item.
type Product struct {
	entity.BaseCatalog

	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`

	// TemplateID groups variants. Defaults to the product's own ID.
	TemplateID id.ID `db:"template_id" json:"templateId"`
}

// NewProduct creates a product that is its own template.
func NewProduct(code, name string) *Product {
	p := &Product{
		BaseCatalog: entity.NewBaseCatalog(),
		Code:        strings.TrimSpace(code),
		Name:        strings.TrimSpace(name),
	}
	p.TemplateID = p.ID
	return p
}

// Validate implements entity.Validatable interface.
func (p *Product) Validate(_ context.Context) error {
	if strings.TrimSpace(p.Code) == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if len(p.Code) > 64 {
		return apperror.NewValidation("code is too long").WithDetail("field", "code")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}

// Availability is the product's quantity breakdown.
type Availability struct {
	ProductID id.ID `json:"productId"`

	// OnHand is the stock register balance.
	OnHand types.Quantity `json:"onHand"`

	// Incoming and Outgoing sum draft moves of incoming and outgoing transfers.
	Incoming types.Quantity `json:"incoming"`
	Outgoing types.Quantity `json:"outgoing"`

	// VirtualAvailable = OnHand + Incoming - Outgoing.
	VirtualAvailable types.Quantity `json:"virtualAvailable"`
}
