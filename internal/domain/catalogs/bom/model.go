// Package bom provides the bill-of-materials catalog.
package bom

import (
	"context"
	"fmt"
	"strings"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/entity"
	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
)

// BoM states that ProductQty units of the template are produced from Lines.
type BoM struct {
	entity.BaseCatalog

	Code              string         `db:"code" json:"code"`
	ProductTemplateID id.ID          `db:"product_template_id" json:"productTemplateId"`
	ProductQty        types.Quantity `db:"product_qty" json:"productQty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one component of a BoM.
type Line struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	BomID     id.ID          `db:"bom_id" json:"-"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// NewBoM creates an empty BoM for a template.
func NewBoM(code string, templateID id.ID, qty types.Quantity) *BoM {
	return &BoM{
		BaseCatalog:       entity.NewBaseCatalog(),
		Code:              strings.TrimSpace(code),
		ProductTemplateID: templateID,
		ProductQty:        qty,
	}
}

// AddLine appends a component line.
func (b *BoM) AddLine(productID id.ID, qty types.Quantity) {
	b.Lines = append(b.Lines, Line{
		LineID:    id.New(),
		BomID:     b.ID,
		LineNo:    len(b.Lines) + 1,
		ProductID: productID,
		Quantity:  qty,
	})
}

// Validate implements entity.Validatable interface.
func (b *BoM) Validate(_ context.Context) error {
	if strings.TrimSpace(b.Code) == "" {
		return apperror.NewValidation("code is required").WithDetail("field", "code")
	}
	if id.IsNil(b.ProductTemplateID) {
		return apperror.NewValidation("product template is required").WithDetail("field", "productTemplateId")
	}
	if !b.ProductQty.IsPositive() {
		return apperror.NewValidation("product quantity must be positive").WithDetail("field", "productQty")
	}
	seen := make(map[id.ID]struct{}, len(b.Lines))
	for i, l := range b.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if id.IsNil(l.ProductID) {
			return apperror.NewValidation("component product is required").WithDetail("field", field+".productId")
		}
		if !l.Quantity.IsPositive() {
			return apperror.NewValidation("component quantity must be positive").WithDetail("field", field+".quantity")
		}
		if _, dup := seen[l.ProductID]; dup {
			return apperror.NewValidation("duplicate component").WithDetail("field", field+".productId")
		}
		seen[l.ProductID] = struct{}{}
	}
	return nil
}

// Normalize assigns line ids and numbers and links lines to the BoM.
func (b *BoM) Normalize() {
	for i := range b.Lines {
		if id.IsNil(b.Lines[i].LineID) {
			b.Lines[i].LineID = id.New()
		}
		b.Lines[i].BomID = b.ID
		b.Lines[i].LineNo = i + 1
	}
}

// ScaledComponents returns the component quantities needed to produce qty
// units of the template.
func (b *BoM) ScaledComponents(qty types.Quantity) map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity, len(b.Lines))
	for _, l := range b.Lines {
		out[l.ProductID] += l.Quantity.MulRatio(qty, b.ProductQty)
	}
	return out
}
