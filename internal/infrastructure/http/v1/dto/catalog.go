package dto

import (
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
)

// --- Products ---

// CreateProductRequest creates a product. TemplateID groups it with the
// variants of another product; empty makes it its own template.
type CreateProductRequest struct {
	Code       string  `json:"code" binding:"required,max=64"`
	Name       string  `json:"name" binding:"required"`
	TemplateID *string `json:"templateId"`
}

// ToEntity builds the product.
func (r CreateProductRequest) ToEntity() (*product.Product, error) {
	p := product.NewProduct(r.Code, r.Name)
	templateID, err := parseOptionalID("templateId", r.TemplateID)
	if err != nil {
		return nil, err
	}
	if templateID != nil {
		p.TemplateID = *templateID
	}
	return p, nil
}

// UpdateProductRequest edits code or name.
type UpdateProductRequest struct {
	Code    *string `json:"code"`
	Name    *string `json:"name"`
	Version int     `json:"version" binding:"required,min=1"`
}

// ApplyTo copies set fields onto p.
func (r UpdateProductRequest) ApplyTo(p *product.Product) (*product.Product, error) {
	if r.Code != nil {
		p.Code = *r.Code
	}
	if r.Name != nil {
		p.Name = *r.Name
	}
	p.Version = r.Version
	return p, nil
}

// ProductResponse is a product in API responses.
type ProductResponse struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	TemplateID   string `json:"templateId"`
	DeletionMark bool   `json:"deletionMark"`
	Version      int    `json:"version"`
}

// FromProduct converts a product to its response.
func FromProduct(p *product.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID.String(),
		Code:         p.Code,
		Name:         p.Name,
		TemplateID:   p.TemplateID.String(),
		DeletionMark: p.DeletionMark,
		Version:      p.Version,
	}
}

// --- Bills of materials ---

// BoMLineRequest is one component line.
type BoMLineRequest struct {
	ProductID string         `json:"productId" binding:"required"`
	Quantity  types.Quantity `json:"quantity"`
}

// CreateBoMRequest creates a BoM for a product template.
type CreateBoMRequest struct {
	Code              string           `json:"code" binding:"required"`
	ProductTemplateID string           `json:"productTemplateId" binding:"required"`
	ProductQty        types.Quantity   `json:"productQty"`
	Lines             []BoMLineRequest `json:"lines"`
}

// ToEntity builds the BoM.
func (r CreateBoMRequest) ToEntity() (*bom.BoM, error) {
	templateID, err := parseID("productTemplateId", r.ProductTemplateID)
	if err != nil {
		return nil, err
	}
	b := bom.NewBoM(r.Code, templateID, r.ProductQty)
	if err := addBoMLines(b, r.Lines); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBoMRequest replaces the BoM quantity and lines.
type UpdateBoMRequest struct {
	Code       *string          `json:"code"`
	ProductQty types.Quantity   `json:"productQty"`
	Lines      []BoMLineRequest `json:"lines"`
	Version    int              `json:"version" binding:"required,min=1"`
}

// ApplyTo copies the request onto b.
func (r UpdateBoMRequest) ApplyTo(b *bom.BoM) (*bom.BoM, error) {
	if r.Code != nil {
		b.Code = *r.Code
	}
	b.ProductQty = r.ProductQty
	b.Lines = nil
	if err := addBoMLines(b, r.Lines); err != nil {
		return nil, err
	}
	b.Version = r.Version
	return b, nil
}

func addBoMLines(b *bom.BoM, lines []BoMLineRequest) error {
	for _, l := range lines {
		productID, err := parseID("lines.productId", l.ProductID)
		if err != nil {
			return err
		}
		b.AddLine(productID, l.Quantity)
	}
	return nil
}

// BoMResponse is a BoM in API responses.
type BoMResponse struct {
	ID                string         `json:"id"`
	Code              string         `json:"code"`
	ProductTemplateID string         `json:"productTemplateId"`
	ProductQty        types.Quantity `json:"productQty"`
	Lines             []bom.Line     `json:"lines"`
	DeletionMark      bool           `json:"deletionMark"`
	Version           int            `json:"version"`
}

// FromBoM converts a BoM to its response.
func FromBoM(b *bom.BoM) BoMResponse {
	lines := b.Lines
	if lines == nil {
		lines = []bom.Line{}
	}
	return BoMResponse{
		ID:                b.ID.String(),
		Code:              b.Code,
		ProductTemplateID: b.ProductTemplateID.String(),
		ProductQty:        b.ProductQty,
		Lines:             lines,
		DeletionMark:      b.DeletionMark,
		Version:           b.Version,
	}
}
