package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
)

func matchCatalog(f domain.ListFilter, entityID id.ID, deleted bool, code, name string) bool {
	if deleted && !f.IncludeDeleted {
		return false
	}
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, entityID) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(code), q) && !strings.Contains(strings.ToLower(name), q) {
			return false
		}
	}
	return true
}

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

// NewProductRepo creates a product repository.
func NewProductRepo(s *Store) *ProductRepo { return &ProductRepo{s: s} }

func copyProduct(p *product.Product) *product.Product {
	c := *p
	return &c
}

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, func(t *tables) error {
		if _, ok := t.products[p.ID]; ok {
			return apperror.NewConflict("product already exists")
		}
		for _, other := range t.products {
			if other.Code == p.Code && !other.DeletionMark {
				return apperror.NewDuplicate("product", "code", p.Code)
			}
		}
		t.products[p.ID] = copyProduct(p)
		return nil
	})
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, func(t *tables) error {
		p, ok := t.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		out = copyProduct(p)
		return nil
	})
	return out, err
}

func (r *ProductRepo) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	var out *product.Product
	err := r.s.do(ctx, func(t *tables) error {
		for _, p := range t.products {
			if p.Code == code && !p.DeletionMark {
				out = copyProduct(p)
				return nil
			}
		}
		return apperror.NewNotFound("product", code)
	})
	return out, err
}

func (r *ProductRepo) Update(ctx context.Context, p *product.Product) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.products[p.ID]
		if !ok {
			return apperror.NewNotFound("product", p.ID.String())
		}
		if current.Version != p.Version {
			return apperror.NewConcurrentModification("product", p.ID.String())
		}
		p.Version++
		t.products[p.ID] = copyProduct(p)
		return nil
	})
}

func (r *ProductRepo) Delete(ctx context.Context, productID id.ID) error {
	return r.s.do(ctx, func(t *tables) error {
		p, ok := t.products[productID]
		if !ok {
			return apperror.NewNotFound("product", productID.String())
		}
		c := copyProduct(p)
		c.DeletionMark = true
		c.Version++
		t.products[productID] = c
		return nil
	})
}

func (r *ProductRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*product.Product], error) {
	var res domain.ListResult[*product.Product]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*product.Product, 0)
		for _, p := range t.products {
			if matchCatalog(f, p.ID, p.DeletionMark, p.Code, p.Name) {
				items = append(items, copyProduct(p))
			}
		}
		slices.SortFunc(items, func(a, b *product.Product) int {
			return cmp.Or(strings.Compare(a.Code, b.Code), id.Compare(a.ID, b.ID))
		})
		res = domain.ListResult[*product.Product]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

func (r *ProductRepo) ListByTemplate(ctx context.Context, templateID id.ID) ([]*product.Product, error) {
	var out []*product.Product
	err := r.s.do(ctx, func(t *tables) error {
		for _, p := range t.products {
			if p.TemplateID == templateID && !p.DeletionMark {
				out = append(out, copyProduct(p))
			}
		}
		slices.SortFunc(out, func(a, b *product.Product) int { return id.Compare(a.ID, b.ID) })
		return nil
	})
	return out, err
}

// BomRepo implements bom.Repository.
type BomRepo struct{ s *Store }

// NewBomRepo creates a BoM repository.
func NewBomRepo(s *Store) *BomRepo { return &BomRepo{s: s} }

func copyBoM(b *bom.BoM) *bom.BoM {
	c := *b
	c.Lines = slices.Clone(b.Lines)
	return &c
}

func (r *BomRepo) Create(ctx context.Context, b *bom.BoM) error {
	return r.s.do(ctx, func(t *tables) error {
		if _, ok := t.boms[b.ID]; ok {
			return apperror.NewConflict("bom already exists")
		}
		t.boms[b.ID] = copyBoM(b)
		return nil
	})
}

func (r *BomRepo) GetByID(ctx context.Context, bomID id.ID) (*bom.BoM, error) {
	var out *bom.BoM
	err := r.s.do(ctx, func(t *tables) error {
		b, ok := t.boms[bomID]
		if !ok {
			return apperror.NewNotFound("bom", bomID.String())
		}
		out = copyBoM(b)
		return nil
	})
	return out, err
}

func (r *BomRepo) GetByCode(ctx context.Context, code string) (*bom.BoM, error) {
	var out *bom.BoM
	err := r.s.do(ctx, func(t *tables) error {
		for _, b := range t.boms {
			if b.Code == code && !b.DeletionMark {
				out = copyBoM(b)
				return nil
			}
		}
		return apperror.NewNotFound("bom", code)
	})
	return out, err
}

func (r *BomRepo) Update(ctx context.Context, b *bom.BoM) error {
	return r.s.do(ctx, func(t *tables) error {
		current, ok := t.boms[b.ID]
		if !ok {
			return apperror.NewNotFound("bom", b.ID.String())
		}
		if current.Version != b.Version {
			return apperror.NewConcurrentModification("bom", b.ID.String())
		}
		b.Version++
		t.boms[b.ID] = copyBoM(b)
		return nil
	})
}

func (r *BomRepo) Delete(ctx context.Context, bomID id.ID) error {
	return r.s.do(ctx, func(t *tables) error {
		b, ok := t.boms[bomID]
		if !ok {
			return apperror.NewNotFound("bom", bomID.String())
		}
		c := copyBoM(b)
		c.DeletionMark = true
		c.Version++
		t.boms[bomID] = c
		return nil
	})
}

func (r *BomRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*bom.BoM], error) {
	var res domain.ListResult[*bom.BoM]
	err := r.s.do(ctx, func(t *tables) error {
		items := make([]*bom.BoM, 0)
		for _, b := range t.boms {
			if matchCatalog(f, b.ID, b.DeletionMark, b.Code, "") {
				items = append(items, copyBoM(b))
			}
		}
		sortBoMs(items)
		res = domain.ListResult[*bom.BoM]{
			Items:      page(items, f.Limit, f.Offset),
			TotalCount: int64(len(items)),
			Limit:      f.Limit,
			Offset:     f.Offset,
		}
		return nil
	})
	return res, err
}

func (r *BomRepo) ListByTemplate(ctx context.Context, templateID id.ID) ([]*bom.BoM, error) {
	return r.filter(ctx, func(b *bom.BoM) bool { return b.ProductTemplateID == templateID })
}

func (r *BomRepo) ListByComponent(ctx context.Context, productID id.ID) ([]*bom.BoM, error) {
	return r.filter(ctx, func(b *bom.BoM) bool {
		return slices.ContainsFunc(b.Lines, func(l bom.Line) bool { return l.ProductID == productID })
	})
}

func (r *BomRepo) filter(ctx context.Context, keep func(*bom.BoM) bool) ([]*bom.BoM, error) {
	var out []*bom.BoM
	err := r.s.do(ctx, func(t *tables) error {
		for _, b := range t.boms {
			if !b.DeletionMark && keep(b) {
				out = append(out, copyBoM(b))
			}
		}
		sortBoMs(out)
		return nil
	})
	return out, err
}

func sortBoMs(items []*bom.BoM) {
	slices.SortFunc(items, func(a, b *bom.BoM) int {
		return cmp.Or(strings.Compare(a.Code, b.Code), id.Compare(a.ID, b.ID))
	})
}

var (
	_ product.Repository = (*ProductRepo)(nil)
	_ bom.Repository     = (*BomRepo)(nil)
)
