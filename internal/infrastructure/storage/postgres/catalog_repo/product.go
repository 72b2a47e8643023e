package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/infrastructure/storage/postgres"
)

const productTable = "cat_products"

var _ product.Repository = (*ProductRepo)(nil)

// ProductRepo implements product.Repository.
type ProductRepo struct {
	*BaseCatalogRepo[*product.Product]
}

// NewProductRepo creates a product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(txm, productTable, "product", func() *product.Product {
			return &product.Product{}
		}),
	}
}

// List searches code and name.
func (r *ProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	return r.BaseCatalogRepo.List(ctx, filter, "code", "name")
}

// ListByTemplate returns all non-deleted variants of a template.
func (r *ProductRepo) ListByTemplate(ctx context.Context, templateID id.ID) ([]*product.Product, error) {
	return r.FindMany(ctx, r.baseSelect().
		Where(squirrel.Eq{"template_id": templateID}).
		Where(squirrel.Eq{"deletion_mark": false}).
		OrderBy("id"))
}
