package catalog_repo

import (
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockforecast/internal/core/apperror"
	"stockforecast/internal/core/id"
	"stockforecast/internal/domain"
)

func TestBaseCatalogRepo_Columns(t *testing.T) {
	repo := NewProductRepo(nil)
	assert.Equal(t, []string{"id", "deletion_mark", "version", "code", "name", "template_id"}, repo.selectCols)
}

func TestBaseCatalogRepo_ListQuery(t *testing.T) {
	repo := NewProductRepo(nil)
	productID := id.New()

	sql, args, err := repo.ListQuery(domain.ListFilter{Search: "bolt", IDs: []id.ID{productID}}, "code", "name").ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, deletion_mark, version, code, name, template_id FROM cat_products "+
			"WHERE deletion_mark = $1 AND (code ILIKE $2 OR name ILIKE $3) AND id IN ($4)", sql)
	require.Len(t, args, 4)
	assert.Equal(t, []any{false, "%bolt%", "%bolt%"}, args[:3])
}

func TestBaseCatalogRepo_ListQuery_IncludeDeleted(t *testing.T) {
	repo := NewProductRepo(nil)

	sql, args, err := repo.ListQuery(domain.ListFilter{IncludeDeleted: true}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, deletion_mark, version, code, name, template_id FROM cat_products", sql)
	assert.Empty(t, args)
}

func TestBaseCatalogRepo_ParseOrderBy(t *testing.T) {
	repo := NewProductRepo(nil)

	tests := []struct {
		in   string
		want string
	}{
		{"", "code ASC"},
		{"name", "name ASC"},
		{"+code", "code ASC"},
		{"-name", "name DESC"},
	}
	for _, tt := range tests {
		got, err := repo.parseOrderBy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"-", "name; DROP TABLE cat_products", "price"} {
		_, err := repo.parseOrderBy(bad)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation), bad)
	}
}

func TestExistsExpr_RenumbersPlaceholders(t *testing.T) {
	repo := NewBomRepo(nil)
	productID := id.New()

	sub := repo.Builder().
		Select("1").
		From(bomLinesTable + " l").
		Where("l.bom_id = " + bomTable + ".id").
		Where(squirrel.Eq{"l.product_id": productID})

	sql, args, err := repo.baseSelect().
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(existsExpr(sub)).
		ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, deletion_mark, version, code, product_template_id, product_qty FROM cat_boms "+
			"WHERE deletion_mark = $1 AND EXISTS (SELECT 1 FROM cat_bom_lines l WHERE l.bom_id = cat_boms.id AND l.product_id = $2)", sql)
	require.Len(t, args, 2)
	assert.Equal(t, false, args[0])
}
