package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stockforecast/internal/core/id"
	"stockforecast/internal/core/types"
	"stockforecast/internal/domain/catalogs/bom"
	"stockforecast/internal/domain/catalogs/product"
	"stockforecast/internal/domain/documents/transfer"
)

func TestExtractDBColumns_Embedded(t *testing.T) {
	cols := ExtractDBColumns[product.Product]()
	assert.Equal(t, []string{"id", "deletion_mark", "version", "code", "name", "template_id"}, cols)
}

func TestExtractDBColumns_SkipsLines(t *testing.T) {
	cols := ExtractDBColumns[bom.BoM]()
	assert.NotContains(t, cols, "lines")
	assert.Contains(t, cols, "product_qty")

	docCols := ExtractDBColumns[transfer.Transfer]()
	for _, c := range []string{"number", "created_at", "updated_by", "kind", "scheduled_date", "state", "origin"} {
		assert.Contains(t, docCols, c)
	}
}

func TestStructToMap(t *testing.T) {
	p := product.NewProduct(" P-1 ", "Widget")
	p.Version = 5
	p.DeletionMark = true

	m := StructToMap(p)

	assert.Equal(t, p.ID, m["id"])
	assert.Equal(t, true, m["deletion_mark"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "P-1", m["code"])
	assert.Equal(t, p.ID, m["template_id"])
	assert.Len(t, m, 6)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
	b := bom.NewBoM("B", id.New(), types.NewQuantity(1))
	assert.Equal(t, types.NewQuantity(1), StructToMap(b)["product_qty"])
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}
