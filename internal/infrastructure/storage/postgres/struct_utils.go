package postgres

import (
	"reflect"
	"sync"
)

// column maps a "db" tag to the field index path inside the struct,
// following embedded structs such as entity.BaseDocument.
type column struct {
	name  string
	index []int
}

// columnPlans caches []column per reflect.Type.
var columnPlans sync.Map

func planFor(t reflect.Type) []column {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := columnPlans.Load(t); ok {
		return cached.([]column)
	}

	var plan []column
	if t.Kind() == reflect.Struct {
		plan = appendColumns(plan, t, nil)
	}
	columnPlans.Store(t, plan)
	return plan
}

func appendColumns(plan []column, t reflect.Type, prefix []int) []column {
	for i := range t.NumField() {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			plan = appendColumns(plan, f.Type, path)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			plan = append(plan, column{name: tag, index: path})
		}
	}
	return plan
}

// ExtractDBColumns lists the "db" columns of T in declaration order,
// embedded structs first where they are declared first:
//
//	ExtractDBColumns[product.Product]()
//	// ["id", "deletion_mark", "version", "code", "name", "template_id"]
func ExtractDBColumns[T any]() []string {
	plan := planFor(reflect.TypeFor[T]())
	cols := make([]string, len(plan))
	for i, c := range plan {
		cols[i] = c.name
	}
	return cols
}

// StructToMap returns column -> value for every tagged field of v.
// Nil is returned for non-struct values.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	plan := planFor(rv.Type())
	res := make(map[string]any, len(plan))
	for _, c := range plan {
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}
