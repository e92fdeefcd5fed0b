package postgres

import (
	"reflect"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"columbarium/internal/core/types"
)

// rowSchema is the flattened "db" column layout of a struct type. Each column
// keeps the field index path through embedded structs such as entity.BaseEntity.
type rowSchema struct {
	cols  []string
	paths [][]int
	index map[string]int
}

var schemas sync.Map // reflect.Type -> *rowSchema

func schemaOf(t reflect.Type) *rowSchema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if cached, ok := schemas.Load(t); ok {
		return cached.(*rowSchema)
	}

	s := &rowSchema{index: make(map[string]int)}
	if t.Kind() == reflect.Struct {
		s.walk(t, nil)
	}
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*rowSchema)
}

func (s *rowSchema) walk(t reflect.Type, prefix []int) {
	for i := range t.NumField() {
		f := t.Field(i)
		path := append(slices.Clone(prefix), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			s.walk(f.Type, path)
			continue
		}
		tag := f.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		s.index[tag] = len(s.cols)
		s.cols = append(s.cols, tag)
		s.paths = append(s.paths, path)
	}
}

// ExtractDBColumns lists the "db" columns of T in declaration order, embedded
// fields first where they are declared first. Row types of child tables
// (installments, applied payments) embed their domain struct next to the
// parent key, so one call covers both.
func ExtractDBColumns[T any]() []string {
	return slices.Clone(schemaOf(reflect.TypeFor[T]()).cols)
}

// StructToMap maps every "db" column of v to its driver value.
func StructToMap(v any) map[string]any {
	rv, s := structValue(v)
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s.cols))
	for i, col := range s.cols {
		out[col] = dbValue(rv.FieldByIndex(s.paths[i]))
	}
	return out
}

// RowValues returns the driver values of v ordered by cols, ready for an
// INSERT ... VALUES row. Columns v does not declare yield NULL.
func RowValues(v any, cols []string) []any {
	rv, s := structValue(v)
	values := make([]any, len(cols))
	if s == nil {
		return values
	}
	for i, col := range cols {
		if j, ok := s.index[col]; ok {
			values[i] = dbValue(rv.FieldByIndex(s.paths[j]))
		}
	}
	return values
}

func structValue(v any) (reflect.Value, *rowSchema) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return rv, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return rv, nil
	}
	return rv, schemaOf(rv.Type())
}

// dbValue normalizes ledger types for the driver. Amounts are rounded to the
// stored scale and a zero UUID is written as NULL so NOT NULL references fail
// loudly instead of pointing nowhere.
func dbValue(f reflect.Value) any {
	switch v := f.Interface().(type) {
	case decimal.Decimal:
		return types.Round2(v)
	case *decimal.Decimal:
		if v == nil {
			return nil
		}
		return types.Round2(*v)
	case decimal.NullDecimal:
		if !v.Valid {
			return nil
		}
		return types.Round2(v.Decimal)
	case uuid.UUID:
		if v == uuid.Nil {
			return nil
		}
		return v
	default:
		return v
	}
}
