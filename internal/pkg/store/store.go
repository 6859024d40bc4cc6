package store

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// DTO is the write-side shape of a row. ToModel attaches the id assigned
// by the database and returns the full model.
type DTO interface {
	ToModel(id int) any
}

// Hooks for database operations. Hooks run inside the same transaction as
// the operation that triggered them.
type Hooks struct {
	PreSave    []func(ctx context.Context, tx *sqlx.Tx, data DTO, isNew bool) error
	PostSave   []func(ctx context.Context, tx *sqlx.Tx, data DTO, model any, isNew bool) error
	PreDelete  []func(ctx context.Context, tx *sqlx.Tx, id int) error
	PostDelete []func(ctx context.Context, tx *sqlx.Tx, id int) error
}

type Datastorer[T any] interface {
	Create(ctx context.Context, data DTO) (any, error)
	Update(ctx context.Context, id int, data DTO) (any, error)

	// UpdateColumns writes exactly the given columns, zero values
	// included. WARN: does not run hooks.
	UpdateColumns(ctx context.Context, id int, columns map[string]any) (any, error)

	Delete(ctx context.Context, id int) error
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)

	// WARN: DeleteWhere does not yet support hooks execution.
	DeleteWhere(ctx context.Context, column string, value any) error

	// Set hooks.
	SetHooks(hooks Hooks)

	// useful for complex operations the store interface does not support.
	Base() *sqlx.DB
}

func getStructFieldNamesFromInstance(instance any) []string {
	typ := reflect.TypeOf(instance)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}

	var fields []string

	for i := 0; i < typ.NumField(); i++ {
		dbTag := typ.Field(i).Tag.Get("db")
		if dbTag != "" && dbTag != "-" {
			fields = append(fields, dbTag)
		}
	}

	return fields
}

// getStructFieldsFromDTO extracts column names and named placeholders from
// the db tags of a DTO struct.
func getStructFieldsFromDTO(dto DTO) (columns string, placeholders string) {
	t := reflect.TypeOf(dto)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	var columnNames []string
	var placeholderNames []string

	for i := 0; i < t.NumField(); i++ {
		dbTag := t.Field(i).Tag.Get("db")
		if dbTag == "" || dbTag == "-" {
			continue
		}

		columnNames = append(columnNames, dbTag)
		placeholderNames = append(placeholderNames, ":"+dbTag)
	}

	return strings.Join(columnNames, ", "), strings.Join(placeholderNames, ", ")
}

// setClauseFromColumns builds a SET clause from explicit column values,
// keeping zero values, and fills params with the named arguments. Columns
// are ordered by name so the generated SQL is stable.
func setClauseFromColumns(columns map[string]any, params map[string]any) string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]string, 0, len(names))
	for _, name := range names {
		fields = append(fields, name+" = :"+name)
		params[name] = columns[name]
	}

	return strings.Join(fields, ", ")
}

// getNonEmptyFieldsFromDTO builds a SET clause from the DTO fields that
// carry a value, filling params with the named arguments.
func getNonEmptyFieldsFromDTO(dto DTO, params map[string]any) string {
	v := reflect.ValueOf(dto)
	t := reflect.TypeOf(dto)

	if v.Kind() == reflect.Ptr {
		v = v.Elem()
		t = t.Elem()
	}

	var fields []string

	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)

		columnName := field.Tag.Get("db")
		if columnName == "-" {
			continue
		}
		if columnName == "" {
			columnName = strings.ToLower(field.Name)
		}

		// Skip unset fields so partial updates leave other columns alone
		if value.IsZero() {
			continue
		}

		fields = append(fields, columnName+" = :"+columnName)
		params[columnName] = value.Interface()
	}

	return strings.Join(fields, ", ")
}
