package store

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/resource"
	"github.com/uptrace/bun/schema"
)

var (
	sqliteUnique   = regexp.MustCompile(`UNIQUE constraint failed: ([\w.]+(?:, [\w.]+)*)`)
	postgresUnique = regexp.MustCompile(`Key \(([^)]+)\)=\(([^)]*)\) already exists`)
)

// TranslateError converts driver failures on record into rich errors,
// unique violations become duplicate key errors
func TranslateError(err error, table *schema.Table, record any) error {
	if err == nil {
		return nil
	}

	if field, value, ok := duplicateFromSQL(err, table, record); ok {
		return resource.NewDuplicateKeyError(err, field, value)
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}

	return errors.Wrap(err, errors.CategoryInternal, "database write failed")
}

func duplicateFromSQL(err error, table *schema.Table, record any) (string, any, bool) {
	msg := err.Error()

	if m := postgresUnique.FindStringSubmatch(msg); m != nil {
		return jsonName(table, firstColumn(m[1])), m[2], true
	}

	m := sqliteUnique.FindStringSubmatch(msg)
	if m == nil {
		if strings.Contains(msg, "duplicate key value") {
			return "", nil, true
		}
		return "", nil, false
	}

	column := firstColumn(m[1])
	if i := strings.LastIndex(column, "."); i >= 0 {
		column = column[i+1:]
	}

	return jsonName(table, column), columnValue(table, record, column), true
}

func firstColumn(list string) string {
	return strings.TrimSpace(strings.SplitN(list, ",", 2)[0])
}

func jsonName(table *schema.Table, column string) string {
	if table == nil {
		return column
	}
	f, ok := table.FieldMap[column]
	if !ok {
		return column
	}
	name := strings.SplitN(f.StructField.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return column
	}
	return name
}

func columnValue(table *schema.Table, record any, column string) any {
	if table == nil || record == nil {
		return nil
	}
	f, ok := table.FieldMap[column]
	if !ok {
		return nil
	}
	v := reflect.ValueOf(record)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct || v.Type() != table.Type {
		return nil
	}
	return f.Value(v).Interface()
}
