package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tours/resource"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// BunCollection implements resource.Collection over a SQL table
type BunCollection[T any] struct {
	db       *bun.DB
	repo     repository.Repository[T]
	handlers repository.ModelHandlers[T]
	table    *schema.Table
	columns  map[string]string
	scope    []repository.SelectCriteria
}

// BunOption configures a BunCollection
type BunOption[T any] func(*BunCollection[T])

// WithSelectScope applies criteria to every read, e.g. hiding soft deleted rows
func WithSelectScope[T any](criteria ...repository.SelectCriteria) BunOption[T] {
	return func(c *BunCollection[T]) {
		c.scope = append(c.scope, criteria...)
	}
}

// NewBunCollection creates a collection for the model produced by handlers.NewRecord
func NewBunCollection[T any](db *bun.DB, handlers repository.ModelHandlers[T], opts ...BunOption[T]) *BunCollection[T] {
	c := &BunCollection[T]{
		db:       db,
		repo:     repository.NewRepository[T](db, handlers),
		handlers: handlers,
	}

	c.table = db.Table(reflect.TypeOf(handlers.NewRecord()).Elem())
	c.columns = columnsByJSONName(c.table)

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// New returns an empty record
func (c *BunCollection[T]) New() T {
	return c.handlers.NewRecord()
}

// List runs q against the table returning the page and the total count
func (c *BunCollection[T]) List(ctx context.Context, q resource.Query) ([]T, int, error) {
	var records []T

	sel := c.db.NewSelect().Model(&records)
	for _, s := range c.scope {
		sel = sel.Apply(s)
	}

	for _, f := range q.Filters {
		col, ok := c.columns[f.Field]
		if !ok {
			continue
		}
		sel = applyFilter(sel, col, f)
	}

	if cols := c.projection(q.Fields); len(cols) > 0 {
		sel = sel.Column(cols...)
	}

	for _, s := range q.Sort {
		col, ok := c.columns[s.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		sel = sel.OrderExpr(fmt.Sprintf("?TableAlias.? %s", dir), bun.Ident(col))
	}

	if q.Limit > 0 {
		sel = sel.Limit(q.Limit).Offset(q.Offset())
	}

	total, err := sel.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CategoryInternal, "failed to list records").
			WithMetadata(map[string]any{"table": c.table.Name})
	}

	return records, total, nil
}

// Get returns the record with id, loading the named relations
func (c *BunCollection[T]) Get(ctx context.Context, id string, populate ...string) (T, error) {
	var zero T

	if _, err := uuid.Parse(id); err != nil {
		return zero, resource.NewCastError("id", id)
	}

	criteria := append([]repository.SelectCriteria{}, c.scope...)
	for _, rel := range populate {
		name := rel
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Relation(name)
		})
	}

	record, err := c.repo.GetByID(ctx, id, criteria...)
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return zero, resource.NewNotFoundError(id)
		}
		return zero, errors.Wrap(err, errors.CategoryInternal, "failed to get record").
			WithMetadata(map[string]any{"table": c.table.Name, "id": id})
	}

	return record, nil
}

// Create inserts record, assigning an id when missing
func (c *BunCollection[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T

	if c.handlers.GetID(record) == uuid.Nil {
		c.handlers.SetID(record, uuid.New())
	}

	created, err := c.repo.Create(ctx, record)
	if err != nil {
		return zero, TranslateError(err, c.table, record)
	}

	return created, nil
}

// Update writes record under id
func (c *BunCollection[T]) Update(ctx context.Context, id string, record T) (T, error) {
	var zero T

	uid, err := uuid.Parse(id)
	if err != nil {
		return zero, resource.NewCastError("id", id)
	}
	c.handlers.SetID(record, uid)

	updated, err := c.repo.Update(ctx, record, repository.UpdateByID(id))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return zero, resource.NewNotFoundError(id)
		}
		return zero, TranslateError(err, c.table, record)
	}

	return updated, nil
}

// Delete removes the record with id
func (c *BunCollection[T]) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return resource.NewCastError("id", id)
	}

	res, err := c.db.NewDelete().
		Model(c.handlers.NewRecord()).
		Where("id = ?", uid).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete record").
			WithMetadata(map[string]any{"table": c.table.Name, "id": id})
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return resource.NewNotFoundError(id)
	}

	return nil
}

func (c *BunCollection[T]) projection(fields []string) []string {
	if len(fields) == 0 {
		return nil
	}

	cols := []string{"id"}
	for _, f := range fields {
		if col, ok := c.columns[f]; ok && col != "id" {
			cols = append(cols, col)
		}
	}
	return cols
}

func applyFilter(sel *bun.SelectQuery, col string, f resource.Filter) *bun.SelectQuery {
	ident := bun.Ident(col)
	switch f.Op {
	case resource.OpGt:
		return sel.Where("?TableAlias.? > ?", ident, f.Value)
	case resource.OpGte:
		return sel.Where("?TableAlias.? >= ?", ident, f.Value)
	case resource.OpLt:
		return sel.Where("?TableAlias.? < ?", ident, f.Value)
	case resource.OpLte:
		return sel.Where("?TableAlias.? <= ?", ident, f.Value)
	case resource.OpIn:
		return sel.Where("?TableAlias.? IN (?)", ident, bun.In(f.Value))
	default:
		return sel.Where("?TableAlias.? = ?", ident, f.Value)
	}
}

// columnsByJSONName maps the JSON name of every column to its SQL name
func columnsByJSONName(table *schema.Table) map[string]string {
	out := make(map[string]string, len(table.Fields))
	for _, f := range table.Fields {
		name := strings.SplitN(f.StructField.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = f.Name
	}
	return out
}
