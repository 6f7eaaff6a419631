package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Collection is the persisted collection capability the handlers need
type Collection[T any] interface {
	New() T
	List(ctx context.Context, q Query) ([]T, int, error)
	Get(ctx context.Context, id string, populate ...string) (T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, id string, record T) (T, error)
	Delete(ctx context.Context, id string) error
}

// Normalizer is implemented by records that derive fields before validation
type Normalizer interface {
	Normalize()
}

// Handlers exposes CRUD routes over a Collection
type Handlers[T any] struct {
	collection   Collection[T]
	validator    *Validator
	queryOptions QueryOptions
	populate     []string
	idParam      string
	scope        func(c router.Context, q *Query)
	beforeCreate func(c router.Context, record T) error
}

// Option configures Handlers
type Option[T any] func(*Handlers[T])

// WithPopulate loads the named relations on GetOne
func WithPopulate[T any](relations ...string) Option[T] {
	return func(h *Handlers[T]) {
		h.populate = append(h.populate, relations...)
	}
}

// WithQueryOptions overrides list query parsing defaults
func WithQueryOptions[T any](opts QueryOptions) Option[T] {
	return func(h *Handlers[T]) {
		h.queryOptions = opts
	}
}

// WithScope narrows every list query, e.g. from a nested route parameter
func WithScope[T any](fn func(c router.Context, q *Query)) Option[T] {
	return func(h *Handlers[T]) {
		h.scope = fn
	}
}

// WithBeforeCreate runs fn on the decoded record before it is validated
func WithBeforeCreate[T any](fn func(c router.Context, record T) error) Option[T] {
	return func(h *Handlers[T]) {
		h.beforeCreate = fn
	}
}

// WithValidator replaces the record validator
func WithValidator[T any](v *Validator) Option[T] {
	return func(h *Handlers[T]) {
		if v != nil {
			h.validator = v
		}
	}
}

// WithIDParam sets the route parameter holding the record id
func WithIDParam[T any](name string) Option[T] {
	return func(h *Handlers[T]) {
		if name != "" {
			h.idParam = name
		}
	}
}

// New creates the CRUD handlers for collection
func New[T any](collection Collection[T], opts ...Option[T]) *Handlers[T] {
	if collection == nil {
		panic("resource: collection is required")
	}

	h := &Handlers[T]{
		collection:   collection,
		validator:    NewValidator(),
		queryOptions: DefaultQueryOptions,
		idParam:      "id",
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// GetAll lists records applying filter, sort, projection and pagination
func (h *Handlers[T]) GetAll(c router.Context) error {
	return h.list(c, QueryValues(c))
}

// GetAllWithPreset lists records with preset forced over the request
// query, e.g. a named alias route
func (h *Handlers[T]) GetAllWithPreset(preset map[string]string) router.HandlerFunc {
	return func(c router.Context) error {
		values := QueryValues(c)
		for k, v := range preset {
			values.Set(k, v)
		}
		return h.list(c, values)
	}
}

func (h *Handlers[T]) list(c router.Context, values url.Values) error {
	q := ParseQuery(values, h.queryOptions)
	if h.scope != nil {
		h.scope(c, &q)
	}

	records, total, err := h.collection.List(c.Context(), q)
	if err != nil {
		return err
	}

	if records == nil {
		records = []T{}
	}

	return c.JSON(router.StatusOK, map[string]any{
		"status":  "success",
		"results": len(records),
		"total":   total,
		"data":    map[string]any{"data": records},
	})
}

// GetOne returns the record named by the id route parameter
func (h *Handlers[T]) GetOne(c router.Context) error {
	return h.GetOneByID(c, c.Param(h.idParam))
}

// GetOneByID returns the record with the given id
func (h *Handlers[T]) GetOneByID(c router.Context, id string) error {
	record, err := h.collection.Get(c.Context(), id, h.populate...)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"data": record},
	})
}

// CreateOne decodes, validates and inserts a record
func (h *Handlers[T]) CreateOne(c router.Context) error {
	record := h.collection.New()
	if err := decodeBody(c.Body(), record); err != nil {
		return err
	}

	if h.beforeCreate != nil {
		if err := h.beforeCreate(c, record); err != nil {
			return err
		}
	}

	if err := h.prepare(record); err != nil {
		return err
	}

	created, err := h.collection.Create(c.Context(), record)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"status": "success",
		"data":   map[string]any{"data": created},
	})
}

// UpdateOne applies a partial update to the record named by the id parameter
func (h *Handlers[T]) UpdateOne(c router.Context) error {
	id := c.Param(h.idParam)
	ctx := c.Context()

	record, err := h.collection.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := decodeBody(c.Body(), record); err != nil {
		return err
	}

	if err := h.prepare(record); err != nil {
		return err
	}

	updated, err := h.collection.Update(ctx, id, record)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"data": updated},
	})
}

// DeleteOne removes the record named by the id parameter
func (h *Handlers[T]) DeleteOne(c router.Context) error {
	if err := h.collection.Delete(c.Context(), c.Param(h.idParam)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handlers[T]) prepare(record T) error {
	if n, ok := any(record).(Normalizer); ok {
		n.Normalize()
	}
	return h.validator.Validate(record)
}

func decodeBody(body []byte, dst any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "request body is not valid JSON for this resource").
			WithCode(errors.CodeBadRequest)
	}
	return nil
}
