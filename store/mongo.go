package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tours/resource"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection implements resource.Collection over a MongoDB collection.
// Field names in queries are the document keys; "id" maps to "_id".
type MongoCollection[T any] struct {
	coll       *mongo.Collection
	handlers   repository.ModelHandlers[T]
	scope      bson.M
	populators map[string]MongoPopulator[T]
}

// MongoPopulator loads a relation into record. Documents carry only
// references, so relations are resolved with extra reads.
type MongoPopulator[T any] func(ctx context.Context, record T) error

// MongoOption configures a MongoCollection
type MongoOption[T any] func(*MongoCollection[T])

// WithMongoScope merges filter into every read
func WithMongoScope[T any](filter bson.M) MongoOption[T] {
	return func(c *MongoCollection[T]) {
		c.scope = filter
	}
}

// WithMongoPopulator registers fn as the loader for relation. Nested
// relations use dotted names, "Reviews.Author", and run after their parent.
func WithMongoPopulator[T any](relation string, fn MongoPopulator[T]) MongoOption[T] {
	return func(c *MongoCollection[T]) {
		if c.populators == nil {
			c.populators = map[string]MongoPopulator[T]{}
		}
		c.populators[relation] = fn
	}
}

// NewMongoCollection wraps coll
func NewMongoCollection[T any](coll *mongo.Collection, handlers repository.ModelHandlers[T], opts ...MongoOption[T]) *MongoCollection[T] {
	c := &MongoCollection[T]{
		coll:     coll,
		handlers: handlers,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New returns an empty record
func (c *MongoCollection[T]) New() T {
	return c.handlers.NewRecord()
}

// List runs q returning the page and the total number of matches
func (c *MongoCollection[T]) List(ctx context.Context, q resource.Query) ([]T, int, error) {
	filter := c.withScope(BuildMongoFilter(q.Filters))

	cursor, err := c.coll.Find(ctx, filter, BuildMongoFindOptions(q))
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CategoryInternal, "failed to list documents")
	}
	defer cursor.Close(ctx)

	records := []T{}
	for cursor.Next(ctx) {
		record := c.handlers.NewRecord()
		if err := cursor.Decode(record); err != nil {
			return nil, 0, errors.Wrap(err, errors.CategoryInternal, "failed to decode document")
		}
		records = append(records, record)
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CategoryInternal, "failed to iterate documents")
	}

	total, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CategoryInternal, "failed to count documents")
	}

	return records, int(total), nil
}

// Get returns the document with id, loading the named relations through
// the registered populators
func (c *MongoCollection[T]) Get(ctx context.Context, id string, populate ...string) (T, error) {
	var zero T

	uid, err := uuid.Parse(id)
	if err != nil {
		return zero, resource.NewCastError("id", id)
	}

	relations, err := c.relations(populate)
	if err != nil {
		return zero, err
	}

	record := c.handlers.NewRecord()
	err = c.coll.FindOne(ctx, c.withScope(bson.M{"_id": uid})).Decode(record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, resource.NewNotFoundError(id)
		}
		return zero, errors.Wrap(err, errors.CategoryInternal, "failed to get document")
	}

	if err := c.populate(ctx, record, relations); err != nil {
		return zero, err
	}

	return record, nil
}

// Populate loads the named relations into a record read elsewhere
func (c *MongoCollection[T]) Populate(ctx context.Context, record T, relations ...string) error {
	names, err := c.relations(relations)
	if err != nil {
		return err
	}
	return c.populate(ctx, record, names)
}

func (c *MongoCollection[T]) populate(ctx context.Context, record T, names []string) error {
	for _, name := range names {
		if err := c.populators[name](ctx, record); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to populate "+name)
		}
	}
	return nil
}

// relations checks every name has a populator and orders parents first
func (c *MongoCollection[T]) relations(populate []string) ([]string, error) {
	if len(populate) == 0 {
		return nil, nil
	}

	out := make([]string, 0, len(populate))
	seen := map[string]bool{}
	for _, name := range populate {
		if seen[name] {
			continue
		}
		if _, ok := c.populators[name]; !ok {
			return nil, errors.New(fmt.Sprintf("unknown relation %q", name), errors.CategoryInternal).
				WithTextCode("UNKNOWN_RELATION")
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)

	return out, nil
}

// Create inserts record, assigning an id when missing
func (c *MongoCollection[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T

	if c.handlers.GetID(record) == uuid.Nil {
		c.handlers.SetID(record, uuid.New())
	}

	if _, err := c.coll.InsertOne(ctx, record); err != nil {
		return zero, translateMongoError(err)
	}

	return record, nil
}

// Update replaces the document stored under id
func (c *MongoCollection[T]) Update(ctx context.Context, id string, record T) (T, error) {
	var zero T

	uid, err := uuid.Parse(id)
	if err != nil {
		return zero, resource.NewCastError("id", id)
	}
	c.handlers.SetID(record, uid)

	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": uid}, record)
	if err != nil {
		return zero, translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return zero, resource.NewNotFoundError(id)
	}

	return record, nil
}

// Delete removes the document stored under id
func (c *MongoCollection[T]) Delete(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return resource.NewCastError("id", id)
	}

	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete document")
	}
	if res.DeletedCount == 0 {
		return resource.NewNotFoundError(id)
	}

	return nil
}

func (c *MongoCollection[T]) withScope(filter bson.M) bson.M {
	if len(c.scope) == 0 {
		return filter
	}
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	for k, v := range c.scope {
		out[k] = v
	}
	return out
}

// BuildMongoFilter translates query filters into a bson filter document
func BuildMongoFilter(filters []resource.Filter) bson.M {
	out := bson.M{}
	for _, f := range filters {
		key := mongoKey(f.Field)
		switch f.Op {
		case resource.OpEq:
			out[key] = f.Value
		case resource.OpIn:
			out[key] = bson.M{"$in": f.Value}
		default:
			cond, ok := out[key].(bson.M)
			if !ok {
				cond = bson.M{}
			}
			cond["$"+string(f.Op)] = f.Value
			out[key] = cond
		}
	}
	return out
}

// BuildMongoFindOptions translates sort, projection and pagination
func BuildMongoFindOptions(q resource.Query) *options.FindOptions {
	opts := options.Find()

	if len(q.Sort) > 0 {
		sort := bson.D{}
		for _, s := range q.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: mongoKey(s.Field), Value: dir})
		}
		opts.SetSort(sort)
	}

	if len(q.Fields) > 0 {
		projection := bson.M{}
		for _, f := range q.Fields {
			projection[mongoKey(f)] = 1
		}
		opts.SetProjection(projection)
	}

	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit)).SetSkip(int64(q.Offset()))
	}

	return opts
}

func mongoKey(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

var mongoDupKey = regexp.MustCompile(`dup key: \{ ?([\w.]+): "?([^"}]*?)"? ?\}`)

func translateMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		field, value := "", ""
		if m := mongoDupKey.FindStringSubmatch(err.Error()); m != nil {
			field, value = m[1], strings.TrimSpace(m[2])
		}
		return resource.NewDuplicateKeyError(err, field, value)
	}
	return errors.Wrap(err, errors.CategoryInternal, "document write failed")
}
