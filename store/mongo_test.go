package store_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-tours/resource"
	"github.com/goliatone/go-tours/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildMongoFilter(t *testing.T) {
	filters := []resource.Filter{
		{Field: "difficulty", Op: resource.OpEq, Value: "easy"},
		{Field: "duration", Op: resource.OpGte, Value: int64(5)},
		{Field: "duration", Op: resource.OpLt, Value: int64(10)},
		{Field: "id", Op: resource.OpIn, Value: []any{"a", "b"}},
	}

	assert.Equal(t, bson.M{
		"difficulty": "easy",
		"duration":   bson.M{"$gte": int64(5), "$lt": int64(10)},
		"_id":        bson.M{"$in": []any{"a", "b"}},
	}, store.BuildMongoFilter(filters))

	assert.Equal(t, bson.M{}, store.BuildMongoFilter(nil))
}

func TestBuildMongoFindOptions(t *testing.T) {
	q := resource.Query{
		Sort:   []resource.SortField{{Field: "ratingsAverage", Desc: true}, {Field: "price"}},
		Fields: []string{"name", "id"},
		Page:   3,
		Limit:  10,
	}

	opts := store.BuildMongoFindOptions(q)

	assert.Equal(t, bson.D{
		{Key: "ratingsAverage", Value: -1},
		{Key: "price", Value: 1},
	}, opts.Sort)
	assert.Equal(t, bson.M{"name": 1, "_id": 1}, opts.Projection)
	require.NotNil(t, opts.Limit)
	require.NotNil(t, opts.Skip)
	assert.Equal(t, int64(10), *opts.Limit)
	assert.Equal(t, int64(20), *opts.Skip)

	empty := store.BuildMongoFindOptions(resource.Query{})
	assert.Nil(t, empty.Sort)
	assert.Nil(t, empty.Projection)
	assert.Nil(t, empty.Limit)
}

func TestMongoCollection_RejectsMalformedIDs(t *testing.T) {
	ctx := context.Background()
	c := store.NewMongoCollection(nil, gearHandlers())

	_, err := c.Get(ctx, "wrong-id")
	_, ok := resource.AsCastError(err)
	assert.True(t, ok)

	_, err = c.Update(ctx, "wrong-id", &gear{})
	_, ok = resource.AsCastError(err)
	assert.True(t, ok)

	_, ok = resource.AsCastError(c.Delete(ctx, "wrong-id"))
	assert.True(t, ok)

	assert.IsType(t, &gear{}, c.New())
}

func TestMongoCollection_Populate(t *testing.T) {
	ctx := context.Background()
	calls := []string{}
	record := func(name string) store.MongoOption[*gear] {
		return store.WithMongoPopulator[*gear](name, func(_ context.Context, g *gear) error {
			calls = append(calls, name)
			g.Name += "+" + name
			return nil
		})
	}

	c := store.NewMongoCollection(nil, gearHandlers(), record("Parts.Maker"), record("Parts"))

	g := &gear{Name: "tent"}
	require.NoError(t, c.Populate(ctx, g, "Parts.Maker", "Parts", "Parts"))
	assert.Equal(t, []string{"Parts", "Parts.Maker"}, calls, "parents run first, once")
	assert.Equal(t, "tent+Parts+Parts.Maker", g.Name)

	require.NoError(t, c.Populate(ctx, g))
	assert.Len(t, calls, 2)
}

func TestMongoCollection_UnknownRelation(t *testing.T) {
	ctx := context.Background()
	c := store.NewMongoCollection(nil, gearHandlers())

	// rejected before the collection is read
	_, err := c.Get(ctx, uuid.NewString(), "Reviews")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown relation "Reviews"`)

	assert.Error(t, c.Populate(ctx, &gear{}, "Reviews"))
}

func TestMongoCollection_PopulateError(t *testing.T) {
	c := store.NewMongoCollection(nil, gearHandlers(),
		store.WithMongoPopulator[*gear]("Parts", func(context.Context, *gear) error { return assert.AnError }),
	)

	err := c.Populate(context.Background(), &gear{}, "Parts")
	assert.ErrorIs(t, err, assert.AnError)
}
