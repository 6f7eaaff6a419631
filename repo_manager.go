package tours

import (
	"context"
	"database/sql"
	"errors"
	"log"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tours/resource"
	"github.com/goliatone/go-tours/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	UserCollection() resource.Collection[*User]
	Tours() resource.Collection[*Tour]
	Reviews() resource.Collection[*Review]
	MustValidate()
	Purge(ctx context.Context) error
}

// TourHandlers are the model handlers for tours
func TourHandlers() repository.ModelHandlers[*Tour] {
	return repository.ModelHandlers[*Tour]{
		NewRecord: func() *Tour { return &Tour{} },
		GetID: func(t *Tour) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Tour, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "slug"
		},
	}
}

// ReviewHandlers are the model handlers for reviews
func ReviewHandlers() repository.ModelHandlers[*Review] {
	return repository.ModelHandlers[*Review]{
		NewRecord: func() *Review { return &Review{} },
		GetID: func(r *Review) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Review, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	}
}

// PublicTours hides secret tours from a select
func PublicTours(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.secret_tour = ?", false)
}

type mngr struct {
	db             *bun.DB
	docs           *mongo.Database
	users          Users
	userCollection resource.Collection[*User]
	tours          resource.Collection[*Tour]
	reviews        resource.Collection[*Review]
}

// ManagerOption configures the repository manager
type ManagerOption func(*mngr)

// WithDocumentStore keeps tours and reviews in a MongoDB database
func WithDocumentStore(docs *mongo.Database) ManagerOption {
	return func(m *mngr) {
		m.docs = docs
	}
}

// NewRepositoryManager wires the repositories. Users always live in db.
func NewRepositoryManager(db *bun.DB, opts ...ManagerOption) RepositoryManager {
	m := &mngr{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	m.users = NewUsersRepository(db)
	m.userCollection = store.NewBunCollection(db, UserHandlers(),
		store.WithSelectScope[*User](ActiveUsers),
	)

	if m.docs != nil {
		m.reviews = store.NewMongoCollection(m.docs.Collection("reviews"), ReviewHandlers())

		tourOpts := append([]store.MongoOption[*Tour]{
			store.WithMongoScope[*Tour](bson.M{"secretTour": bson.M{"$ne": true}}),
		}, TourPopulators(m.reviews, m.users)...)
		m.tours = store.NewMongoCollection(m.docs.Collection("tours"), TourHandlers(), tourOpts...)
	} else {
		m.tours = store.NewBunCollection(db, TourHandlers(),
			store.WithSelectScope[*Tour](PublicTours),
		)
		m.reviews = store.NewBunCollection(db, ReviewHandlers())
	}

	return m
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.tours == nil {
		return errors.New("repository tours should be initialized")
	}

	if m.reviews == nil {
		return errors.New("repository reviews should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) UserCollection() resource.Collection[*User] {
	return m.userCollection
}

func (m mngr) Tours() resource.Collection[*Tour] {
	return m.tours
}

func (m mngr) Reviews() resource.Collection[*Review] {
	return m.reviews
}

// Purge deletes every review, tour and user
func (m mngr) Purge(ctx context.Context) error {
	if m.docs != nil {
		for _, name := range []string{"reviews", "tours"} {
			if _, err := m.docs.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
				return err
			}
		}
	}

	models := []any{(*Review)(nil), (*Tour)(nil), (*User)(nil)}
	for _, model := range models {
		if _, err := m.db.NewDelete().Model(model).Where("1 = 1").Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// CreateSchema creates the SQL tables when missing
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*Tour)(nil),
		(*Review)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

// EnsureIndexes creates the unique indexes the document store relies on
// to report duplicates
func EnsureIndexes(ctx context.Context, docs *mongo.Database) error {
	if _, err := docs.Collection("tours").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	_, err := docs.Collection("reviews").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
