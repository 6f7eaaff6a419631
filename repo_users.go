package tours

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tours/store"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Users is the SQL backed users repository
type Users interface {
	repository.Repository[*User]
	UserStore
}

type users struct {
	repository.Repository[*User]
	db    *bun.DB
	table *schema.Table
	now   func() time.Time
}

var (
	_ Users     = (*users)(nil)
	_ UserStore = (*users)(nil)
)

// UserHandlers are the model handlers shared by every users collection
func UserHandlers() repository.ModelHandlers[*User] {
	return repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
}

// ActiveUsers hides deactivated accounts from a select
func ActiveUsers(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.active = ?", true)
}

// NewUsersRepository creates the users repository over db
func NewUsersRepository(db *bun.DB) Users {
	return &users{
		Repository: repository.NewRepository[*User](db, UserHandlers()),
		db:         db,
		table:      db.Table(reflect.TypeOf(User{})),
		now:        time.Now,
	}
}

func (a *users) FindByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.New("user not found", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithMetadata(map[string]any{"id": id})
	}
	return a.findOne(ctx, "id", id)
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.findOne(ctx, "email", normalizeEmail(email))
}

func (a *users) FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Apply(ActiveUsers).
		Where("?TableAlias.password_reset_token = ?", hashedToken).
		Where("?TableAlias.password_reset_expires > ?", now).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.notFound(err, map[string]any{"reset_token": true})
	}
	return record, nil
}

// Register creates a new active account with the default role
func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	prepareUserDefaults(user)
	created, err := a.Repository.Create(ctx, user)
	if err != nil {
		return nil, store.TranslateError(err, a.table, user)
	}
	return created, nil
}

// Save writes every column of user, including cleared ones
func (a *users) Save(ctx context.Context, user *User) (*User, error) {
	now := a.now()
	user.UpdatedAt = &now

	res, err := a.db.NewUpdate().
		Model(user).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, store.TranslateError(err, a.table, user)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, errors.New("user not found", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return user, nil
}

func (a *users) findOne(ctx context.Context, column, value string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Apply(ActiveUsers).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, a.notFound(err, map[string]any{column: value})
	}
	return record, nil
}

func (a *users) notFound(err error, meta map[string]any) error {
	if repository.IsRecordNotFound(err) {
		return errors.New("user not found", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithMetadata(meta)
	}
	return errors.Wrap(err, errors.CategoryInternal, "failed to query users").
		WithMetadata(meta)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = normalizeEmail(record.Email)
	record.Active = true

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
