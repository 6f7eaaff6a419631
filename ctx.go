package tours

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// UserLocalsKey holds the current user in the request locals, where
// rendered pages pick it up
const UserLocalsKey = "user"

// SetCurrentUser stores user in the request locals and threads it
// through the request context
func SetCurrentUser(c router.Context, user *User) {
	c.Locals(UserLocalsKey, user)
	c.SetContext(WithContext(c.Context(), user))
}

// CurrentUser returns the identity resolved by Protect or OptionalIdentity
func CurrentUser(c router.Context) (*User, bool) {
	if user, ok := c.Locals(UserLocalsKey).(*User); ok && user != nil {
		return user, true
	}
	return FromContext(c.Context())
}
