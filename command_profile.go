package tours

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/resource"
)

// UpdateProfileMessage carries the fields a user may change on their own
// account. Password fields are only present to reject them.
type UpdateProfileMessage struct {
	UserID          string           `json:"-"`
	Name            *string          `json:"name"`
	Email           *string          `json:"email"`
	Password        string           `json:"password"`
	PasswordConfirm string           `json:"passwordConfirm"`
	OnResponse      func(user *User) `json:"-"`
}

func (e UpdateProfileMessage) Type() string { return "user.profile_update" }

type UpdateProfileHandler struct {
	users     UserStore
	validator *resource.Validator
}

// NewUpdateProfileHandler creates a handler validating with the record rules
func NewUpdateProfileHandler(users UserStore) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		users:     users,
		validator: resource.NewValidator(),
	}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Password != "" || event.PasswordConfirm != "" {
		return NewAppError(MsgNotPasswordRoute, goerrors.CodeBadRequest)
	}

	user, err := h.users.FindByID(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return NewAppError(MsgUserNoLongerExists, goerrors.CodeUnauthorized)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for profile update")
	}

	if event.Name != nil {
		user.Name = *event.Name
	}
	if event.Email != nil {
		user.Email = normalizeEmail(*event.Email)
	}

	if err := h.validator.Validate(user); err != nil {
		return err
	}

	if user, err = h.users.Save(ctx, user); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

type DeactivateAccountMessage struct {
	UserID string
}

func (e DeactivateAccountMessage) Type() string { return "user.deactivate" }

// DeactivateAccountHandler soft deletes an account. Inactive users cannot
// sign in and are hidden from listings.
type DeactivateAccountHandler struct {
	users    UserStore
	activity ActivitySink
	logger   Logger
}

func NewDeactivateAccountHandler(users UserStore) *DeactivateAccountHandler {
	return &DeactivateAccountHandler{
		users:    users,
		activity: noopActivitySink{},
		logger:   defaultLogger("deactivate"),
	}
}

// WithActivitySink sets the sink used to emit account events.
func (h *DeactivateAccountHandler) WithActivitySink(sink ActivitySink) *DeactivateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DeactivateAccountHandler) Execute(ctx context.Context, event DeactivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deactivation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeactivateAccountHandler) execute(ctx context.Context, event DeactivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.FindByID(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return NewAppError(MsgUserNoLongerExists, goerrors.CodeUnauthorized)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for deactivation")
	}

	user.Active = false
	if _, err := h.users.Save(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to deactivate user")
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEventAccountDeactivated, user.ID.String(), nil)

	return nil
}
