package tours

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type UpdatePasswordMessage struct {
	UserID          string                             `json:"-"`
	PasswordCurrent string                             `json:"passwordCurrent"`
	Password        string                             `json:"password"`
	PasswordConfirm string                             `json:"passwordConfirm"`
	OnResponse      func(resp *PasswordChangeResponse) `json:"-"`
}

func (e UpdatePasswordMessage) Type() string { return "user.password_update" }

// Validate will run validation rules
func (e UpdatePasswordMessage) Validate() *goerrors.Error {
	return validatePasswordPair(e.Password, e.PasswordConfirm, "Invalid password update payload")
}

// UpdatePasswordHandler changes the password of a signed in user. The
// change stamps passwordChangedAt, so tokens minted before it stop
// working and the caller receives a fresh one.
type UpdatePasswordHandler struct {
	users    UserStore
	auth     *Auther
	activity ActivitySink
	logger   Logger
}

// NewUpdatePasswordHandler creates a handler with sane defaults.
func NewUpdatePasswordHandler(users UserStore, auth *Auther) *UpdatePasswordHandler {
	return &UpdatePasswordHandler{
		users:    users,
		auth:     auth,
		activity: noopActivitySink{},
		logger:   defaultLogger("password_update"),
	}
}

// WithActivitySink sets the sink used to emit password events.
func (h *UpdatePasswordHandler) WithActivitySink(sink ActivitySink) *UpdatePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdatePasswordHandler) WithLogger(logger Logger) *UpdatePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.users.FindByID(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return NewAppError(MsgUserNoLongerExists, goerrors.CodeUnauthorized).
				WithTextCode(TextCodeUnauthorized)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password update")
	}

	if event.PasswordCurrent == "" {
		return h.wrongCurrent()
	}

	if err := h.auth.PasswordHasher().ComparePasswordAndHash(event.PasswordCurrent, user.PasswordHash); err != nil {
		return h.wrongCurrent()
	}

	if verr := event.Validate(); verr != nil {
		return verr.WithCode(goerrors.CodeBadRequest)
	}

	hash, err := h.auth.PasswordHasher().HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user.SetPassword(hash, h.auth.Now())

	if user, err = h.users.Save(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		return err
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEventPasswordUpdated, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(&PasswordChangeResponse{User: user, Token: token})
	}

	return nil
}

func (h *UpdatePasswordHandler) wrongCurrent() error {
	return NewAppError(MsgWrongCurrentPassword, goerrors.CodeUnauthorized).
		WithTextCode(TextCodeInvalidCredentials)
}
