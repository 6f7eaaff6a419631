package tours

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

type ResetPasswordMessage struct {
	Token           string                             `json:"-"`
	Password        string                             `json:"password"`
	PasswordConfirm string                             `json:"passwordConfirm"`
	OnResponse      func(resp *PasswordChangeResponse) `json:"-"`
}

func (e ResetPasswordMessage) Type() string { return "user.password_reset" }

// Validate will run validation rules
func (e ResetPasswordMessage) Validate() *goerrors.Error {
	return validatePasswordPair(e.Password, e.PasswordConfirm, "Invalid password reset payload")
}

// PasswordChangeResponse carries the user and the token minted after a
// password reset or update
type PasswordChangeResponse struct {
	User  *User
	Token string
}

type ResetPasswordHandler struct {
	users    UserStore
	tokens   *ResetTokens
	auth     *Auther
	activity ActivitySink
	logger   Logger
}

// NewResetPasswordHandler creates a handler with sane defaults.
func NewResetPasswordHandler(users UserStore, tokens *ResetTokens, auth *Auther) *ResetPasswordHandler {
	return &ResetPasswordHandler{
		users:    users,
		tokens:   tokens,
		auth:     auth,
		activity: noopActivitySink{},
		logger:   defaultLogger("password_reset"),
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *ResetPasswordHandler) WithActivitySink(sink ActivitySink) *ResetPasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ResetPasswordHandler) WithLogger(logger Logger) *ResetPasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResetPasswordHandler) Execute(ctx context.Context, event ResetPasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResetPasswordHandler) execute(ctx context.Context, event ResetPasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.tokens.Consume(ctx, event.Token)
	if err != nil {
		return err
	}

	if verr := event.Validate(); verr != nil {
		return verr.WithCode(goerrors.CodeBadRequest)
	}

	hash, err := h.auth.PasswordHasher().HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user.SetPassword(hash, h.auth.Now())
	user.ClearPasswordReset()

	if user, err = h.users.Save(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store new password")
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		return err
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEventPasswordResetSuccess, user.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(&PasswordChangeResponse{User: user, Token: token})
	}

	return nil
}

func validatePasswordPair(password, confirm, message string) *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.Errors{
			"password":        validation.Validate(password, passwordRules()...),
			"passwordConfirm": validation.Validate(confirm, confirmRules(password)...),
		}.Filter()
	}, message)
}
