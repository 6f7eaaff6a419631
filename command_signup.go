package tours

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// MinPasswordLength is the shortest password accepted on signup or change
const MinPasswordLength = 8

type SignupMessage struct {
	Name            string                     `json:"name"`
	Email           string                     `json:"email"`
	Photo           string                     `json:"photo"`
	Password        string                     `json:"password"`
	PasswordConfirm string                     `json:"passwordConfirm"`
	OnResponse      func(resp *SignupResponse) `json:"-"`
}

func (e SignupMessage) Type() string { return "user.signup" }

// Validate will run validation rules
func (e SignupMessage) Validate() *goerrors.Error {
	return goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&e,
			validation.Field(&e.Name,
				validation.Required.Error("Please tell us your name!"),
				validation.Length(0, 100),
			),
			validation.Field(&e.Email,
				validation.Required.Error("Please provide your email"),
				is.EmailFormat.Error("Please provide a valid email"),
			),
			validation.Field(&e.Password, passwordRules()...),
			validation.Field(&e.PasswordConfirm, confirmRules(e.Password)...),
		)
	}, "Invalid signup payload")
}

type SignupResponse struct {
	User  *User
	Token string
}

type SignupHandler struct {
	users    UserStore
	auth     *Auther
	activity ActivitySink
	logger   Logger
}

// NewSignupHandler creates a handler with sane defaults.
func NewSignupHandler(users UserStore, auth *Auther) *SignupHandler {
	return &SignupHandler{
		users:    users,
		auth:     auth,
		activity: noopActivitySink{},
		logger:   defaultLogger("signup"),
	}
}

// WithActivitySink sets the sink used to emit signup events.
func (h *SignupHandler) WithActivitySink(sink ActivitySink) *SignupHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SignupHandler) WithLogger(logger Logger) *SignupHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during signup",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SignupHandler) execute(ctx context.Context, event SignupMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if verr := event.Validate(); verr != nil {
		return verr.WithCode(goerrors.CodeBadRequest)
	}

	hash, err := h.auth.PasswordHasher().HashPassword(event.Password)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Name:  event.Name,
		Email: event.Email,
		Photo: event.Photo,
		Role:  RoleUser,
	}
	user.PasswordHash = hash

	created, err := h.users.Register(ctx, user)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	token, err := h.auth.IssueToken(created)
	if err != nil {
		return err
	}

	emitActivity(ctx, h.activity, h.logger, ActivityEventSignup, created.ID.String(), nil)

	if event.OnResponse != nil {
		event.OnResponse(&SignupResponse{User: created, Token: token})
	}

	return nil
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Please provide a password"),
		validation.RuneLength(MinPasswordLength, 0).Error("Password must have at least 8 characters"),
	}
}

func confirmRules(password string) []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("Please confirm your password"),
		validation.By(func(value any) error {
			if s, _ := value.(string); s != password {
				return validation.NewError("validation_password_mismatch", "Passwords are not the same!")
			}
			return nil
		}),
	}
}
