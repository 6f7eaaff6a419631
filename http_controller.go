package tours

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/resource"
	"github.com/google/uuid"
)

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type AuthControllerRoutes struct {
	Signup         string
	Login          string
	Logout         string
	ForgotPassword string
	ResetPassword  string
	UpdatePassword string
	Me             string
	UpdateMe       string
	DeleteMe       string
}

// AuthController serves the account endpoints under the users router
type AuthController struct {
	Logger   Logger
	Users    UserStore
	Auther   *RouteAuthenticator
	Mailer   Mailer
	Activity ActivitySink
	Routes   *AuthControllerRoutes
	// Resource serves getMe through the generic users handlers when set
	Resource *resource.Handlers[*User]
	// ResetPath is prefixed to the reset token in emailed links
	ResetPath string
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if logger != nil {
			a.Logger = logger
		}
		return a
	}
}

func WithControllerActivity(sink ActivitySink) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Activity = normalizeActivitySink(sink)
		return a
	}
}

func WithUserResource(h *resource.Handlers[*User]) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		a.Resource = h
		return a
	}
}

func WithResetPath(path string) AuthControllerOption {
	return func(a *AuthController) *AuthController {
		if path != "" {
			a.ResetPath = path
		}
		return a
	}
}

func NewAuthController(users UserStore, auther *RouteAuthenticator, m Mailer, opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:    defaultLogger("auth_controller"),
		Users:     users,
		Auther:    auther,
		Mailer:    m,
		Activity:  noopActivitySink{},
		ResetPath: "/api/v1/users/resetPassword",
		Routes: &AuthControllerRoutes{
			Signup:         "/signup",
			Login:          "/login",
			Logout:         "/logout",
			ForgotPassword: "/forgotPassword",
			ResetPassword:  "/resetPassword/:token",
			UpdatePassword: "/updateMyPassword",
			Me:             "/me",
			UpdateMe:       "/updateMe",
			DeleteMe:       "/deleteMe",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Users == nil {
		panic("Missing UserStore in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Mailer == nil {
		panic("Missing Mailer in auth controller...")
	}

	return c
}

func (a *AuthController) auth() *Auther {
	return a.Auther.auth
}

func (a *AuthController) Signup(c router.Context) error {
	msg := SignupMessage{}
	if err := bindBody(c, &msg); err != nil {
		return err
	}

	var resp *SignupResponse
	msg.OnResponse = func(r *SignupResponse) { resp = r }

	handler := NewSignupHandler(a.Users, a.auth()).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)
	if err := handler.Execute(c.Context(), msg); err != nil {
		return err
	}

	return a.Auther.SendToken(c, http.StatusCreated, resp.User, resp.Token)
}

func (a *AuthController) Login(c router.Context) error {
	payload := LoginRequest{}
	if err := bindBody(c, &payload); err != nil {
		return err
	}

	user, token, err := a.auth().Login(c.Context(), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return a.Auther.SendToken(c, router.StatusOK, user, token)
}

func (a *AuthController) Logout(c router.Context) error {
	a.Auther.Logout(c)
	return c.JSON(router.StatusOK, map[string]any{"status": "success"})
}

func (a *AuthController) ForgotPassword(c router.Context) error {
	msg := ForgotPasswordMessage{}
	if err := bindBody(c, &msg); err != nil {
		return err
	}

	msg.ResetURL = func(token string) string {
		return fmt.Sprintf("%s://%s%s/%s", requestScheme(c), c.Header("Host"), a.ResetPath, token)
	}

	tokens := NewResetTokens(a.Users).WithClock(a.auth().Now)
	handler := NewForgotPasswordHandler(a.Users, tokens, a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)
	if err := handler.Execute(c.Context(), msg); err != nil {
		return err
	}

	return c.JSON(router.StatusOK, map[string]any{
		"status":  "success",
		"message": MsgTokenSent,
	})
}

func (a *AuthController) ResetPassword(c router.Context) error {
	msg := ResetPasswordMessage{}
	if err := bindBody(c, &msg); err != nil {
		return err
	}
	msg.Token = c.Param("token")

	var resp *PasswordChangeResponse
	msg.OnResponse = func(r *PasswordChangeResponse) { resp = r }

	tokens := NewResetTokens(a.Users).WithClock(a.auth().Now)
	handler := NewResetPasswordHandler(a.Users, tokens, a.auth()).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)
	if err := handler.Execute(c.Context(), msg); err != nil {
		return err
	}

	return a.Auther.SendToken(c, router.StatusOK, resp.User, resp.Token)
}

func (a *AuthController) UpdatePassword(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized)
	}

	msg := UpdatePasswordMessage{}
	if err := bindBody(c, &msg); err != nil {
		return err
	}
	msg.UserID = user.ID.String()

	var resp *PasswordChangeResponse
	msg.OnResponse = func(r *PasswordChangeResponse) { resp = r }

	handler := NewUpdatePasswordHandler(a.Users, a.auth()).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)
	if err := handler.Execute(c.Context(), msg); err != nil {
		return err
	}

	return a.Auther.SendToken(c, router.StatusOK, resp.User, resp.Token)
}

func (a *AuthController) GetMe(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized)
	}

	if a.Resource != nil {
		return a.Resource.GetOneByID(c, user.ID.String())
	}

	return c.JSON(router.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"data": user},
	})
}

func (a *AuthController) UpdateMe(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized)
	}

	msg := UpdateProfileMessage{}
	if err := bindBody(c, &msg); err != nil {
		return err
	}
	msg.UserID = user.ID.String()

	var updated *User
	msg.OnResponse = func(u *User) { updated = u }

	if err := NewUpdateProfileHandler(a.Users).Execute(c.Context(), msg); err != nil {
		return err
	}

	return c.JSON(router.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"user": updated},
	})
}

func (a *AuthController) DeleteMe(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized)
	}

	handler := NewDeactivateAccountHandler(a.Users).WithActivitySink(a.Activity)
	if err := handler.Execute(c.Context(), DeactivateAccountMessage{UserID: user.ID.String()}); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// DeactivateUser serves the admin delete on /users/:id. Accounts are
// soft deleted like deleteMe, the record stays in the store.
func (a *AuthController) DeactivateUser(c router.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return resource.NewCastError("id", id)
	}

	if _, err := a.Users.FindByID(c.Context(), id); err != nil {
		if errors.IsNotFound(err) {
			return resource.NewNotFoundError(id)
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user for deactivation")
	}

	handler := NewDeactivateAccountHandler(a.Users).WithActivitySink(a.Activity)
	if err := handler.Execute(c.Context(), DeactivateAccountMessage{UserID: id}); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// CreateUser points clients at signup, accounts are never created
// through the generic users resource
func (a *AuthController) CreateUser(c router.Context) error {
	return NewAppError(MsgUseSignup, errors.CodeInternal)
}

func bindBody(c router.Context, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.Bind(out); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "failed to parse request body").
			WithCode(errors.CodeBadRequest)
	}
	return nil
}

// requestScheme honours X-Forwarded-Proto set by a fronting proxy
func requestScheme(c router.Context) string {
	if proto := c.Header("X-Forwarded-Proto"); proto != "" {
		return strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return "http"
}
