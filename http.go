package tours

import (
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/middleware/jwtware"
)

// LoggedOutValue replaces the session cookie on logout
const LoggedOutValue = "loggedout"

const loggedOutTTL = 10 * time.Second

// RouteAuthenticator guards routes with session tokens
type RouteAuthenticator struct {
	auth           *Auther
	cfg            Config
	cookieDuration time.Duration
	activity       ActivitySink
	Logger         Logger
}

func NewHTTPAuthenticator(auther *Auther, cfg Config) *RouteAuthenticator {
	cookieDuration := 24 * time.Hour
	if cfg.GetCookieExpiration() > 0 {
		cookieDuration = cfg.GetCookieExpiration()
	}

	return &RouteAuthenticator{
		auth:           auther,
		cfg:            cfg,
		cookieDuration: cookieDuration,
		activity:       noopActivitySink{},
		Logger:         defaultLogger("http_auth"),
	}
}

// WithActivitySink sets the sink used for access denied events
func (a *RouteAuthenticator) WithActivitySink(sink ActivitySink) *RouteAuthenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a *RouteAuthenticator) tokenLookup() string {
	return "header:" + router.HeaderAuthorization + ",cookie:" + a.cfg.GetContextKey()
}

func (a *RouteAuthenticator) resolve(c router.Context, raw string) error {
	user, err := a.auth.IdentityFromToken(c.Context(), raw)
	if err != nil {
		return err
	}
	SetCurrentUser(c, user)
	return nil
}

// Protect requires a valid session token. The resolved user is available
// through CurrentUser for the rest of the chain.
func (a *RouteAuthenticator) Protect() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		TokenLookup: a.tokenLookup(),
		AuthScheme:  a.cfg.GetAuthScheme(),
		Resolve:     a.resolve,
		ErrorHandler: func(_ router.Context, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized).
					WithTextCode(TextCodeUnauthorized)
			}
			return err
		},
	})
}

// OptionalIdentity resolves the session user when it can and never fails
// the request. Only the cookie is consulted, as for rendered pages.
func (a *RouteAuthenticator) OptionalIdentity() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		TokenLookup: "cookie:" + a.cfg.GetContextKey(),
		Resolve: func(c router.Context, raw string) error {
			if raw == LoggedOutValue {
				return jwtware.ErrJWTMissingOrMalformed
			}
			if err := a.resolve(c, raw); err != nil {
				a.Logger.Debug("Optional auth failed, proceeding", "error", err)
				return err
			}
			return nil
		},
		Optional: true,
	})
}

// RestrictTo allows the request only when the current user holds one of
// roles. It must run after Protect.
func (a *RouteAuthenticator) RestrictTo(roles ...UserRole) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, ok := CurrentUser(c)
			if !ok {
				return NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized).
					WithTextCode(TextCodeUnauthorized)
			}

			if !user.Role.In(roles...) {
				emitActivity(c.Context(), a.activity, a.Logger, ActivityEventAccessDenied, user.ID.String(), map[string]any{
					"role": user.Role.String(),
					"path": c.Path(),
				})
				return NewAppError(MsgForbidden, errors.CodeForbidden).
					WithTextCode(TextCodeForbidden)
			}

			return next(c)
		}
	}
}

// SendToken sets the session cookie and writes the token response
func (a *RouteAuthenticator) SendToken(c router.Context, status int, user *User, token string) error {
	a.setCookieToken(c, token, a.cookieDuration)

	return c.JSON(status, map[string]any{
		"status": "success",
		"token":  token,
		"data":   map[string]any{"user": user},
	})
}

// Logout overwrites the session cookie with a short lived placeholder
func (a *RouteAuthenticator) Logout(c router.Context) {
	a.setCookieToken(c, LoggedOutValue, loggedOutTTL)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   a.cfg.IsProduction(),
		SameSite: "Lax",
	})
}
