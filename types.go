package tours

import (
	"context"
	"time"

	"github.com/goliatone/go-tours/mailer"
	"go.uber.org/zap"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the auth and HTTP options the handlers need
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetCookieExpiration() time.Duration
	GetContextKey() string
	GetAuthScheme() string
	GetIssuer() string
	IsProduction() bool
}

// UserStore is the persistence capability used by the auth flows
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (*User, error)
	Register(ctx context.Context, user *User) (*User, error)
	Save(ctx context.Context, user *User) (*User, error)
}

// PasswordAuthenticator hashes and compares passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer delivers transactional email
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// defLogger writes through a zap sugared logger. Args are key value
// pairs, as with zap's *w methods.
type defLogger struct {
	logger *zap.SugaredLogger
}

// NewZapLogger builds the base zap logger: JSON at info level in
// production, console at debug level otherwise. It falls back to a no-op
// logger when zap cannot open its sinks.
func NewZapLogger(production bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if production {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewLogger returns the default Logger implementation
func NewLogger(name string, production bool) Logger {
	return WrapZap(NewZapLogger(production).Named(name))
}

// WrapZap adapts logger to Logger
func WrapZap(logger *zap.Logger) Logger {
	if logger == nil {
		logger = zap.L()
	}
	return defLogger{logger: logger.Sugar()}
}

func (d defLogger) Error(format string, args ...any) {
	d.sugar().Errorw(format, args...)
}

func (d defLogger) Warn(format string, args ...any) {
	d.sugar().Warnw(format, args...)
}

func (d defLogger) Info(format string, args ...any) {
	d.sugar().Infow(format, args...)
}

func (d defLogger) Debug(format string, args ...any) {
	d.sugar().Debugw(format, args...)
}

func (d defLogger) sugar() *zap.SugaredLogger {
	if d.logger == nil {
		return zap.S()
	}
	return d.logger
}

// defaultLogger follows the global zap logger, a no-op until the command
// replaces it
func defaultLogger(name string) Logger {
	return WrapZap(zap.L().Named(name))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards every entry
func NopLogger() Logger { return nopLogger{} }
