package tours

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Auther verifies credentials and resolves identities from tokens
type Auther struct {
	users        UserStore
	hasher       PasswordAuthenticator
	logger       Logger
	tokenService TokenService
	activitySink ActivitySink
	signingKey   []byte
	expiration   time.Duration
	issuer       string
	now          func() time.Time
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users UserStore, opts Config) *Auther {
	s := &Auther{
		users:        users,
		hasher:       BcryptHasher{},
		logger:       defaultLogger("auth"),
		activitySink: noopActivitySink{},
		signingKey:   []byte(opts.GetSigningKey()),
		expiration:   opts.GetTokenExpiration(),
		issuer:       opts.GetIssuer(),
		now:          time.Now,
	}
	s.tokenService = s.newTokenService()
	return s
}

func (s *Auther) newTokenService() TokenService {
	return NewTokenService(s.signingKey, s.expiration, s.issuer,
		WithTokenClock(s.now),
		WithTokenLogger(s.logger),
	)
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.tokenService = s.newTokenService()
	return s
}

// WithClock overrides the clock used to mint and check tokens
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now == nil {
		return s
	}
	s.now = now
	s.tokenService = s.newTokenService()
	return s
}

// WithPasswordHasher sets the hasher used for new and checked passwords
func (s *Auther) WithPasswordHasher(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// PasswordHasher returns the configured hasher
func (s *Auther) PasswordHasher() PasswordAuthenticator {
	return s.hasher
}

// Now returns the authenticator clock reading
func (s *Auther) Now() time.Time {
	return s.now()
}

// Login checks email and password, returning the user and a fresh token.
// Unknown emails and wrong passwords fail with the same message.
func (s *Auther) Login(ctx context.Context, email, password string) (*User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", NewAppError(MsgMissingCredentials, errors.CodeBadRequest)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Error("Login find user error", "error", err)
			return nil, "", err
		}
		s.emit(ctx, ActivityEventLoginFailure, "", map[string]any{"email": email, "reason": "unknown_email"})
		return nil, "", s.incorrectCredentials()
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.emit(ctx, ActivityEventLoginFailure, user.ID.String(), map[string]any{"reason": "password_mismatch"})
		return nil, "", s.incorrectCredentials()
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}

	s.emit(ctx, ActivityEventLoginSuccess, user.ID.String(), nil)

	return user, token, nil
}

// IssueToken signs a session token for user
func (s *Auther) IssueToken(user *User) (string, error) {
	if user == nil {
		return "", errors.New("cannot issue token without user", errors.CategoryInternal)
	}
	return s.tokenService.Issue(user.ID.String())
}

// IdentityFromToken verifies raw and resolves the user it was issued to.
// Tokens minted before the last password change are rejected.
func (s *Auther) IdentityFromToken(ctx context.Context, raw string) (*User, error) {
	if raw == "" {
		return nil, NewAppError(MsgNotLoggedIn, errors.CodeUnauthorized).
			WithTextCode(TextCodeUnauthorized)
	}

	claims, err := s.tokenService.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, NewAppError(MsgUserNoLongerExists, errors.CodeUnauthorized).
				WithTextCode(TextCodeUnauthorized)
		}
		s.logger.Error("IdentityFromToken find user error", "error", err)
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, NewAppError(MsgPasswordChanged, errors.CodeUnauthorized).
			WithTextCode(TextCodeUnauthorized)
	}

	return user, nil
}

func (s *Auther) incorrectCredentials() error {
	return NewAppError(MsgIncorrectCredentials, errors.CodeUnauthorized).
		WithTextCode(TextCodeInvalidCredentials)
}

func (s *Auther) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	emitActivity(ctx, s.activitySink, s.logger, eventType, userID, metadata)
}
