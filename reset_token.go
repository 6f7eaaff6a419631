package tours

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

// ResetTokenTTL is how long a password reset token stays valid
const ResetTokenTTL = 10 * time.Minute

const resetTokenLength = 32

// NewResetToken returns a random plaintext token and its hash
func NewResetToken() (plain, hashed string, err error) {
	buf := make([]byte, resetTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", "", errors.Wrap(err, errors.CategoryInternal, "failed to generate reset token")
	}
	plain = hex.EncodeToString(buf)
	return plain, HashResetToken(plain), nil
}

// HashResetToken is the one way hash stored for a plaintext reset token
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// ResetTokens manages the password reset token lifecycle. Only the
// hash is persisted; the plaintext goes out by email.
type ResetTokens struct {
	users UserStore
	ttl   time.Duration
	now   func() time.Time
}

// NewResetTokens creates a reset token manager over users
func NewResetTokens(users UserStore) *ResetTokens {
	return &ResetTokens{
		users: users,
		ttl:   ResetTokenTTL,
		now:   time.Now,
	}
}

// WithClock overrides the clock
func (r *ResetTokens) WithClock(now func() time.Time) *ResetTokens {
	if now != nil {
		r.now = now
	}
	return r
}

// Issue stores a fresh reset token hash on user and returns the plaintext
func (r *ResetTokens) Issue(ctx context.Context, user *User) (string, error) {
	plain, hashed, err := NewResetToken()
	if err != nil {
		return "", err
	}

	expires := r.now().Add(r.ttl)
	user.PasswordResetToken = hashed
	user.PasswordResetExpires = &expires

	if _, err := r.users.Save(ctx, user); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to store reset token")
	}

	return plain, nil
}

// Consume finds the user holding a non expired token matching plain.
// The caller clears the token once the password is updated.
func (r *ResetTokens) Consume(ctx context.Context, plain string) (*User, error) {
	if plain == "" {
		return nil, NewAppError(MsgResetTokenInvalid, errors.CodeBadRequest).
			WithTextCode(TextCodeResetTokenInvalid)
	}

	user, err := r.users.FindByResetToken(ctx, HashResetToken(plain), r.now())
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, NewAppError(MsgResetTokenInvalid, errors.CodeBadRequest).
				WithTextCode(TextCodeResetTokenInvalid)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to look up reset token")
	}

	return user, nil
}

// Revoke clears the stored token, used when delivery fails
func (r *ResetTokens) Revoke(ctx context.Context, user *User) error {
	user.ClearPasswordReset()
	if _, err := r.users.Save(ctx, user); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to clear reset token")
	}
	return nil
}

// ClearPasswordReset drops the reset token hash and expiry
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}
