package tours

import (
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor used for new password hashes
var BcryptCost = 12

const argon2idPrefix = "$argon2id$"

// HashPassword will generate a bcrypt password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password. Both bcrypt and argon2id
// hashes are understood so the hasher can be switched without
// invalidating stored accounts.
func ComparePasswordAndHash(password, hash string) error {
	if strings.HasPrefix(hash, argon2idPrefix) {
		match, err := argon2id.ComparePasswordAndHash(password, hash)
		if err != nil {
			return err
		}
		if !match {
			return ErrMismatchedHashAndPassword
		}
		return nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// BcryptHasher implements PasswordAuthenticator with bcrypt
type BcryptHasher struct{}

func (BcryptHasher) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

func (BcryptHasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// Argon2Hasher implements PasswordAuthenticator with argon2id
type Argon2Hasher struct {
	Params *argon2id.Params
}

func (a Argon2Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	params := a.Params
	if params == nil {
		params = argon2id.DefaultParams
	}
	return argon2id.CreateHash(password, params)
}

func (Argon2Hasher) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// NewPasswordHasher returns the hasher registered under name,
// defaulting to bcrypt
func NewPasswordHasher(name string) PasswordAuthenticator {
	switch strings.ToLower(name) {
	case "argon2id", "argon2":
		return Argon2Hasher{}
	default:
		return BcryptHasher{}
	}
}
