package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrIdentityNotFound is returned by IdentityStore.FindByEmail for unknown emails.
var ErrIdentityNotFound = errors.New("identity not found")

// Account is a stored identity with its password hash.
type Account struct {
	Identity
	PasswordHash string
}

// IdentityStore resolves login credentials. Implementations must be safe for
// concurrent use.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	VerifyPassword(ctx context.Context, account *Account, password string) bool
}

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("caretrail-no-such-account"), bcrypt.DefaultCost)

// HashPassword returns a bcrypt hash suitable for AUTH_USER_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// StaticIdentityStore holds the single configured account.
type StaticIdentityStore struct {
	account Account
}

// NewStaticIdentityStore builds the store from a bcrypt hash.
func NewStaticIdentityStore(email, passwordHash string) (*StaticIdentityStore, error) {
	if email == "" {
		return nil, fmt.Errorf("identity email is empty")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("identity password hash: %w", err)
	}
	return &StaticIdentityStore{account: Account{
		Identity:     Identity{Email: email},
		PasswordHash: passwordHash,
	}}, nil
}

// NewStaticIdentityStoreFromPassword hashes password once at startup.
func NewStaticIdentityStoreFromPassword(email, password string) (*StaticIdentityStore, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewStaticIdentityStore(email, hash)
}

// FindByEmail matches case-insensitively.
func (s *StaticIdentityStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	if !strings.EqualFold(strings.TrimSpace(email), s.account.Email) {
		return nil, ErrIdentityNotFound
	}
	acct := s.account
	return &acct, nil
}

// VerifyPassword compares password with the account hash. A nil account is
// checked against a dummy hash and always fails.
func (s *StaticIdentityStore) VerifyPassword(_ context.Context, account *Account, password string) bool {
	hash := dummyHash
	if account != nil {
		hash = []byte(account.PasswordHash)
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	return err == nil && account != nil
}
