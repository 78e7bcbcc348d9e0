package auth

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testHash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func newTestStore(t *testing.T) *StaticIdentityStore {
	t.Helper()
	s, err := NewStaticIdentityStore("demo@rustemr.com", testHash(t, "password123"))
	if err != nil {
		t.Fatalf("NewStaticIdentityStore: %v", err)
	}
	return s
}

func TestStaticIdentityStore_FindByEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct, err := s.FindByEmail(ctx, "Demo@RustEMR.com")
	if err != nil {
		t.Fatalf("expected case-insensitive match, got %v", err)
	}
	if acct.Email != "demo@rustemr.com" {
		t.Errorf("unexpected email %s", acct.Email)
	}

	if _, err := s.FindByEmail(ctx, "other@rustemr.com"); err != ErrIdentityNotFound {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

func TestStaticIdentityStore_VerifyPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	acct, _ := s.FindByEmail(ctx, "demo@rustemr.com")

	if !s.VerifyPassword(ctx, acct, "password123") {
		t.Error("expected correct password to verify")
	}
	if s.VerifyPassword(ctx, acct, "password124") {
		t.Error("expected wrong password to fail")
	}
	if s.VerifyPassword(ctx, nil, "caretrail-no-such-account") {
		t.Error("nil account must never verify, even against the dummy hash input")
	}
}

func TestNewStaticIdentityStore_RejectsBadHash(t *testing.T) {
	if _, err := NewStaticIdentityStore("demo@rustemr.com", "plaintext"); err == nil {
		t.Error("expected error for non-bcrypt hash")
	}
	if _, err := NewStaticIdentityStore("", testHash(t, "x")); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(h), []byte("password123")) != nil {
		t.Error("hash does not match its password")
	}
	if _, err := HashPassword(""); err == nil {
		t.Error("expected error for empty password")
	}
}

func TestNewStaticIdentityStoreFromPassword(t *testing.T) {
	s, err := NewStaticIdentityStoreFromPassword("demo@rustemr.com", "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	acct, _ := s.FindByEmail(context.Background(), "demo@rustemr.com")
	if !s.VerifyPassword(context.Background(), acct, "password123") {
		t.Error("expected password to verify")
	}
}
