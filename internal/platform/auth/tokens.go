package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

// DefaultTokenTTL is the lifetime of an issued token.
const DefaultTokenTTL = 24 * time.Hour

// Identity is the public profile of an authenticated caller.
type Identity struct {
	Email string `json:"email"`
}

// Claims is the token payload: the registered claims plus the caller's email.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenIssuer signs and verifies HS256 bearer tokens with one process-wide key.
type TokenIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(key []byte, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("signing key is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{key: key, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for id and its expiry. iat is truncated to the
// second so exp - iat equals the TTL exactly.
func (t *TokenIssuer) Issue(id Identity) (string, time.Time, error) {
	iat := t.now().UTC().Truncate(time.Second)
	exp := iat.Add(t.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: id.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature, algorithm, issuer and expiry of token and
// returns the embedded identity. Expired tokens fail with a token_expired
// error; every other defect is unauthorized.
func (t *TokenIssuer) Verify(token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.TokenExpired(err)
		}
		return nil, apperr.InvalidToken(err)
	}
	if !parsed.Valid || claims.Email == "" {
		return nil, apperr.InvalidToken(fmt.Errorf("token carries no identity"))
	}

	return &Identity{Email: claims.Email}, nil
}
