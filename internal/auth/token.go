// Package auth signs identities in and out of the back-office.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storecraft/backoffice/internal/shared"
)

// ErrInvalidToken indicates the identity token failed verification.
var ErrInvalidToken = errors.New("auth: invalid identity token")

const clockSkew = 30 * time.Second

// Claims is the identity token payload. The subject carries the auth UID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 identity tokens issued by the identity provider.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier constructs a Verifier. Empty issuer or audience disables that check.
func NewVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

// Verify parses raw and returns the identity it asserts.
func (v *Verifier) Verify(raw string) (shared.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return shared.Identity{}, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return shared.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return shared.Identity{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return shared.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return shared.Identity{UID: claims.Subject, Email: strings.TrimSpace(claims.Email)}, nil
}

// Issue signs a token for identity valid for ttl. Used by local tooling and tests.
func (v *Verifier) Issue(identity shared.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
