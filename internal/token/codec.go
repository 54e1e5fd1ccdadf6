// Package token issues and decodes the HS256 access tokens handed to API
// clients, and generates the opaque refresh secrets stored per identity.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrConfig means the codec cannot sign: the secret is missing.
	ErrConfig = errors.New("token: signing secret is not configured")
	// ErrInvalidToken covers malformed tokens, bad signatures and any
	// algorithm other than HS256.
	ErrInvalidToken = errors.New("token: invalid token")
)

// RefreshSecretBytes is the entropy of a refresh token before encoding.
const RefreshSecretBytes = 128

var signingMethod = jwt.SigningMethodHS256

// AccessToken is a signed token together with what it was built from.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	Claims    ClaimSet
}

// Issue signs claims plus issuer, audience, issued-at and expiry.
func Issue(claims ClaimSet, secret []byte, issuer, audience string, ttl time.Duration) (*AccessToken, error) {
	return issueAt(claims, secret, issuer, audience, ttl, time.Now())
}

func issueAt(claims ClaimSet, secret []byte, issuer, audience string, ttl time.Duration, now time.Time) (*AccessToken, error) {
	if len(secret) == 0 {
		return nil, ErrConfig
	}

	payload, err := claims.toMap()
	if err != nil {
		return nil, err
	}
	exp := now.Add(ttl)
	payload["iss"] = issuer
	payload["aud"] = audience
	payload["iat"] = jwt.NewNumericDate(now)
	payload["exp"] = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(signingMethod, payload).SignedString(secret)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	return &AccessToken{Token: signed, ExpiresAt: jwt.NewNumericDate(exp).Time, Claims: claims}, nil
}

// DecodeExpired checks the signature and algorithm only; expiry, issuer and
// audience are ignored so that an expired token can still be refreshed.
func DecodeExpired(tokenString string, secret []byte) (ClaimSet, error) {
	return parse(tokenString, secret, jwt.WithoutClaimsValidation())
}

// Validate is the full check applied to bearer tokens on protected routes.
func Validate(tokenString string, secret []byte, issuer, audience string) (ClaimSet, error) {
	return parse(tokenString, secret,
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
}

func parse(tokenString string, secret []byte, opts ...jwt.ParserOption) (ClaimSet, error) {
	if len(secret) == 0 {
		return ClaimSet{}, ErrConfig
	}

	opts = append(opts, jwt.WithValidMethods([]string{signingMethod.Alg()}))
	claims := jwt.MapClaims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != signingMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return ClaimSet{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return ClaimSet{}, ErrInvalidToken
	}
	return fromMap(claims), nil
}

// GenerateRefreshSecret returns RefreshSecretBytes of crypto/rand output,
// base64 encoded. Uniqueness is probabilistic.
func GenerateRefreshSecret() (string, error) {
	b := make([]byte, RefreshSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Codec binds the signing configuration so callers pass only claims.
type Codec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewCodec(secret, issuer, audience string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, ErrConfig
	}
	return &Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (c *Codec) Issue(claims ClaimSet) (*AccessToken, error) {
	return issueAt(claims, c.secret, c.issuer, c.audience, c.ttl, c.now())
}

func (c *Codec) DecodeExpired(tokenString string) (ClaimSet, error) {
	return DecodeExpired(tokenString, c.secret)
}

func (c *Codec) Validate(tokenString string) (ClaimSet, error) {
	return Validate(tokenString, c.secret, c.issuer, c.audience)
}

func (c *Codec) TTL() time.Duration { return c.ttl }
