package blob

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrBadToken = errors.New("invalid or expired blob token")

type urlClaims struct {
	Bucket string `json:"b"`
	Key    string `json:"k"`
	jwt.RegisteredClaims
}

// Signer issues and checks the tokens embedded in signed URLs.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(bucket, key string, expiresAt time.Time) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, urlClaims{
		Bucket: bucket,
		Key:    key,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString(s.secret)
}

// Verify accepts the token only for the exact bucket and key it was issued for.
func (s *Signer) Verify(token, bucket, key string) error {
	t, err := jwt.ParseWithClaims(token, &urlClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ErrBadToken
	}
	c, ok := t.Claims.(*urlClaims)
	if !ok || !t.Valid || c.Bucket != bucket || c.Key != key {
		return ErrBadToken
	}
	return nil
}
