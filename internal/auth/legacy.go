package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// LegacyClaims are HMAC-signed tokens issued by the dashboard backend
type LegacyClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// LegacyVerifier validates HS256 tokens with a shared secret
type LegacyVerifier struct {
	secret []byte
}

func NewLegacyVerifier(secret string) *LegacyVerifier {
	return &LegacyVerifier{secret: []byte(secret)}
}

func (v *LegacyVerifier) Validate(tokenString string) (*Identity, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("legacy token secret not configured")
	}
	token, err := jwt.ParseWithClaims(tokenString, &LegacyClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*LegacyClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

// Sign issues a legacy token; used by tests and local tooling
func (v *LegacyVerifier) Sign(claims LegacyClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Chain tries each verifier in order and returns the first success
type Chain []TokenVerifier

func (c Chain) Validate(tokenString string) (*Identity, error) {
	err := errors.New("no token verifier configured")
	for _, v := range c {
		id, verr := v.Validate(tokenString)
		if verr == nil {
			return id, nil
		}
		err = verr
	}
	return nil, err
}
