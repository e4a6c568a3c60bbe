// Package auth issues and verifies the bearer credentials presented on the
// websocket handshake and in gRPC metadata.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claims plus the stable user id.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"id"`
}

func GenerateToken(userID int64, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID: userID,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserIDFromToken validates signature, algorithm and expiry and returns
// the user id. Expired tokens yield common.ErrTokenExpired; anything else
// wrong yields common.ErrInvalidToken.
func GetUserIDFromToken(tokenString string, secretKey []byte) (int64, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, common.ErrTokenExpired
		}
		return 0, common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID <= 0 {
		return 0, common.ErrInvalidToken
	}

	return claims.UserID, nil
}

// Verifier checks credentials against a fixed HMAC secret.
type Verifier struct {
	secretKey []byte
}

func NewVerifier(secretKey []byte) *Verifier {
	return &Verifier{secretKey: secretKey}
}

// Verify accepts a raw token or a "Bearer <token>" string.
func (v *Verifier) Verify(_ context.Context, credential string) (int64, error) {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		credential = strings.TrimSpace(credential[7:])
	}
	if credential == "" {
		return 0, common.ErrInvalidToken
	}
	return GetUserIDFromToken(credential, v.secretKey)
}
