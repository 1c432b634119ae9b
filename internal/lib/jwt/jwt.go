package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewAdminToken mints the HMAC access token handed out after an admin login.
func NewAdminToken(secret string, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)
	claims := token.Claims.(jwt.MapClaims)

	claims["typ"] = "admin"
	claims["exp"] = time.Now().Add(ttl).Unix()

	return token.SignedString([]byte(secret))
}

// ValidateAdminToken parses and checks an admin token. It returns an error
// for any token that is not a live HS256 admin token.
func ValidateAdminToken(tokenString, secret string) error {
	const op = "lib.jwt.ValidateAdminToken"

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("%s: invalid token: %w", op, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("%s: invalid token claims", op)
	}

	if typ, ok := claims["typ"].(string); !ok || typ != "admin" {
		return fmt.Errorf("%s: invalid token type: expected admin, got %v", op, claims["typ"])
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return fmt.Errorf("%s: exp claim is missing or invalid", op)
	}
	if time.Unix(int64(exp), 0).Before(time.Now()) {
		return fmt.Errorf("%s: token is expired", op)
	}

	return nil
}
