// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// GenerateObserverToken creates a JWT granting observer-console access.
func GenerateObserverToken(jwtSecret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"role": "observer",
		"type": "observer_auth",
		"exp":  time.Now().Add(ttl).Unix(),
		"iat":  time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// IsObserverToken reports whether validated claims belong to an observer token.
func IsObserverToken(claims jwt.MapClaims) bool {
	role, _ := claims["role"].(string)
	tokenType, _ := claims["type"].(string)
	return role == "observer" && tokenType == "observer_auth"
}
