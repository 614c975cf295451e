package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var jwtSecret []byte

// TokenTTL is how long a connect token stays valid
const TokenTTL = 24 * time.Hour

func InitJWT(secret string) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
}

// GenerateJWT binds a token to a player identity (wallet address)
func GenerateJWT(identity string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret not initialized")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identity,
		"exp": now.Add(TokenTTL).Unix(),
		"iat": now.Unix(),
		"nbf": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	// jwt/v5 already checks exp/nbf; keep the explicit check for tokens without them
	now := time.Now().Unix()
	exp, ok := claims["exp"].(float64)
	if !ok || int64(exp) < now {
		return "", errors.New("token expired")
	}

	identity, ok := claims["sub"].(string)
	if !ok || identity == "" {
		return "", errors.New("identity not found")
	}

	return identity, nil
}
