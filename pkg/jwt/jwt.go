package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMissingRUC el token es válido pero no identifica al emisor.
var ErrMissingRUC = errors.New("jwt: el token no incluye ruc")

// Claims claims estándar más el RUC del emisor autenticado.
// Las operaciones sobre comprobantes sólo se permiten para ese RUC.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	RUC    string `json:"ruc"`
	Role   string `json:"role,omitempty"`
}

// Generate firma con HS256 un token para userID actuando como emisor ruc.
func Generate(secret, userID, ruc, role, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vacío")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   ruc,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserID: userID,
		RUC:    ruc,
		Role:   role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida firma y expiración y devuelve los claims. Sólo acepta HS256.
func Parse(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt: secret vacío")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.RUC == "" {
		return nil, ErrMissingRUC
	}
	return claims, nil
}
