package jwtutil

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/riveredge/platform/pkg/config"
)

var (
	signingKey []byte
	expiration = time.Hour
)

// Initialize configures the signing key and token lifetime
func Initialize(cfg *config.JWTConfig) {
	signingKey = []byte(cfg.SigningKey)
	if cfg.ExpirationMinutes > 0 {
		expiration = time.Duration(cfg.ExpirationMinutes) * time.Minute
	}
}

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	UserID          uint   `json:"user_id"`
	Username        string `json:"username"`
	TenantID        *uint  `json:"tenant_id,omitempty"` // nil for platform admins acting cross-tenant
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	IsTenantAdmin   bool   `json:"is_tenant_admin"`
	IsGuest         bool   `json:"is_guest,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token carrying the user's identity and tenant
func GenerateToken(userID uint, username string, tenantID *uint, isPlatformAdmin, isTenantAdmin bool) (string, error) {
	claims := UserClaims{
		UserID:          userID,
		Username:        username,
		TenantID:        tenantID,
		IsPlatformAdmin: isPlatformAdmin,
		IsTenantAdmin:   isTenantAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// GenerateGuestToken creates a short-lived token for a synthetic guest identity
func GenerateGuestToken(tenantID *uint) (string, error) {
	claims := UserClaims{
		Username: "guest",
		TenantID: tenantID,
		IsGuest:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "guest",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(signingKey)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return signingKey, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// ExpiresIn returns the configured token lifetime in seconds
func ExpiresIn() int {
	return int(expiration.Seconds())
}
