package httpapi

import (
	"errors"
	"time"

	"github.com/go-chi/jwtauth"
)

// AdminClaims identify the operator a minted token is issued for.
type AdminClaims struct {
	ID    string
	Email string
	Role  string
}

// MintAdminToken signs an HS256 token carrying {id, email, role}, the claims
// the catalog API expects on admin requests. ttl <= 0 means no expiry.
func MintAdminToken(secret string, claims AdminClaims, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	if claims.Role == "" {
		claims.Role = "ADMIN"
	}

	auth := jwtauth.New("HS256", []byte(secret), nil)
	payload := map[string]interface{}{
		"id":    claims.ID,
		"email": claims.Email,
		"role":  claims.Role,
	}
	jwtauth.SetIssuedNow(payload)
	if ttl > 0 {
		jwtauth.SetExpiryIn(payload, ttl)
	}

	_, token, err := auth.Encode(payload)
	if err != nil {
		return "", err
	}
	return token, nil
}
