package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// jobAuth protects the scheduler entry points. Callers present either a
// bearer JWT signed with the shared secret (HS256) or a static X-API-Key.
// When neither a secret nor a key is configured, the endpoints are open;
// single-tenant deployments behind a private network run that way.
type jobAuth struct {
	jwtSecret  []byte
	apiKeyHash [32]byte
	enabled    bool
}

func newJobAuth(jwtSecret, apiKey string) *jobAuth {
	a := &jobAuth{
		jwtSecret: []byte(jwtSecret),
		enabled:   jwtSecret != "" || apiKey != "",
	}
	if apiKey != "" {
		a.apiKeyHash = sha256.Sum256([]byte(apiKey))
	}
	return a
}

func (a *jobAuth) authenticate(r *http.Request) error {
	if key := r.Header.Get("X-API-Key"); key != "" {
		var zero [32]byte
		if a.apiKeyHash == zero {
			return fmt.Errorf("API key auth not configured")
		}
		hash := sha256.Sum256([]byte(key))
		if subtle.ConstantTimeCompare(hash[:], a.apiKeyHash[:]) != 1 {
			return fmt.Errorf("invalid API key")
		}
		return nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return fmt.Errorf("missing Authorization header or X-API-Key")
	}
	if len(a.jwtSecret) == 0 {
		return fmt.Errorf("JWT auth not configured")
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	token, err := jwtlib.Parse(tokenStr, func(token *jwtlib.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return fmt.Errorf("invalid JWT: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("invalid JWT")
	}
	return nil
}

func (a *jobAuth) wrap(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.enabled {
			if err := a.authenticate(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}
		next(w, r)
	})
}
