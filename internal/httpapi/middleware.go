package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/apexlabs/nft-market/internal/domain/market"
)

type contextKey string

const callerKey contextKey = "caller"

// Auth authenticates requests with an HMAC-signed bearer token whose subject
// is the caller's address. Read-only GET requests pass through anonymously.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("missing authorization"))
				return
			}

			caller, err := validateToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, fmt.Errorf("invalid token"))
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateToken(token, secret string) (market.Address, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return market.ZeroAddress, err
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return market.ZeroAddress, fmt.Errorf("token has no subject")
	}
	return market.Address(subject), nil
}

// SignToken issues a token for the given caller address. Used by tests and
// operator tooling.
func SignToken(caller market.Address, secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": string(caller)})
	return token.SignedString([]byte(secret))
}

func callerFrom(r *http.Request) market.Address {
	caller, _ := r.Context().Value(callerKey).(market.Address)
	return caller
}
