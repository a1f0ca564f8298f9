package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// InternalClaims identifies the service/operator that signed a request to
// the /internal admin surface or the scheduler's on_tick trigger.
type InternalClaims struct {
	jwt.RegisteredClaims
	CallerID string `json:"caller_id"`
}

// InternalAuth validates HMAC-signed service tokens. Unlike the Clerk-style
// end-user auth this core no longer needs (the bot command surface and
// subscription lifecycle are out-of-scope external collaborators), every
// caller here is a trusted operator or internal service, so a single shared
// secret is sufficient.
type InternalAuth struct {
	logger *slog.Logger
	secret []byte
}

func NewInternalAuth(logger *slog.Logger, secret string) *InternalAuth {
	return &InternalAuth{logger: logger, secret: []byte(secret)}
}

// Middleware requires a valid bearer token signed with the shared secret.
func (a *InternalAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			// No secret configured: treat as open (local/dev mode), matching
			// the teacher's dev-bypass pattern.
			next.ServeHTTP(w, r.WithContext(WithCallerID(r.Context(), "dev")))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			a.unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			a.unauthorized(w, "invalid authorization header format")
			return
		}

		claims, err := a.validateToken(parts[1])
		if err != nil {
			a.logger.Warn("internal_token_validation_failed",
				slog.String("error", err.Error()),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			a.unauthorized(w, "invalid token")
			return
		}

		ctx := WithCallerID(r.Context(), claims.CallerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IssueToken mints a bearer token for a service caller (scheduler, ops CLI).
func (a *InternalAuth) IssueToken(callerID string, ttl time.Duration) (string, error) {
	claims := InternalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		CallerID: callerID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *InternalAuth) validateToken(tokenString string) (*InternalClaims, error) {
	claims := &InternalClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.CallerID == "" {
		return nil, fmt.Errorf("invalid token structure")
	}
	return claims, nil
}

func (a *InternalAuth) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetCallerIDFromContext is re-exported for handler convenience.
func GetCallerIDFromContext(ctx context.Context) string {
	return GetCallerID(ctx)
}
