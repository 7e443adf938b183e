package mw

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/marksync/internal/auth"
	"github.com/MrSnakeDoc/marksync/internal/httpserver/respond"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

type contextKey string

const (
	accountKey contextKey = "account"
	deviceKey  contextKey = "device"
)

// Auth requires a valid "Bearer <jwt>" header and stores the account and
// device claims in the request context.
func Auth(secret string, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				respond.Unauthorized(w, "missing authorization header")
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				respond.Unauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := auth.ValidateToken(strings.TrimSpace(token), secret)
			if err != nil {
				log.Debug("rejected bearer token",
					logger.String("remote_ip", r.RemoteAddr),
					logger.Error(err))
				respond.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), accountKey, claims.Account)
			ctx = context.WithValue(ctx, deviceKey, claims.Device)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Account returns the authenticated account, or "" outside Auth.
func Account(ctx context.Context) string {
	account, _ := ctx.Value(accountKey).(string)
	return account
}

// Device returns the device claim of the caller's token.
func Device(ctx context.Context) string {
	device, _ := ctx.Value(deviceKey).(string)
	return device
}
