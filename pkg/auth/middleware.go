package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"commsdb/pkg/config"
	"commsdb/pkg/logger"
)

type ctxRoleKey struct{}
type ctxUserKey struct{}

// open endpoints bypass API-key checks (probes and scrapers)
func isOpenPath(p string) bool {
	return p == "/healthz" || p == "/readyz" || p == "/metrics"
}

// AuthenticateRequestMiddleware checks the X-API-Key header against the
// configured backend/frontend key sets and applies per-key token-bucket
// rate limiting. The resolved role is stored in the request context.
// When no keys are configured at all the check is skipped (dev mode)
// and callers are rate limited by remote address instead.
func AuthenticateRequestMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	pool := &limiterPool{cfg: cfg}
	devMode := len(cfg.BackendKeys) == 0 && len(cfg.FrontendKeys) == 0
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isOpenPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			key := strings.TrimSpace(r.Header.Get("X-API-Key"))
			role := ""
			switch {
			case devMode:
				role = "backend"
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				key = "remote:" + host
			default:
				if _, ok := cfg.BackendKeys[key]; ok {
					role = "backend"
				} else if _, ok := cfg.FrontendKeys[key]; ok {
					role = "frontend"
				}
			}
			if role == "" {
				logger.Warn("api_key_rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			if !pool.Allow(key) {
				logger.Warn("rate_limited", "path", r.URL.Path, "role", role)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			ctx := context.WithValue(r.Context(), ctxRoleKey{}, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSignedUser verifies HMAC signature headers and injects the
// verified user id into the request context. Backend callers may omit
// the signature entirely; when one is present it is always verified.
func RequireSignedUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := RoleFromContext(r.Context())
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))

		if sig == "" {
			if role == "backend" {
				next.ServeHTTP(w, r)
				return
			}
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"missing signature headers"}`, http.StatusUnauthorized)
			return
		}
		if userID == "" {
			logger.Warn("missing_signature_headers", "path", r.URL.Path, "remote", r.RemoteAddr)
			http.Error(w, `{"error":"missing signature headers"}`, http.StatusUnauthorized)
			return
		}

		keys := config.GetSigningKeys()
		if len(keys) == 0 {
			logger.Error("no_signing_keys_configured")
			http.Error(w, `{"error":"server misconfigured: no signing secrets available"}`, http.StatusInternalServerError)
			return
		}
		ok := false
		for k := range keys {
			mac := hmac.New(sha256.New, []byte(k))
			mac.Write([]byte(userID))
			expected := hex.EncodeToString(mac.Sum(nil))
			if hmac.Equal([]byte(expected), []byte(sig)) {
				ok = true
				break
			}
		}
		if !ok {
			logger.Warn("invalid_signature", "user", userID)
			http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RoleFromContext returns the resolved caller role or empty string.
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxRoleKey{}).(string); ok {
		return v
	}
	return ""
}

// UserIDFromContext returns the verified user id or empty string.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxUserKey{}).(string); ok {
		return v
	}
	return ""
}
