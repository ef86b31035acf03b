package rest

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/security"
)

type AuthOptions struct {
	// ExpectedIssuer, when set, must equal the token's iss claim.
	ExpectedIssuer string
}

// AuthMiddleware admits requests carrying a valid bearer token and stores the
// caller in the request context. Every rejection is the same 401.
func AuthMiddleware(verifier security.AccessTokenVerifier, opt AuthOptions) func(next http.Handler) http.Handler {
	if verifier == nil {
		panic("AuthMiddleware: nil verifier")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := authenticate(verifier, opt, bearerToken(r))
			if !ok {
				fail(w, r, http.StatusUnauthorized, "auth.unauthorized", "unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(withAuth(r.Context(), caller)))
		})
	}
}

// bearerToken returns "" unless the header is "Bearer <token>".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func authenticate(verifier security.AccessTokenVerifier, opt AuthOptions, raw string) (AuthContext, bool) {
	if raw == "" {
		return AuthContext{}, false
	}
	claims, err := verifier.VerifyAccessToken(raw)
	if err != nil {
		return AuthContext{}, false
	}
	if opt.ExpectedIssuer != "" && claims.Issuer != opt.ExpectedIssuer {
		return AuthContext{}, false
	}
	uid := strings.TrimSpace(claims.UserID)
	if uid == "" {
		return AuthContext{}, false
	}
	return AuthContext{UserID: uid, Role: strings.TrimSpace(claims.Role), Ver: claims.Ver}, true
}

// RateLimitMiddleware applies a per-IP fixed window shared through the limiter
// backend. Limiter errors fail open.
func RateLimitMiddleware(limiter domain.RateLimiter, limit int, window time.Duration) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.AllowRequest(r.Context(), clientIP(r), limit, window)
			if err == nil && !allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(window))
				fail(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP is the RemoteAddr host. Forwarding headers are client-controlled
// and ignored.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// securityHeaders suit a JSON-only API that is never framed or navigated to.
var securityHeaders = [][2]string{
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
}

func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		next.ServeHTTP(w, r)
	})
}
