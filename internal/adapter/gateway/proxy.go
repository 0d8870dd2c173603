package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"stocktrack/internal/port"
)

// Gateway is the admission-control front door: credential check, per-client
// request ceiling on the protected paths, then a reverse proxy to the
// inventory service. It never touches inventory semantics.
type Gateway struct {
	proxy     *httputil.ReverseProxy
	auth      *Authenticator
	limiter   port.RateLimiter
	protected []string
	logger    zerolog.Logger
}

func New(target *url.URL, auth *Authenticator, limiter port.RateLimiter, protectedPaths []string, logger zerolog.Logger) *Gateway {
	return &Gateway{
		proxy:     httputil.NewSingleHostReverseProxy(target),
		auth:      auth,
		limiter:   limiter,
		protected: protectedPaths,
		logger:    logger,
	}
}

// Handler returns the gateway's HTTP entry point. Health stays open; every
// /api path requires a valid token; the protected paths additionally pass
// through the rate limiter keyed by the token subject.
func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}

		if !strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}

		client, err := g.auth.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
			return
		}

		if g.isProtected(r.URL.Path) {
			allowed, err := g.limiter.Allow(r.Context(), client)
			if err != nil {
				// fail open: the limiter is admission control, not correctness
				g.logger.Warn().Err(err).Str("client", client).Msg("rate limiter unavailable")
			} else if !allowed {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
				return
			}
		}

		g.proxy.ServeHTTP(w, r)
	})
}

func (g *Gateway) isProtected(path string) bool {
	for _, prefix := range g.protected {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
