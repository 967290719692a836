package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/utils"
)

// AllowOnlyCIDRS lets through only clients inside allowed (IPs or CIDRs).
// An empty list disables filtering. trustProxy resolves the client from
// X-Forwarded-For, for a tracker behind a reverse proxy.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("api access rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path),
					logger.Bool("trust_proxy", trustProxy))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
