package api

import (
	"net/http"
	"net/url"
	"path"
	"strings"

	"plantcareapi/pkg/config"
	"plantcareapi/pkg/utils"
)

// pages only reachable without a session
var AUTH_ROUTES = []string{"/login", "/register", "/reset-password"}

var PUBLIC_ROUTES = []string{"/auth/callback"}

var STATIC_PREFIXES = []string{"/assets/", "/static/", "/_next/"}

var STATIC_EXTENSIONS = map[string]bool{
	".css": true, ".js": true, ".map": true, ".ico": true, ".svg": true, ".png": true,
	".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".woff": true, ".woff2": true,
	".txt": true, ".webmanifest": true,
}

func matchRoute(p string, routes []string) bool {
	for _, route := range routes {
		if p == route || strings.HasPrefix(p, route+"/") {
			return true
		}
	}
	return false
}

func isStaticAsset(p string) bool {
	for _, prefix := range STATIC_PREFIXES {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return STATIC_EXTENSIONS[strings.ToLower(path.Ext(p))]
}

func (h *Handler) authenticated(r *http.Request) bool {
	_, err := utils.ValidateAuthToken(r, h.Config.JWTSecret)
	return err == nil
}

// SessionGate filters page requests. API routes are guarded by
// AuthMiddleware instead.
func (h *Handler) SessionGate(next http.Handler) http.Handler {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path

		if strings.HasPrefix(p, "/api/") || matchRoute(p, PUBLIC_ROUTES) || isStaticAsset(p) {
			next.ServeHTTP(w, r)
			return
		}

		authed := h.authenticated(r)

		if p == "/" {
			if authed {
				http.Redirect(w, r, config.DEFAULT_REDIRECT, http.StatusSeeOther)
			} else {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
			}
			return
		}

		if matchRoute(p, AUTH_ROUTES) {
			if authed {
				http.Redirect(w, r, config.DEFAULT_REDIRECT, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !authed {
			http.Redirect(w, r, "/login?redirectTo="+url.QueryEscape(p), http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})

}
