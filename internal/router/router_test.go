package router

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plantcareapi/internal/api"
	"plantcareapi/internal/api/apitest"
	"plantcareapi/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func do(t *testing.T, h http.Handler, method, target string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI_RequiresSession(t *testing.T) {
	h, _ := apitest.NewHandler(t)
	r := New(h)

	for _, target := range []string{"/api/plants", "/api/plants/" + bson.NewObjectID().Hex()} {
		rec := do(t, r, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.JSONEq(t, `{"error":"Nicht authentifiziert."}`, rec.Body.String())
	}

	rec := do(t, r, http.MethodPost, "/api/identify", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_WithSession(t *testing.T) {
	h, _ := apitest.NewHandler(t)
	r := New(h)

	rec := do(t, r, http.MethodGet, "/api/plants", apitest.SessionCookie(t, bson.NewObjectID()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/api/user", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, r, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionGate(t *testing.T) {
	h, _ := apitest.NewHandler(t)
	r := New(h)
	cookie := apitest.SessionCookie(t, bson.NewObjectID())

	tests := []struct {
		name     string
		target   string
		cookie   *http.Cookie
		location string
	}{
		{"root anonymous", "/", nil, "/login"},
		{"root with session", "/", cookie, "/dashboard"},
		{"protected page", "/plants/42", nil, "/login?redirectTo=%2Fplants%2F42"},
		{"update password needs session", "/update-password", nil, "/login?redirectTo=%2Fupdate-password"},
		{"login with session", "/login", cookie, "/dashboard"},
		{"register with session", "/register", cookie, "/dashboard"},
		{"invalid callback link", "/auth/callback?token=nope&type=signup", nil, "/login?error=link_expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, r, http.MethodGet, tt.target, tt.cookie)
			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}
}

func TestSessionGate_PassesThrough(t *testing.T) {
	h, _ := apitest.NewHandler(t)
	r := New(h)

	// no frontend configured, so anything let through is a 404
	for _, target := range []string{"/login", "/reset-password", "/assets/app.js", "/favicon.ico"} {
		rec := do(t, r, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestPages_ServesFrontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>plantcare</html>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))

	h, _ := apitest.NewHandler(t)
	h.Config.WebDir = dir
	r := New(h)

	rec := do(t, r, http.MethodGet, "/assets/app.js", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	rec = do(t, r, http.MethodGet, "/dashboard", apitest.SessionCookie(t, bson.NewObjectID()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "plantcare"))

	rec = do(t, r, http.MethodGet, "/assets/missing.js", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func login(r http.Handler, forwardedFor string) int {
	body := `{"email":"anna@example.de","password":"Falsch123"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	req.Header.Set("X-Real-IP", forwardedFor)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestLoginLimit_IgnoresForwardedHeaders(t *testing.T) {
	h, _ := apitest.NewHandler(t)
	r := New(h)

	limited := 0
	for i := 0; i < 50; i++ {
		if login(r, fmt.Sprintf("203.0.113.%d", i+1)) == http.StatusTooManyRequests {
			limited++
		}
	}

	// the bucket refills while passwords are hashed, leave room for that
	assert.GreaterOrEqual(t, limited, 50-config.LOGIN_RATE_BURST-10)
}

func TestLoginLimit_TrustedProxy(t *testing.T) {
	h, _ := apitest.NewHandler(t)
	// httptest requests come from 192.0.2.1
	trusted, err := api.ParseTrustedProxies([]string{"192.0.2.0/24"})
	require.NoError(t, err)
	h.LoginLimiter.TrustedProxies = trusted
	r := New(h)

	// distinct clients behind the proxy get their own buckets
	for i := 0; i < 2*config.LOGIN_RATE_BURST; i++ {
		assert.NotEqual(t, http.StatusTooManyRequests, login(r, fmt.Sprintf("203.0.113.%d", i+1)))
	}

	// one client behind the proxy is still limited
	limited := false
	for i := 0; i < 2*config.LOGIN_RATE_BURST; i++ {
		if login(r, "198.51.100.7") == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)
}
