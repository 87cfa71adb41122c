package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"plantcareapi/internal/api/apitest"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/schemas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestHandler(t *testing.T) (*Handler, *apitest.Fakes) {
	h, f := apitest.NewHandler(t)
	return &Handler{Handler: h}, f
}

func postJSON(t *testing.T, f http.HandlerFunc, target string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == config.SESSION_COOKIE && c.Value != "" {
			return c
		}
	}
	return nil
}

func seedUser(t *testing.T, f *apitest.Fakes, email, password string, verified bool) *schemas.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &schemas.User{Email: email, PassHash: string(hash), EmailVerified: verified}
	require.NoError(t, f.Users.CreateUser(context.Background(), user))
	return user
}

func TestRegister_RequiresConfirmation(t *testing.T) {
	h, f := newTestHandler(t)

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email": "  Anna@Example.DE ", "password": "Geheim123",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["session"])
	assert.Nil(t, body["user"])
	assert.Equal(t, MSG_CONFIRM_EMAIL, body["message"])
	assert.Nil(t, sessionCookie(rec))

	user, err := f.Users.GetUserByEmail(context.Background(), "anna@example.de")
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, "Geheim123", user.PassHash)

	require.Len(t, f.Mailer.Sent, 1)
	sent := f.Mailer.Sent[0]
	assert.Equal(t, "confirm", sent.Kind)
	assert.Equal(t, "anna@example.de", sent.To)

	link, err := url.Parse(sent.Link)
	require.NoError(t, err)
	assert.Equal(t, "plants.test", link.Host)
	assert.Equal(t, "/auth/callback", link.Path)
	assert.Equal(t, "signup", link.Query().Get("type"))
	assert.NotEmpty(t, link.Query().Get("token"))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	for _, verified := range []bool{false, true} {
		h, f := newTestHandler(t)
		seedUser(t, f, "anna@example.de", "Geheim123", verified)

		rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
			"email": "anna@example.de", "password": "Anders456",
		})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Diese E-Mail-Adresse ist bereits registriert.", decode(t, rec)["error"])
		assert.Empty(t, f.Mailer.Sent)
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	h, f := newTestHandler(t)

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email": "anna@example.de", "password": "schwach",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, MSG_INVALID_INPUT, body["error"])
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "password")
	assert.Equal(t, 0, f.Users.Count())

	rec = postJSON(t, h.Register, "/api/auth/register", map[string]any{"email": "a@b.de", "password": "Geheim123", "extra": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MissingAppURL(t *testing.T) {
	h, f := newTestHandler(t)
	h.Config.AppBaseURL = ""

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email": "anna@example.de", "password": "Geheim123",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MSG_CONFIG_ERROR, decode(t, rec)["error"])
	assert.Equal(t, 0, f.Users.Count())
}

func TestRegister_WithoutConfirmationStartsSession(t *testing.T) {
	h, f := newTestHandler(t)
	h.Config.EmailConfirmation = false

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email": "anna@example.de", "password": "Geheim123",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["session"])
	assert.Equal(t, "anna@example.de", body["user"].(map[string]any)["email"])
	assert.NotNil(t, sessionCookie(rec))
	assert.Empty(t, f.Mailer.Sent)
}

func TestRegister_MailFailureRollsBackUser(t *testing.T) {
	h, f := newTestHandler(t)
	f.Mailer.Err = errors.New("ses down")

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{
		"email": "anna@example.de", "password": "Geheim123",
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, MSG_REGISTER_FAILED, decode(t, rec)["error"])
	assert.Equal(t, 0, f.Users.Count())
}

func TestLogin_RedirectTo(t *testing.T) {
	tests := []struct {
		redirectTo string
		want       string
	}{
		{"/plants/42", "/plants/42"},
		{"//evil.com", "/dashboard"},
		{"https://evil.com", "/dashboard"},
		{"", "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.redirectTo, func(t *testing.T) {
			h, f := newTestHandler(t)
			user := seedUser(t, f, "anna@example.de", "Geheim123", true)

			rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{
				"email": "anna@example.de", "password": "Geheim123", "redirectTo": tt.redirectTo,
			})

			require.Equal(t, http.StatusOK, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.want, body["redirectTo"])
			assert.Equal(t, user.Id.Hex(), body["user"].(map[string]any)["id"])
			assert.NotNil(t, sessionCookie(rec))
		})
	}
}

func TestLogin_RedirectToFromQuery(t *testing.T) {
	h, f := newTestHandler(t)
	seedUser(t, f, "anna@example.de", "Geheim123", true)

	rec := postJSON(t, h.Login, "/api/auth/login?redirectTo=%2Fplants%2F42", map[string]string{
		"email": "anna@example.de", "password": "Geheim123",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/plants/42", decode(t, rec)["redirectTo"])
}

func TestLogin_Rejects(t *testing.T) {
	h, f := newTestHandler(t)
	seedUser(t, f, "anna@example.de", "Geheim123", true)
	seedUser(t, f, "bernd@example.de", "Geheim123", false)

	cases := map[string]map[string]string{
		"wrong password": {"email": "anna@example.de", "password": "Falsch123"},
		"unknown email":  {"email": "niemand@example.de", "password": "Geheim123"},
		"unconfirmed":    {"email": "bernd@example.de", "password": "Geheim123"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := postJSON(t, h.Login, "/api/auth/login", body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, MSG_BAD_CREDENTIALS, decode(t, rec)["error"])
			assert.Nil(t, sessionCookie(rec))
		})
	}

	rec := postJSON(t, h.Login, "/api/auth/login", map[string]string{"email": "kaputt", "password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_BruteForceLimit(t *testing.T) {
	h, f := newTestHandler(t)
	seedUser(t, f, "anna@example.de", "Geheim123", true)
	login := h.LoginRateLimit(h.Login)

	var last int
	for i := 0; i < config.LOGIN_RATE_BURST+1; i++ {
		last = postJSON(t, login, "/api/auth/login", map[string]string{"email": "anna@example.de", "password": "Falsch123"}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestResetPassword(t *testing.T) {
	h, f := newTestHandler(t)
	seedUser(t, f, "anna@example.de", "Geheim123", true)

	start := time.Now()
	rec := postJSON(t, h.ResetPassword, "/api/auth/reset-password", map[string]string{"email": "niemand@example.de"})
	assert.GreaterOrEqual(t, time.Since(start), config.RESET_MIN_DURATION)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MSG_RESET_SENT, decode(t, rec)["message"])
	assert.Empty(t, f.Mailer.Sent)

	rec = postJSON(t, h.ResetPassword, "/api/auth/reset-password", map[string]string{"email": "Anna@example.de"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MSG_RESET_SENT, decode(t, rec)["message"])
	require.Len(t, f.Mailer.Sent, 1)
	assert.Equal(t, "recovery", f.Mailer.Sent[0].Kind)
	assert.Contains(t, f.Mailer.Sent[0].Link, "type=recovery")
}

func TestResetPassword_MailFailureLooksTheSame(t *testing.T) {
	h, f := newTestHandler(t)
	seedUser(t, f, "anna@example.de", "Geheim123", true)
	f.Mailer.Err = errors.New("ses down")

	rec := postJSON(t, h.ResetPassword, "/api/auth/reset-password", map[string]string{"email": "anna@example.de"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MSG_RESET_SENT, decode(t, rec)["message"])
}

func callback(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Callback(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestCallback_Signup(t *testing.T) {
	h, f := newTestHandler(t)

	rec := postJSON(t, h.Register, "/api/auth/register", map[string]string{"email": "anna@example.de", "password": "Geheim123"})
	require.Equal(t, http.StatusOK, rec.Code)
	link, err := url.Parse(f.Mailer.Sent[0].Link)
	require.NoError(t, err)

	rec = callback(h, link.RequestURI())
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.NotNil(t, sessionCookie(rec))

	user, err := f.Users.GetUserByEmail(context.Background(), "anna@example.de")
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	// links work once
	rec = callback(h, link.RequestURI())
	assert.Equal(t, LINK_EXPIRED_REDIRECT, rec.Header().Get("Location"))
	assert.Nil(t, sessionCookie(rec))

	// now the account can log in
	rec = postJSON(t, h.Login, "/api/auth/login", map[string]string{"email": "anna@example.de", "password": "Geheim123"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCallback_RecoveryThenUpdatePassword(t *testing.T) {
	h, f := newTestHandler(t)
	user := seedUser(t, f, "anna@example.de", "Geheim123", true)

	postJSON(t, h.ResetPassword, "/api/auth/reset-password", map[string]string{"email": "anna@example.de"})
	require.Len(t, f.Mailer.Sent, 1)
	link, err := url.Parse(f.Mailer.Sent[0].Link)
	require.NoError(t, err)

	rec := callback(h, link.RequestURI())
	require.Equal(t, "/update-password", rec.Header().Get("Location"))
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	rec = postJSON(t, h.UpdatePassword, "/api/auth/update-password", map[string]string{"password": "NeuesPw789"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MSG_PASSWORD_OK, decode(t, rec)["message"])

	updated, err := f.Users.GetUserById(context.Background(), user.Id)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PassHash), []byte("NeuesPw789")))
}

func TestCallback_InvalidLinks(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, target := range []string{"/auth/callback", "/auth/callback?token=nope", "/auth/callback?token=nope&type=recovery"} {
		rec := callback(h, target)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, LINK_EXPIRED_REDIRECT, rec.Header().Get("Location"))
	}
}

func TestUpdatePassword_RequiresSession(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.UpdatePassword, "/api/auth/update-password", map[string]string{"password": "NeuesPw789"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, MSG_LINK_EXPIRED, decode(t, rec)["error"])

	cookie := apitest.SessionCookie(t, bson.NewObjectID())
	rec = postJSON(t, h.UpdatePassword, "/api/auth/update-password", map[string]string{"password": "kurz"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogout(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postJSON(t, h.Logout, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, config.SESSION_COOKIE, cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
