package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"plantcareapi/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const testSecret = "test-secret"

func TestSessionCookie_RoundTrip(t *testing.T) {
	uid := bson.NewObjectID()

	rec := httptest.NewRecorder()
	require.NoError(t, SetSessionCookie(rec, uid, testSecret, true))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, config.SESSION_COOKIE, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)

	req := httptest.NewRequest(http.MethodGet, "/api/plants", nil)
	req.AddCookie(cookies[0])

	token, err := ValidateAuthToken(req, testSecret)
	require.NoError(t, err)
	got, err := token.GetUidObjectId()
	require.NoError(t, err)
	assert.Equal(t, uid, got)
}

func TestValidateAuthToken_BearerHeader(t *testing.T) {
	uid := bson.NewObjectID()
	signed, err := CreateNewAuthToken(uid).Sign(testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/plants", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	token, err := ValidateAuthToken(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, uid.Hex(), token.Uid)
}

func TestValidateAuthToken_Rejects(t *testing.T) {
	uid := bson.NewObjectID()

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := ValidateAuthToken(req, testSecret)
		assert.ErrorIs(t, err, ErrMissingToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		signed, err := CreateNewAuthToken(uid).Sign("other")
		require.NoError(t, err)
		_, err = ParseAuthToken(signed, testSecret)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token := CreateNewAuthToken(uid)
		token.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		signed, err := token.Sign(testSecret)
		require.NoError(t, err)
		_, err = ParseAuthToken(signed, testSecret)
		assert.Error(t, err)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "garbage")
		_, err := ValidateAuthToken(req, testSecret)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
