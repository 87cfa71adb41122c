package utils

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"plantcareapi/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var ErrMissingToken = errors.New("missing token")
var ErrInvalidToken = errors.New("invalid token")

type AuthToken struct {
	Uid string `json:"uid"`
	jwt.RegisteredClaims
}

func CreateNewAuthToken(uid bson.ObjectID) *AuthToken {

	now := time.Now().UTC()
	return &AuthToken{
		Uid: uid.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(config.SESSION_DURATION)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "plantcareapi",
		},
	}

}

// ValidateAuthToken reads the session cookie, falling back to a bearer
// Authorization header.
func ValidateAuthToken(r *http.Request, secret string) (*AuthToken, error) {

	var raw string
	if cookie, err := r.Cookie(config.SESSION_COOKIE); err == nil && cookie.Value != "" {
		raw = cookie.Value
	} else if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return nil, ErrInvalidToken
		}
		raw = parts[1]
	} else {
		return nil, ErrMissingToken
	}

	return ParseAuthToken(raw, secret)

}

func ParseAuthToken(raw string, secret string) (*AuthToken, error) {

	var authToken AuthToken
	token, err := jwt.ParseWithClaims(raw, &authToken, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &authToken, nil

}

func (authToken *AuthToken) Sign(secret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, authToken)
	return token.SignedString([]byte(secret))
}

func (authToken *AuthToken) GetUidObjectId() (bson.ObjectID, error) {
	return bson.ObjectIDFromHex(authToken.Uid)
}

// SetSessionCookie signs a fresh token for uid and attaches it to the response.
func SetSessionCookie(w http.ResponseWriter, uid bson.ObjectID, secret string, secure bool) error {

	signed, err := CreateNewAuthToken(uid).Sign(secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.SESSION_COOKIE,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(config.SESSION_DURATION.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil

}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.SESSION_COOKIE,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
