package auth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

type registerRes struct {
	User    *schemas.PublicUser `json:"user"`
	Session bool                `json:"session"`
	Message string              `json:"message,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	ctx := r.Context()
	resParams := &api.ResParams{W: w, R: r}

	var reqData struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,password"`
	}

	if !h.decodeBody(resParams, &reqData) {
		return
	}

	// normalize
	reqData.Email = strings.TrimSpace(strings.ToLower(reqData.Email))

	if err := h.Validate.Struct(&reqData); err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.Err = err
		resParams.ResData = api.ValidationErr(MSG_INVALID_INPUT, err)
		h.Res(resParams)
		return
	}
	password := reqData.Password
	reqData.Password = ""
	resParams.ReqData = reqData

	// confirmation links need the public app url
	if h.Config.AppBaseURL == "" {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = errors.New("APP_BASE_URL not configured")
		resParams.ResData = api.ErrMsg(MSG_CONFIG_ERROR)
		h.Res(resParams)
		return
	}

	// hash password
	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(api.MSG_INTERNAL)
		h.Res(resParams)
		return
	}

	newUser := &schemas.User{
		Ctime:         time.Now().UTC(),
		Email:         reqData.Email,
		EmailVerified: !h.Config.EmailConfirmation,
		PassHash:      string(passHash),
	}

	// unique index by email, same answer whether or not the address was confirmed
	if err := h.Users.CreateUser(ctx, newUser); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			resParams.Code = http.StatusConflict
			resParams.ResData = api.ErrMsg(MSG_EMAIL_TAKEN)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_REGISTER_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	if !h.Config.EmailConfirmation {
		if err := utils.SetSessionCookie(w, newUser.Id, h.Config.JWTSecret, h.Config.CookieSecure); err != nil {
			resParams.Code = http.StatusInternalServerError
			resParams.Err = err
			resParams.ResData = api.ErrMsg(api.MSG_INTERNAL)
			h.Res(resParams)
			return
		}
		resParams.Code = http.StatusOK
		resParams.ResData = &registerRes{User: newUser.Public(), Session: true}
		h.Res(resParams)
		return
	}

	if err := h.sendConfirmation(r, newUser); err != nil {
		// without the mail the account could never be activated
		if delErr := h.Users.DeleteUser(ctx, newUser.Id); delErr != nil {
			err = errors.Join(err, delErr)
		}
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_REGISTER_FAILED)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = &registerRes{User: nil, Session: false, Message: MSG_CONFIRM_EMAIL}
	h.Res(resParams)

}

func (h *Handler) sendConfirmation(r *http.Request, user *schemas.User) error {

	token, err := h.Tokens.IssueLinkToken(r.Context(), utils.PURPOSE_CONFIRM, user.Id.Hex(), config.CONFIRM_TOKEN_TTL)
	if err != nil {
		return err
	}

	return h.Mailer.SendConfirmation(r.Context(), user.Email, callbackLink(h.Config.AppBaseURL, token, "signup"))

}

func callbackLink(appBaseURL string, token string, linkType string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("type", linkType)
	return strings.TrimRight(appBaseURL, "/") + "/auth/callback?" + q.Encode()
}
