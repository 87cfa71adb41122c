package auth

import (
	"errors"
	"net/http"
	"strings"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// compared against when the email is unknown so both paths cost one bcrypt
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password"), bcrypt.DefaultCost)

type loginRes struct {
	User       *schemas.PublicUser `json:"user"`
	RedirectTo string              `json:"redirectTo"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	ctx := r.Context()
	resParams := &api.ResParams{W: w, R: r}

	var reqData struct {
		Email      string `json:"email" validate:"required,email"`
		Password   string `json:"password" validate:"required"`
		RedirectTo string `json:"redirectTo"`
	}

	if !h.decodeBody(resParams, &reqData) {
		return
	}

	// normalize
	reqData.Email = strings.TrimSpace(strings.ToLower(reqData.Email))
	if reqData.RedirectTo == "" {
		reqData.RedirectTo = r.URL.Query().Get("redirectTo")
	}

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

	user, err := h.Users.GetUserByEmail(ctx, reqData.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(api.MSG_INTERNAL)
		h.Res(resParams)
		return
	}

	passHash := dummyHash
	if user != nil {
		passHash = []byte(user.PassHash)
	}
	err = bcrypt.CompareHashAndPassword(passHash, []byte(password))
	if user == nil || err != nil || !user.EmailVerified {
		if err == nil {
			err = errors.New("unknown or unconfirmed account")
		}
		resParams.Code = http.StatusUnauthorized
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_BAD_CREDENTIALS)
		h.Res(resParams)
		return
	}

	if err := utils.SetSessionCookie(w, user.Id, h.Config.JWTSecret, h.Config.CookieSecure); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(api.MSG_INTERNAL)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = &loginRes{
		User:       user.Public(),
		RedirectTo: utils.SafeRedirect(reqData.RedirectTo, config.DEFAULT_REDIRECT),
	}
	h.Res(resParams)

}
