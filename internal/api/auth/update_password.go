package auth

import (
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// UpdatePassword needs the session set by a recovery link (or a normal login).
func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	ctx := r.Context()
	resParams := &api.ResParams{W: w, R: r}

	var reqData struct {
		Password string `json:"password" validate:"required,password"`
	}

	if !h.decodeBody(resParams, &reqData) {
		return
	}

	if err := h.Validate.Struct(&reqData); err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.Err = err
		resParams.ResData = api.ValidationErr(MSG_INVALID_INPUT, err)
		h.Res(resParams)
		return
	}

	authToken, err := utils.ValidateAuthToken(r, h.Config.JWTSecret)
	if err != nil {
		resParams.Code = http.StatusUnauthorized
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_LINK_EXPIRED)
		h.Res(resParams)
		return
	}
	uid, err := authToken.GetUidObjectId()
	if err != nil {
		resParams.Code = http.StatusUnauthorized
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_LINK_EXPIRED)
		h.Res(resParams)
		return
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(reqData.Password), bcrypt.DefaultCost)
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_PASSWORD_FAILED)
		h.Res(resParams)
		return
	}

	if err := h.Users.SetPassHash(ctx, uid, string(passHash)); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_PASSWORD_FAILED)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = &struct {
		Message string `json:"message"`
	}{Message: MSG_PASSWORD_OK}
	h.Res(resParams)

}
