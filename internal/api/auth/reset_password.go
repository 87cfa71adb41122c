package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	"go.uber.org/zap"
)

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	resParams := &api.ResParams{W: w, R: r}

	var reqData struct {
		Email string `json:"email" validate:"required,email"`
	}

	if !h.decodeBody(resParams, &reqData) {
		return
	}

	// normalize
	reqData.Email = strings.TrimSpace(strings.ToLower(reqData.Email))
	resParams.ReqData = reqData

	if err := h.Validate.Struct(&reqData); err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.Err = err
		resParams.ResData = api.ValidationErr(MSG_INVALID_INPUT, err)
		h.Res(resParams)
		return
	}

	if h.Config.AppBaseURL == "" {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = errors.New("APP_BASE_URL not configured")
		resParams.ResData = api.ErrMsg(MSG_CONFIG_ERROR)
		h.Res(resParams)
		return
	}

	// known and unknown addresses take at least the same time
	minDelay := time.After(config.RESET_MIN_DURATION)
	err := h.sendRecovery(r, reqData.Email)
	<-minDelay

	// failures are logged but never change the answer
	if err != nil {
		h.Logger.Error("password recovery failed", zap.Error(err), zap.Any("request_data", reqData))
	}

	resParams.Code = http.StatusOK
	resParams.ResData = &struct {
		Message string `json:"message"`
	}{Message: MSG_RESET_SENT}
	h.Res(resParams)

}

func (h *Handler) sendRecovery(r *http.Request, email string) error {

	ctx := r.Context()
	user, err := h.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	token, err := h.Tokens.IssueLinkToken(ctx, utils.PURPOSE_RECOVERY, user.Id.Hex(), config.RECOVERY_TOKEN_TTL)
	if err != nil {
		return err
	}

	return h.Mailer.SendPasswordReset(ctx, user.Email, callbackLink(h.Config.AppBaseURL, token, "recovery"))

}
