package user

import (
	"errors"
	"net/http"
	"time"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	"go.uber.org/zap"
)

// GetUser returns the signed in user. Sessions close to expiry get a fresh
// cookie so active users stay signed in.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r, ReqData: uid}

	user, err := h.Users.GetUserById(ctx, uid)
	if err != nil {
		resParams.Err = err
		if errors.Is(err, store.ErrNotFound) {
			// account deleted while the session was alive
			utils.ClearSessionCookie(w, h.Config.CookieSecure)
			resParams.Code = http.StatusUnauthorized
			resParams.ResData = api.ErrMsg(MSG_USER_GONE)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_LOAD_FAILED)
		}
		h.Res(resParams)
		return
	}

	// refresh token if expiring soon
	if authToken, err := utils.ValidateAuthToken(r, h.Config.JWTSecret); err == nil &&
		authToken.ExpiresAt != nil && time.Until(authToken.ExpiresAt.Time) < config.SESSION_REFRESH {
		if err := utils.SetSessionCookie(w, uid, h.Config.JWTSecret, h.Config.CookieSecure); err != nil {
			h.Logger.Warn("session refresh failed", zap.Error(err))
		}
	}

	resParams.Code = http.StatusOK
	resParams.ResData = user.Public()
	h.Res(resParams)

}
