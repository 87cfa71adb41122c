package auth

import (
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/utils"
)

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {

	utils.ClearSessionCookie(w, h.Config.CookieSecure)

	h.Res(&api.ResParams{
		W:    w,
		R:    r,
		Code: http.StatusOK,
		ResData: &struct {
			Message string `json:"message"`
		}{Message: MSG_LOGGED_OUT},
	})

}
