package auth

import (
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/utils"

	"go.uber.org/zap"
)

const LINK_EXPIRED_REDIRECT = "/login?error=link_expired"

// Callback consumes a single-use email link and starts a session.
// type=recovery leads to /update-password, everything else to /dashboard.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()
	token := r.URL.Query().Get("token")
	recovery := r.URL.Query().Get("type") == "recovery"

	purpose, target := utils.PURPOSE_CONFIRM, config.DEFAULT_REDIRECT
	if recovery {
		purpose, target = utils.PURPOSE_RECOVERY, "/update-password"
	}

	if token == "" {
		http.Redirect(w, r, LINK_EXPIRED_REDIRECT, http.StatusSeeOther)
		return
	}

	uidHex, err := h.Tokens.ConsumeLinkToken(ctx, purpose, token)
	if err != nil {
		h.Logger.Warn("link token rejected", zap.Error(err), zap.String("purpose", purpose))
		http.Redirect(w, r, LINK_EXPIRED_REDIRECT, http.StatusSeeOther)
		return
	}

	uid, ok := api.ParseObjectId(uidHex)
	if !ok {
		http.Redirect(w, r, LINK_EXPIRED_REDIRECT, http.StatusSeeOther)
		return
	}

	if !recovery {
		if err := h.Users.SetEmailVerified(ctx, uid); err != nil {
			h.Logger.Error("verify email", zap.Error(err), zap.String("uid", uidHex))
			http.Redirect(w, r, LINK_EXPIRED_REDIRECT, http.StatusSeeOther)
			return
		}
	}

	if err := utils.SetSessionCookie(w, uid, h.Config.JWTSecret, h.Config.CookieSecure); err != nil {
		h.Logger.Error("set session", zap.Error(err))
		http.Redirect(w, r, LINK_EXPIRED_REDIRECT, http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)

}
