package auth

import (
	"encoding/json"
	"net/http"

	"plantcareapi/internal/api"
)

const (
	MSG_INVALID_INPUT   = "Ungueltige Eingaben."
	MSG_CONFIG_ERROR    = "Server-Konfigurationsfehler."
	MSG_EMAIL_TAKEN     = "Diese E-Mail-Adresse ist bereits registriert."
	MSG_REGISTER_FAILED = "Registrierung fehlgeschlagen. Bitte versuche es erneut."
	MSG_CONFIRM_EMAIL   = "Bitte ueberprüfe deine E-Mails, um dein Konto zu aktivieren."
	MSG_BAD_CREDENTIALS = "E-Mail oder Passwort ist falsch."
	MSG_RESET_SENT      = "Falls ein Konto mit dieser E-Mail existiert, wurde ein Link gesendet."
	MSG_LINK_EXPIRED    = "Nicht authentifiziert. Der Link ist moeglicherweise abgelaufen."
	MSG_PASSWORD_FAILED = "Passwort konnte nicht aktualisiert werden. Bitte versuche es erneut."
	MSG_PASSWORD_OK     = "Passwort erfolgreich aktualisiert."
	MSG_LOGGED_OUT      = "Erfolgreich abgemeldet."
)

type Handler struct {
	*api.Handler
}

// decodeBody decodes a strict json body, answering 400 itself on failure.
func (h *Handler) decodeBody(resParams *api.ResParams, dst any) bool {

	decoder := json.NewDecoder(resParams.R.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_INVALID_INPUT)
		h.Res(resParams)
		return false
	}

	return true

}
