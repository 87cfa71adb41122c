package identify

import "plantcareapi/internal/api"

const (
	MSG_RATE_LIMITED = "Zu viele Anfragen. Bitte versuche es später erneut."
	MSG_UNAVAILABLE  = "Pflanzenidentifikation ist derzeit nicht verfügbar."
	MSG_NO_IMAGE     = "Kein Bild übermittelt."
	MSG_TOO_LARGE    = "Bild zu groß."
	MSG_TIMEOUT      = "Zeitlimit überschritten. Bitte versuche es erneut."
	MSG_FAILED       = "Fehler bei der Pflanzenidentifikation."
)

type Handler struct {
	*api.Handler
}
