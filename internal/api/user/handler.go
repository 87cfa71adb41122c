package user

import "plantcareapi/internal/api"

const (
	MSG_USER_GONE   = "Benutzer existiert nicht mehr."
	MSG_LOAD_FAILED = "Fehler beim Laden des Benutzers."
)

type Handler struct {
	*api.Handler
}
