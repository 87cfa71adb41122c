package plant

import (
	"context"
	"encoding/json"
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/schemas"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	MSG_INVALID_JSON      = "Ungültiges JSON."
	MSG_INVALID_INPUT     = "Ungültige Eingabe."
	MSG_NOT_FOUND         = "Pflanze nicht gefunden."
	MSG_NOT_FOUND_OR_DENY = "Pflanze nicht gefunden oder Zugriff verweigert."
	MSG_LOAD_FAILED       = "Fehler beim Laden der Pflanzen."
	MSG_CREATE_FAILED     = "Fehler beim Anlegen der Pflanze."
	MSG_DELETE_FAILED     = "Fehler beim Löschen der Pflanze."
	MSG_PHOTO_LIMIT       = "Maximale Anzahl von 5 Fotos erreicht."
	MSG_NO_FILE           = "Keine Datei übermittelt."
	MSG_FILE_TOO_LARGE    = "Datei zu groß. Maximal 5 MB erlaubt."
	MSG_UPLOAD_FAILED     = "Foto-Upload fehlgeschlagen."
	MSG_UPLOAD_BUSY       = "Es läuft bereits ein Upload für diese Pflanze."
	MSG_PHOTO_SAVE_FAILED = "Fehler beim Speichern des Fotos."
	MSG_PHOTO_NOT_FOUND   = "Foto nicht gefunden."
	MSG_PHOTO_DEL_FAILED  = "Fehler beim Löschen des Fotos."
	MSG_COVER_FAILED      = "Fehler beim Setzen des Covers."
)

type Handler struct {
	*api.Handler
}

func (h *Handler) decodeBody(resParams *api.ResParams, dst any) bool {

	decoder := json.NewDecoder(resParams.R.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_INVALID_JSON)
		h.Res(resParams)
		return false
	}

	return true

}

// pathId reads an object id path parameter. Malformed ids are reported as
// not found, like ids of other users.
func pathId(r *http.Request, name string) (bson.ObjectID, bool) {
	return api.ParseObjectId(chi.URLParam(r, name))
}

// withPhotos attaches the photos, oldest first, with fresh signed urls.
func (h *Handler) withPhotos(ctx context.Context, uid bson.ObjectID, plants []schemas.Plant) error {

	if len(plants) == 0 {
		return nil
	}

	ids := make([]bson.ObjectID, len(plants))
	index := make(map[bson.ObjectID]int, len(plants))
	for i := range plants {
		ids[i] = plants[i].Id
		index[plants[i].Id] = i
		plants[i].Photos = []schemas.PlantPhoto{}
	}

	photos, err := h.Photos.ListPhotos(ctx, uid, ids)
	if err != nil {
		return err
	}

	for _, photo := range photos {
		h.sign(ctx, &photo)
		i := index[photo.PlantId]
		plants[i].Photos = append(plants[i].Photos, photo)
	}

	return nil

}

// a failed signature leaves the url empty instead of failing the request
func (h *Handler) sign(ctx context.Context, photo *schemas.PlantPhoto) {
	url, err := h.Blobs.SignedURL(ctx, photo.StoragePath, config.SIGNED_URL_TTL)
	if err != nil {
		h.Logger.Warn("sign photo url failed", zap.Error(err), zap.String("path", photo.StoragePath))
		url = ""
	}
	photo.Url = url
}
