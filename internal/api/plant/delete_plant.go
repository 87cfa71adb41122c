package plant

import (
	"errors"
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// DeletePlant removes the stored photo objects first, then the photo rows
// and the plant itself.
func (h *Handler) DeletePlant(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r}

	plantId, ok := pathId(r, "id")
	if !ok {
		resParams.Code = http.StatusNotFound
		resParams.ResData = api.ErrMsg(MSG_NOT_FOUND)
		h.Res(resParams)
		return
	}
	resParams.ReqData = plantId

	if _, err := h.Plants.GetPlant(ctx, uid, plantId); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resParams.Code = http.StatusNotFound
			resParams.ResData = api.ErrMsg(MSG_NOT_FOUND)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_DELETE_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	photos, err := h.Photos.ListPhotos(ctx, uid, []bson.ObjectID{plantId})
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_DELETE_FAILED)
		h.Res(resParams)
		return
	}

	if len(photos) > 0 {
		// orphaned objects are preferable to a plant that cannot be deleted
		if err := h.Blobs.DeleteObjects(ctx, storagePaths(photos)); err != nil {
			h.Logger.Warn("delete photo objects failed", zap.Error(err), zap.String("plant", plantId.Hex()))
		}
	}

	if err := h.Photos.DeletePhotosForPlant(ctx, uid, plantId); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_DELETE_FAILED)
		h.Res(resParams)
		return
	}

	if err := h.Plants.DeletePlant(ctx, uid, plantId); err != nil && !errors.Is(err, store.ErrNotFound) {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_DELETE_FAILED)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusNoContent
	h.Res(resParams)

}

func storagePaths(photos []schemas.PlantPhoto) []string {
	paths := make([]string, len(photos))
	for i := range photos {
		paths[i] = photos[i].StoragePath
	}
	return paths
}
