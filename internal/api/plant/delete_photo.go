package plant

import (
	"errors"
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/store"

	"go.uber.org/zap"
)

// DeletePhoto removes a photo. If it was the cover, the oldest remaining
// photo takes over. Delete and reassignment are two separate writes.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r}

	plantId, ok1 := pathId(r, "id")
	photoId, ok2 := pathId(r, "photoId")
	if !ok1 || !ok2 {
		resParams.Code = http.StatusNotFound
		resParams.ResData = api.ErrMsg(MSG_PHOTO_NOT_FOUND)
		h.Res(resParams)
		return
	}
	resParams.ReqData = photoId

	photo, err := h.Photos.GetPhoto(ctx, uid, plantId, photoId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resParams.Code = http.StatusNotFound
			resParams.ResData = api.ErrMsg(MSG_PHOTO_NOT_FOUND)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_PHOTO_DEL_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	if err := h.Blobs.DeleteObjects(ctx, []string{photo.StoragePath}); err != nil {
		h.Logger.Warn("delete photo object failed", zap.Error(err), zap.String("path", photo.StoragePath))
	}

	if err := h.Photos.DeletePhoto(ctx, uid, photoId); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_PHOTO_DEL_FAILED)
		h.Res(resParams)
		return
	}

	if photo.IsCover {
		next, err := h.Photos.OldestPhoto(ctx, uid, plantId)
		if err == nil {
			_, err = h.Photos.SetCover(ctx, uid, next.Id)
		}
		// the photo is gone either way, a missing cover heals on the next set-cover
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			h.Logger.Warn("reassign cover failed", zap.Error(err), zap.String("plant", plantId.Hex()))
		}
	}

	resParams.Code = http.StatusNoContent
	h.Res(resParams)

}
