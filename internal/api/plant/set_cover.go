package plant

import (
	"errors"
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/store"
)

func (h *Handler) SetCover(w http.ResponseWriter, r *http.Request) {

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

	if _, err := h.Photos.GetPhoto(ctx, uid, plantId, photoId); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resParams.Code = http.StatusNotFound
			resParams.ResData = api.ErrMsg(MSG_PHOTO_NOT_FOUND)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_COVER_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	// at most one cover per plant
	if err := h.Photos.ClearCover(ctx, uid, plantId); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_COVER_FAILED)
		h.Res(resParams)
		return
	}

	photo, err := h.Photos.SetCover(ctx, uid, photoId)
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_COVER_FAILED)
		h.Res(resParams)
		return
	}

	h.sign(ctx, photo)

	resParams.Code = http.StatusOK
	resParams.ResData = photo
	h.Res(resParams)

}
