package plant

import (
	"errors"
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"
)

func (h *Handler) GetPlant(w http.ResponseWriter, r *http.Request) {

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

	plant, err := h.Plants.GetPlant(ctx, uid, plantId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resParams.Code = http.StatusNotFound
			resParams.ResData = api.ErrMsg(MSG_NOT_FOUND)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_LOAD_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	plants := []schemas.Plant{*plant}
	if err := h.withPhotos(ctx, uid, plants); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_LOAD_FAILED)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = &plants[0]
	h.Res(resParams)

}
