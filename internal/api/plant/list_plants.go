package plant

import (
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/schemas"
)

// ListPlants supports ?sort=newest (default) and ?sort=alphabetical.
func (h *Handler) ListPlants(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r}

	sort := schemas.ParseSortOption(r.URL.Query().Get("sort"))
	resParams.ReqData = sort

	plants, err := h.Plants.ListPlants(ctx, uid, sort, config.PLANT_LIST_LIMIT)
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_LOAD_FAILED)
		h.Res(resParams)
		return
	}

	if err := h.withPhotos(ctx, uid, plants); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_LOAD_FAILED)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = plants
	h.Res(resParams)

}
