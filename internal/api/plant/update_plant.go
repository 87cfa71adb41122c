package plant

import (
	"errors"
	"net/http"
	"strings"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"
)

// UpdatePlant applies a partial update. Absent fields stay, null clears.
func (h *Handler) UpdatePlant(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r}

	plantId, ok := pathId(r, "id")
	if !ok {
		resParams.Code = http.StatusNotFound
		resParams.ResData = api.ErrMsg(MSG_NOT_FOUND_OR_DENY)
		h.Res(resParams)
		return
	}

	var reqData schemas.PlantUpdate
	if !h.decodeBody(resParams, &reqData) {
		return
	}
	resParams.ReqData = reqData

	if err := h.Validate.Struct(&reqData); err != nil {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.Err = err
		resParams.ResData = api.ValidationErr(MSG_INVALID_INPUT, err)
		h.Res(resParams)
		return
	}

	// name can change but never be cleared
	reqData.Name.Value = strings.TrimSpace(reqData.Name.Value)
	if reqData.Name.Set && (!reqData.Name.Valid || reqData.Name.Value == "") {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.ResData = &api.ErrorBody{
			Error:   MSG_INVALID_INPUT,
			Details: map[string][]string{"name": {"Dieses Feld ist erforderlich."}},
		}
		h.Res(resParams)
		return
	}

	plant, err := h.Plants.UpdatePlant(ctx, uid, plantId, reqData.Fields())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resParams.Code = http.StatusNotFound
			resParams.ResData = api.ErrMsg(MSG_NOT_FOUND_OR_DENY)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(api.MSG_INTERNAL)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = plant
	h.Res(resParams)

}
