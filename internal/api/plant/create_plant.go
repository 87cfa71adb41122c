package plant

import (
	"net/http"
	"strings"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/schemas"
)

func (h *Handler) CreatePlant(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r}

	var reqData struct {
		Name      string  `json:"name" validate:"required,maxgraphemes=100"`
		Species   *string `json:"species" validate:"omitempty,maxgraphemes=100"`
		Location  *string `json:"location" validate:"omitempty,maxgraphemes=100"`
		PlantedAt *string `json:"planted_at" validate:"omitempty,datetime=2006-01-02"`
		Notes     *string `json:"notes" validate:"omitempty,maxgraphemes=1000"`
	}

	if !h.decodeBody(resParams, &reqData) {
		return
	}

	// normalize
	reqData.Name = strings.TrimSpace(reqData.Name)
	resParams.ReqData = reqData

	if err := h.Validate.Struct(&reqData); err != nil {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.Err = err
		resParams.ResData = api.ValidationErr(MSG_INVALID_INPUT, err)
		h.Res(resParams)
		return
	}

	plant := &schemas.Plant{
		UserId:    uid,
		Name:      reqData.Name,
		Species:   reqData.Species,
		Location:  reqData.Location,
		PlantedAt: reqData.PlantedAt,
		Notes:     reqData.Notes,
	}

	if err := h.Plants.CreatePlant(ctx, plant); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_CREATE_FAILED)
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusCreated
	resParams.ResData = plant
	h.Res(resParams)

}
