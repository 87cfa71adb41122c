package identify

import (
	"errors"
	"net/http"

	"plantcareapi/internal/api"
	"plantcareapi/internal/api/upload"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/plantid"
)

const bodyLimit = 2 * config.IDENTIFY_MAX_UPLOAD

// Identify forwards one image (form field "image") to the classifier and
// answers with at most three ranked suggestions.
func (h *Handler) Identify(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
	ctx := r.Context()
	uid := api.Uid(ctx)
	resParams := &api.ResParams{W: w, R: r, ReqData: uid.Hex()}

	allowed, err := h.Limiter.Allow(ctx, uid.Hex())
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_FAILED)
		h.Res(resParams)
		return
	}
	if !allowed {
		resParams.Code = http.StatusTooManyRequests
		resParams.ResData = api.ErrMsg(MSG_RATE_LIMITED)
		h.Res(resParams)
		return
	}

	if h.Classifier == nil || !h.Classifier.Configured() {
		resParams.Code = http.StatusServiceUnavailable
		resParams.ResData = api.ErrMsg(MSG_UNAVAILABLE)
		h.Res(resParams)
		return
	}

	if err := upload.Form(w, r, bodyLimit); err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			resParams.Code = http.StatusUnprocessableEntity
			resParams.ResData = api.ErrMsg(MSG_TOO_LARGE)
		} else {
			resParams.Code = http.StatusBadRequest
			resParams.ResData = api.ErrMsg(api.MSG_INVALID_FORM)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	file, err := upload.ReadFile(r, "image")
	if err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.ResData = api.ErrMsg(MSG_NO_IMAGE)
		if !errors.Is(err, upload.ErrNoFile) {
			resParams.ResData = api.ErrMsg(api.MSG_INVALID_FORM)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	// type before size
	if !file.Allowed() {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.ResData = api.ErrMsg(api.MSG_INVALID_TYPE)
		h.Res(resParams)
		return
	}
	if file.Size() > config.IDENTIFY_MAX_UPLOAD {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.ResData = api.ErrMsg(MSG_TOO_LARGE)
		h.Res(resParams)
		return
	}

	suggestions, err := h.Classifier.Identify(ctx, file.MimeType, file.Data)
	if err != nil {
		var upstreamErr *plantid.UpstreamError
		switch {
		case errors.Is(err, plantid.ErrTimeout):
			resParams.Code = http.StatusGatewayTimeout
			resParams.ResData = api.ErrMsg(MSG_TIMEOUT)
		case errors.Is(err, plantid.ErrRateLimited):
			resParams.Code = http.StatusTooManyRequests
			resParams.ResData = api.ErrMsg(MSG_RATE_LIMITED)
		case errors.As(err, &upstreamErr):
			// upstream body goes to the log only
			resParams.Code = http.StatusBadGateway
			resParams.ResData = api.ErrMsg(MSG_FAILED)
			resParams.ReqData = upstreamErr.Body
		default:
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	resParams.Code = http.StatusOK
	resParams.ResData = plantid.Rank(suggestions)
	h.Res(resParams)

}
