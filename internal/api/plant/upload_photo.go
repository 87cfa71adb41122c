package plant

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"plantcareapi/internal/api"
	"plantcareapi/internal/api/upload"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/locks"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	"go.uber.org/zap"
)

// room for multipart framing on top of the file itself
const photoBodyLimit = 2 * config.PHOTO_MAX_SIZE

// UploadPhoto stores one photo (form field "file"). The first photo of a
// plant becomes its cover.
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {

	defer r.Body.Close()
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

	// verify plant belongs to user
	if _, err := h.Plants.GetPlant(ctx, uid, plantId); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			resParams.Code = http.StatusNotFound
			resParams.ResData = api.ErrMsg(MSG_NOT_FOUND)
		} else {
			resParams.Code = http.StatusInternalServerError
			resParams.ResData = api.ErrMsg(MSG_UPLOAD_FAILED)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	// hold the plant while counting and inserting so parallel uploads
	// cannot pass the limit together
	if h.UploadLocks != nil {
		release, err := h.UploadLocks.Acquire(ctx, "upload:"+plantId.Hex(), config.UPLOAD_LOCK_TTL)
		if err != nil {
			if errors.Is(err, locks.ErrLocked) {
				resParams.Code = http.StatusConflict
				resParams.ResData = api.ErrMsg(MSG_UPLOAD_BUSY)
			} else {
				resParams.Code = http.StatusInternalServerError
				resParams.ResData = api.ErrMsg(MSG_UPLOAD_FAILED)
			}
			resParams.Err = err
			h.Res(resParams)
			return
		}
		defer release()
	}

	count, err := h.Photos.CountPhotos(ctx, uid, plantId)
	if err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_UPLOAD_FAILED)
		h.Res(resParams)
		return
	}
	if count >= config.MAX_PHOTOS_PER_PLANT {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.ResData = api.ErrMsg(MSG_PHOTO_LIMIT)
		h.Res(resParams)
		return
	}

	if err := upload.Form(w, r, photoBodyLimit); err != nil {
		if errors.Is(err, upload.ErrTooLarge) {
			resParams.Code = http.StatusUnprocessableEntity
			resParams.ResData = api.ErrMsg(MSG_FILE_TOO_LARGE)
		} else {
			resParams.Code = http.StatusBadRequest
			resParams.ResData = api.ErrMsg(api.MSG_INVALID_FORM)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	file, err := upload.ReadFile(r, "file")
	if err != nil {
		resParams.Code = http.StatusBadRequest
		resParams.ResData = api.ErrMsg(MSG_NO_FILE)
		if !errors.Is(err, upload.ErrNoFile) {
			resParams.ResData = api.ErrMsg(api.MSG_INVALID_FORM)
		}
		resParams.Err = err
		h.Res(resParams)
		return
	}

	if file.Size() > config.PHOTO_MAX_SIZE {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.ResData = api.ErrMsg(MSG_FILE_TOO_LARGE)
		h.Res(resParams)
		return
	}
	if !file.Allowed() {
		resParams.Code = http.StatusUnprocessableEntity
		resParams.ResData = api.ErrMsg(api.MSG_INVALID_TYPE)
		h.Res(resParams)
		return
	}

	storagePath := utils.PhotoStoragePath(uid.Hex(), plantId.Hex(), file.Ext, time.Now())
	if err := h.Blobs.PutObject(ctx, storagePath, bytes.NewReader(file.Data), file.MimeType); err != nil {
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_UPLOAD_FAILED)
		h.Res(resParams)
		return
	}

	photo := &schemas.PlantPhoto{
		PlantId:     plantId,
		UserId:      uid,
		StoragePath: storagePath,
		IsCover:     count == 0,
	}

	if err := h.Photos.CreatePhoto(ctx, photo); err != nil {
		// remove the now orphaned object
		if delErr := h.Blobs.DeleteObjects(ctx, []string{storagePath}); delErr != nil {
			h.Logger.Warn("cleanup orphaned photo failed", zap.Error(delErr), zap.String("path", storagePath))
		}
		resParams.Code = http.StatusInternalServerError
		resParams.Err = err
		resParams.ResData = api.ErrMsg(MSG_PHOTO_SAVE_FAILED)
		h.Res(resParams)
		return
	}

	h.sign(ctx, photo)

	resParams.Code = http.StatusCreated
	resParams.ResData = photo
	h.Res(resParams)

}
