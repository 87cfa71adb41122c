package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"plantcareapi/pkg/config"
	"plantcareapi/pkg/locks"
	"plantcareapi/pkg/plantid"
	"plantcareapi/pkg/ratelimit"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/utils"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const (
	MSG_UNAUTHENTICATED = "Nicht authentifiziert."
	MSG_INTERNAL        = "Ein unerwarteter Fehler ist aufgetreten."
	MSG_INVALID_FORM    = "Ungültige Formulardaten."
	MSG_INVALID_TYPE    = "Ungültiges Dateiformat. Erlaubt: JPEG, PNG, WebP."
)

type UserStore interface {
	CreateUser(ctx context.Context, user *schemas.User) error
	GetUserByEmail(ctx context.Context, email string) (*schemas.User, error)
	GetUserById(ctx context.Context, uid bson.ObjectID) (*schemas.User, error)
	SetEmailVerified(ctx context.Context, uid bson.ObjectID) error
	SetPassHash(ctx context.Context, uid bson.ObjectID, passHash string) error
	DeleteUser(ctx context.Context, uid bson.ObjectID) error
}

type PlantStore interface {
	ListPlants(ctx context.Context, uid bson.ObjectID, sort schemas.SortOption, limit int64) ([]schemas.Plant, error)
	CreatePlant(ctx context.Context, plant *schemas.Plant) error
	GetPlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) (*schemas.Plant, error)
	UpdatePlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID, fields bson.M) (*schemas.Plant, error)
	DeletePlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) error
}

type PhotoStore interface {
	ListPhotos(ctx context.Context, uid bson.ObjectID, plantIds []bson.ObjectID) ([]schemas.PlantPhoto, error)
	CountPhotos(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) (int64, error)
	CreatePhoto(ctx context.Context, photo *schemas.PlantPhoto) error
	GetPhoto(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID, photoId bson.ObjectID) (*schemas.PlantPhoto, error)
	DeletePhoto(ctx context.Context, uid bson.ObjectID, photoId bson.ObjectID) error
	DeletePhotosForPlant(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) error
	OldestPhoto(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) (*schemas.PlantPhoto, error)
	ClearCover(ctx context.Context, uid bson.ObjectID, plantId bson.ObjectID) error
	SetCover(ctx context.Context, uid bson.ObjectID, photoId bson.ObjectID) (*schemas.PlantPhoto, error)
}

// BlobStore holds the photo objects.
type BlobStore interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) error
	DeleteObjects(ctx context.Context, keys []string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type LinkTokenStore interface {
	IssueLinkToken(ctx context.Context, purpose string, uid string, ttl time.Duration) (string, error)
	ConsumeLinkToken(ctx context.Context, purpose string, token string) (string, error)
}

type Mailer interface {
	SendConfirmation(ctx context.Context, to string, link string) error
	SendPasswordReset(ctx context.Context, to string, link string) error
}

type Classifier interface {
	Configured() bool
	Identify(ctx context.Context, mimeType string, image []byte) ([]plantid.Suggestion, error)
}

type Handler struct {
	Logger       *zap.Logger
	Validate     *validator.Validate
	Config       *config.Config
	Users        UserStore
	Plants       PlantStore
	Photos       PhotoStore
	Blobs        BlobStore
	Tokens       LinkTokenStore
	Mailer       Mailer
	Limiter      ratelimit.Limiter
	LoginLimiter *IPLimiter
	Classifier   Classifier
	UploadLocks  locks.Locker
}

type ResParams struct {
	W       http.ResponseWriter
	R       *http.Request
	Code    int
	Err     error
	ReqData any // for logs
	ResData any
}

type ErrorBody struct {
	Error   string              `json:"error"`
	Details map[string][]string `json:"details,omitempty"`
}

func ErrMsg(msg string) *ErrorBody {
	return &ErrorBody{Error: msg}
}

func ValidationErr(msg string, err error) *ErrorBody {
	return &ErrorBody{Error: msg, Details: utils.ValidationDetails(err)}
}

type ctxKey int

const uidKey ctxKey = iota

func WithUid(ctx context.Context, uid bson.ObjectID) context.Context {
	return context.WithValue(ctx, uidKey, uid)
}

// Uid is only valid behind AuthMiddleware.
func Uid(ctx context.Context) bson.ObjectID {
	uid, _ := ctx.Value(uidKey).(bson.ObjectID)
	return uid
}

func (h *Handler) AuthMiddleware(f http.HandlerFunc) http.HandlerFunc {

	return func(w http.ResponseWriter, r *http.Request) {
		resParams := &ResParams{W: w, R: r}
		authToken, err := utils.ValidateAuthToken(r, h.Config.JWTSecret)
		if err != nil {
			resParams.Err = err
			resParams.Code = http.StatusUnauthorized
			resParams.ResData = ErrMsg(MSG_UNAUTHENTICATED)
			h.Res(resParams)
			return
		}
		uid, err := authToken.GetUidObjectId()
		if err != nil {
			resParams.Err = err
			resParams.Code = http.StatusUnauthorized
			resParams.ResData = ErrMsg(MSG_UNAUTHENTICATED)
			h.Res(resParams)
			return
		}
		f(w, r.WithContext(WithUid(r.Context(), uid)))
	}

}

// ParseObjectId reads a hex id from a path parameter.
func ParseObjectId(s string) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(s)
	return id, err == nil
}

func (h *Handler) Res(params *ResParams) {

	if params.Err != nil && errors.Is(params.Err, context.Canceled) {
		return
	}

	caller := "unknown"
	if pc, file, line, ok := runtime.Caller(1); ok {
		caller = fmt.Sprintf("%s:%d (%s)", file, line, runtime.FuncForPC(pc).Name())
	}

	// handle logging
	if params.Code >= 500 {
		h.Logger.Error("Error at "+caller,
			zap.Error(params.Err),
			zap.Any("request_data", params.ReqData),
		)
	} else if params.Code >= 400 {
		h.Logger.Warn("Warning at "+caller,
			zap.Error(params.Err),
			zap.Any("request_data", params.ReqData),
		)
	}

	if params.Code == http.StatusNoContent {
		render.NoContent(params.W, params.R)
		return
	}

	render.Status(params.R, params.Code)
	render.JSON(params.W, params.R, params.ResData)

}
