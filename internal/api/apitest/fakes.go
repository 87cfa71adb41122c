// Package apitest provides in-memory stand-ins for the handler dependencies.
package apitest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"plantcareapi/internal/api"
	"plantcareapi/pkg/config"
	"plantcareapi/pkg/locks"
	"plantcareapi/pkg/plantid"
	"plantcareapi/pkg/ratelimit"
	"plantcareapi/pkg/schemas"
	"plantcareapi/pkg/store"
	"plantcareapi/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"
)

const JWTSecret = "test-secret"

// Clock hands out strictly increasing timestamps so ordering is stable.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		c.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	c.now = c.now.Add(time.Second)
	return c.now
}

type Users struct {
	mu    sync.Mutex
	users  map[bson.ObjectID]*schemas.User
	Err    error
	GetErr error
}

func (s *Users) CreateUser(_ context.Context, user *schemas.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	if user.Id.IsZero() {
		user.Id = bson.NewObjectID()
	}
	u := *user
	s.users[user.Id] = &u
	return nil
}

func (s *Users) GetUserByEmail(_ context.Context, email string) (*schemas.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Users) GetUserById(_ context.Context, uid bson.ObjectID) (*schemas.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	u, ok := s.users[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *Users) SetEmailVerified(_ context.Context, uid bson.ObjectID) error {
	return s.update(uid, func(u *schemas.User) { u.EmailVerified = true })
}

func (s *Users) SetPassHash(_ context.Context, uid bson.ObjectID, passHash string) error {
	return s.update(uid, func(u *schemas.User) { u.PassHash = passHash })
}

func (s *Users) DeleteUser(_ context.Context, uid bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[uid]; !ok {
		return store.ErrNotFound
	}
	delete(s.users, uid)
	return nil
}

func (s *Users) update(uid bson.ObjectID, f func(u *schemas.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return store.ErrNotFound
	}
	f(u)
	return nil
}

func (s *Users) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

type Plants struct {
	mu     sync.Mutex
	clock  *Clock
	plants []*schemas.Plant
	Err    error
}

func (s *Plants) ListPlants(_ context.Context, uid bson.ObjectID, sortOpt schemas.SortOption, limit int64) ([]schemas.Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	res := []schemas.Plant{}
	for _, p := range s.plants {
		if p.UserId == uid {
			res = append(res, *p)
		}
	}
	if sortOpt == schemas.SortAlphabetical {
		sort.SliceStable(res, func(i, j int) bool { return strings.ToLower(res[i].Name) < strings.ToLower(res[j].Name) })
	} else {
		sort.SliceStable(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	}
	if int64(len(res)) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *Plants) CreatePlant(_ context.Context, plant *schemas.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	now := s.clock.Next()
	plant.Id = bson.NewObjectID()
	plant.CreatedAt = now
	plant.UpdatedAt = now
	p := *plant
	p.Photos = nil
	s.plants = append(s.plants, &p)
	return nil
}

func (s *Plants) GetPlant(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID) (*schemas.Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.plants {
		if p.Id == plantId && p.UserId == uid {
			c := *p
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Plants) UpdatePlant(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID, fields bson.M) (*schemas.Plant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, p := range s.plants {
		if p.Id != plantId || p.UserId != uid {
			continue
		}
		for k, v := range fields {
			str, _ := v.(*string)
			switch k {
			case "name":
				p.Name = v.(string)
			case "species":
				p.Species = str
			case "location":
				p.Location = str
			case "plantedAt":
				p.PlantedAt = str
			case "notes":
				p.Notes = str
			}
		}
		p.UpdatedAt = s.clock.Next()
		c := *p
		return &c, nil
	}
	return nil, store.ErrNotFound
}

func (s *Plants) DeletePlant(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for i, p := range s.plants {
		if p.Id == plantId && p.UserId == uid {
			s.plants = append(s.plants[:i], s.plants[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Plants) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plants)
}

type Photos struct {
	mu     sync.Mutex
	clock  *Clock
	photos []*schemas.PlantPhoto
	// CreateErr fails CreatePhoto only
	CreateErr error
}

func (s *Photos) ListPhotos(_ context.Context, uid bson.ObjectID, plantIds []bson.ObjectID) ([]schemas.PlantPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[bson.ObjectID]bool{}
	for _, id := range plantIds {
		want[id] = true
	}
	res := []schemas.PlantPhoto{}
	for _, p := range s.photos {
		if p.UserId == uid && want[p.PlantId] {
			res = append(res, *p)
		}
	}
	return res, nil
}

func (s *Photos) CountPhotos(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.photos {
		if p.UserId == uid && p.PlantId == plantId {
			n++
		}
	}
	return n, nil
}

func (s *Photos) CreatePhoto(_ context.Context, photo *schemas.PlantPhoto) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	photo.Id = bson.NewObjectID()
	photo.CreatedAt = s.clock.Next()
	p := *photo
	s.photos = append(s.photos, &p)
	return nil
}

func (s *Photos) GetPhoto(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID, photoId bson.ObjectID) (*schemas.PlantPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.Id == photoId && p.PlantId == plantId && p.UserId == uid {
			c := *p
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Photos) DeletePhoto(_ context.Context, uid bson.ObjectID, photoId bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.photos {
		if p.Id == photoId && p.UserId == uid {
			s.photos = append(s.photos[:i], s.photos[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Photos) DeletePhotosForPlant(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.photos[:0]
	for _, p := range s.photos {
		if p.UserId == uid && p.PlantId == plantId {
			continue
		}
		kept = append(kept, p)
	}
	s.photos = kept
	return nil
}

func (s *Photos) OldestPhoto(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID) (*schemas.PlantPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *schemas.PlantPhoto
	for _, p := range s.photos {
		if p.UserId == uid && p.PlantId == plantId && (oldest == nil || p.CreatedAt.Before(oldest.CreatedAt)) {
			oldest = p
		}
	}
	if oldest == nil {
		return nil, store.ErrNotFound
	}
	c := *oldest
	return &c, nil
}

func (s *Photos) ClearCover(_ context.Context, uid bson.ObjectID, plantId bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.UserId == uid && p.PlantId == plantId {
			p.IsCover = false
		}
	}
	return nil
}

func (s *Photos) SetCover(_ context.Context, uid bson.ObjectID, photoId bson.ObjectID) (*schemas.PlantPhoto, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.photos {
		if p.Id == photoId && p.UserId == uid {
			p.IsCover = true
			c := *p
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

// Covers lists the cover photos of a plant.
func (s *Photos) Covers(plantId bson.ObjectID) []schemas.PlantPhoto {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []schemas.PlantPhoto
	for _, p := range s.photos {
		if p.PlantId == plantId && p.IsCover {
			res = append(res, *p)
		}
	}
	return res
}

type Blob struct {
	Data        []byte
	ContentType string
}

type Blobs struct {
	mu      sync.Mutex
	objects map[string]Blob
	PutErr  error
	Deleted []string
}

func (b *Blobs) PutObject(_ context.Context, key string, body io.Reader, contentType string) error {
	if b.PutErr != nil {
		return b.PutErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = Blob{Data: data, ContentType: contentType}
	return nil
}

func (b *Blobs) DeleteObjects(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.objects, k)
		b.Deleted = append(b.Deleted, k)
	}
	return nil
}

func (b *Blobs) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://blobs.test/%s?expires=%d", key, int(ttl.Seconds())), nil
}

func (b *Blobs) Get(key string) (Blob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.objects[key]
	return blob, ok
}

func (b *Blobs) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type Tokens struct {
	mu     sync.Mutex
	tokens map[string]string
	Issued []string
}

func (s *Tokens) IssueLinkToken(_ context.Context, purpose string, uid string, _ time.Duration) (string, error) {
	token, err := utils.NewLinkTokenValue()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[purpose+":"+token] = uid
	s.Issued = append(s.Issued, token)
	return token, nil
}

func (s *Tokens) ConsumeLinkToken(_ context.Context, purpose string, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.tokens[purpose+":"+token]
	if !ok {
		return "", utils.ErrLinkTokenNotFound
	}
	delete(s.tokens, purpose+":"+token)
	return uid, nil
}

type SentMail struct {
	Kind string
	To   string
	Link string
}

type Mailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *Mailer) SendConfirmation(_ context.Context, to string, link string) error {
	return m.record("confirm", to, link)
}

func (m *Mailer) SendPasswordReset(_ context.Context, to string, link string) error {
	return m.record("recovery", to, link)
}

func (m *Mailer) record(kind, to, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{Kind: kind, To: to, Link: link})
	return nil
}

type Classifier struct {
	APIKey string
	Fn     func(ctx context.Context, mimeType string, image []byte) ([]plantid.Suggestion, error)
	Calls  int
}

func (c *Classifier) Configured() bool {
	return c.APIKey != ""
}

func (c *Classifier) Identify(ctx context.Context, mimeType string, image []byte) ([]plantid.Suggestion, error) {
	c.Calls++
	if c.Fn == nil {
		return nil, nil
	}
	return c.Fn(ctx, mimeType, image)
}

type Fakes struct {
	Users      *Users
	Plants     *Plants
	Photos     *Photos
	Blobs      *Blobs
	Tokens     *Tokens
	Mailer     *Mailer
	Classifier *Classifier
	Limiter    *ratelimit.FixedWindow
	Locks      *locks.Memory
}

// NewHandler wires a handler to fresh fakes.
func NewHandler(t *testing.T) (*api.Handler, *Fakes) {

	clock := &Clock{}
	f := &Fakes{
		Users:      &Users{users: map[bson.ObjectID]*schemas.User{}},
		Plants:     &Plants{clock: clock},
		Photos:     &Photos{clock: clock},
		Blobs:      &Blobs{objects: map[string]Blob{}},
		Tokens:     &Tokens{tokens: map[string]string{}},
		Mailer:     &Mailer{},
		Classifier: &Classifier{APIKey: "test-key"},
		Limiter:    ratelimit.NewFixedWindow(config.RATE_LIMIT_MAX, config.RATE_LIMIT_WINDOW),
		Locks:      locks.NewMemory(),
	}

	h := &api.Handler{
		Logger:   zaptest.NewLogger(t),
		Validate: utils.NewValidator(),
		Config: &config.Config{
			Env:               "test",
			AppBaseURL:        "https://plants.test",
			PlantIdAPIKey:     "test-key",
			JWTSecret:         JWTSecret,
			EmailConfirmation: true,
		},
		Users:        f.Users,
		Plants:       f.Plants,
		Photos:       f.Photos,
		Blobs:        f.Blobs,
		Tokens:       f.Tokens,
		Mailer:       f.Mailer,
		Limiter:      f.Limiter,
		LoginLimiter: api.NewIPLimiter(config.LOGIN_RATE_PER_SEC, config.LOGIN_RATE_BURST),
		Classifier:   f.Classifier,
		UploadLocks:  f.Locks,
	}

	return h, f

}

// SessionCookie returns a valid session cookie for uid.
func SessionCookie(t *testing.T, uid bson.ObjectID) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := utils.SetSessionCookie(rec, uid, JWTSecret, false); err != nil {
		t.Fatal(err)
	}
	return rec.Result().Cookies()[0]
}

// AuthedRequest builds a request that already passed AuthMiddleware.
func AuthedRequest(method string, target string, body []byte, uid bson.ObjectID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(api.WithUid(req.Context(), uid))
}

// WithURLParams sets chi path parameters on a request built outside a router.
func WithURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
