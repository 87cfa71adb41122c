// Package client is a small HTTP client for the plant care API. It keeps the
// session cookie in a jar and maps API failures to sentinel errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"plantcareapi/pkg/schemas"

	"go.uber.org/zap"
)

var (
	ErrRateLimited = errors.New("too many requests")
	ErrUnavailable = errors.New("identification unavailable")
	ErrTimeout     = errors.New("request timed out")
)

// APIError is any other non-2xx answer, Message is the server's error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api http %d", e.StatusCode)
	}
	return fmt.Sprintf("api http %d: %s", e.StatusCode, e.Message)
}

type PhotoPolicy int

const (
	// PhotoPolicySoft keeps the plant and logs a warning when the photo fails.
	PhotoPolicySoft PhotoPolicy = iota
	// PhotoPolicyStrict reports the photo failure. The plant is still kept.
	PhotoPolicyStrict
)

func ParsePhotoPolicy(s string) (PhotoPolicy, error) {
	switch strings.ToLower(s) {
	case "", "soft":
		return PhotoPolicySoft, nil
	case "strict":
		return PhotoPolicyStrict, nil
	}
	return PhotoPolicySoft, fmt.Errorf("unknown photo policy %q", s)
}

type Client struct {
	BaseURL     string
	HttpCli     *http.Client
	Logger      *zap.Logger
	PhotoPolicy PhotoPolicy
}

func New(baseURL string, logger *zap.Logger) (*Client, error) {

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HttpCli: &http.Client{Jar: jar},
		Logger:  logger,
	}, nil

}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method string, path string, contentType string, body io.Reader, dst any) error {

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.HttpCli.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(res.Body, 64<<10)).Decode(&eb)
		apiErr := &APIError{StatusCode: res.StatusCode, Message: eb.Error}
		switch res.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
		}
		return apiErr
	}

	if dst == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(dst); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	}

	return nil

}

func (c *Client) doJSON(ctx context.Context, method string, path string, body any, dst any) error {

	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	return c.do(ctx, method, path, contentType, reader, dst)

}

func (c *Client) doFile(ctx context.Context, path string, field string, filename string, data []byte, dst any) error {

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, dst)

}

type LoginResult struct {
	User       schemas.PublicUser `json:"user"`
	RedirectTo string             `json:"redirectTo"`
}

// Login starts a session, the cookie is kept for later calls.
func (c *Client) Login(ctx context.Context, email string, password string) (*LoginResult, error) {
	var res LoginResult
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Identify sends image to the identification endpoint. The server sniffs
// the type, the file name is cosmetic.
func (c *Client) Identify(ctx context.Context, image []byte) ([]schemas.IdentifySuggestion, error) {
	suggestions := []schemas.IdentifySuggestion{}
	if err := c.doFile(ctx, "/api/identify", "image", "photo.jpg", image, &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}

// CurrentUser also renews the session cookie when it is about to expire.
func (c *Client) CurrentUser(ctx context.Context) (*schemas.PublicUser, error) {
	var user schemas.PublicUser
	if err := c.doJSON(ctx, http.MethodGet, "/api/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListPlants(ctx context.Context, sort schemas.SortOption) ([]schemas.Plant, error) {
	q := url.Values{}
	q.Set("sort", string(sort))
	var plants []schemas.Plant
	if err := c.doJSON(ctx, http.MethodGet, "/api/plants?"+q.Encode(), nil, &plants); err != nil {
		return nil, err
	}
	return plants, nil
}

func (c *Client) GetPlant(ctx context.Context, plantId string) (*schemas.Plant, error) {
	var plant schemas.Plant
	if err := c.doJSON(ctx, http.MethodGet, "/api/plants/"+url.PathEscape(plantId), nil, &plant); err != nil {
		return nil, err
	}
	return &plant, nil
}

// PlantDraft is the create payload. Empty optional fields are sent as null.
type PlantDraft struct {
	Name      string
	Species   string
	Location  string
	PlantedAt string
	Notes     string
}

// FromSuggestion fills name and species from an identification suggestion.
func (d *PlantDraft) FromSuggestion(s schemas.IdentifySuggestion) {
	d.Name = s.Name
	d.Species = s.Species
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (c *Client) CreatePlant(ctx context.Context, draft PlantDraft) (*schemas.Plant, error) {

	body := map[string]*string{
		"name":       &draft.Name,
		"species":    optional(draft.Species),
		"location":   optional(draft.Location),
		"planted_at": optional(draft.PlantedAt),
		"notes":      optional(draft.Notes),
	}

	var plant schemas.Plant
	if err := c.doJSON(ctx, http.MethodPost, "/api/plants", body, &plant); err != nil {
		return nil, err
	}
	return &plant, nil

}

func (c *Client) DeletePlant(ctx context.Context, plantId string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/plants/"+url.PathEscape(plantId), nil, nil)
}

func (c *Client) UploadPhoto(ctx context.Context, plantId string, data []byte) (*schemas.PlantPhoto, error) {
	var photo schemas.PlantPhoto
	path := "/api/plants/" + url.PathEscape(plantId) + "/photos"
	if err := c.doFile(ctx, path, "file", "photo.jpg", data, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// CreatePlantWithPhoto creates the plant and then uploads photo, if any. A
// failed upload never removes the plant. Under PhotoPolicyStrict the plant is
// returned together with the upload error.
func (c *Client) CreatePlantWithPhoto(ctx context.Context, draft PlantDraft, photo []byte) (*schemas.Plant, error) {

	plant, err := c.CreatePlant(ctx, draft)
	if err != nil {
		return nil, err
	}
	if len(photo) == 0 {
		return plant, nil
	}

	uploaded, err := c.UploadPhoto(ctx, plant.Id.Hex(), photo)
	if err != nil {
		if c.PhotoPolicy == PhotoPolicyStrict {
			return plant, fmt.Errorf("photo upload for plant %s: %w", plant.Id.Hex(), err)
		}
		c.Logger.Warn("photo upload failed, plant kept without photo", zap.Error(err), zap.String("plant", plant.Id.Hex()))
		return plant, nil
	}

	plant.Photos = append(plant.Photos, *uploaded)
	return plant, nil

}
