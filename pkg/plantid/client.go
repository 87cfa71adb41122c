// Package plantid talks to the plant.id v3 identification API.
package plantid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"plantcareapi/pkg/config"
)

var (
	ErrRateLimited = errors.New("plant.id rate limit exceeded")
	ErrTimeout     = errors.New("plant.id request timed out")
)

// UpstreamError is returned for any other non-2xx answer. Body is kept for
// logs only.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("plant.id http %d", e.StatusCode)
}

type Suggestion struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
	Details     struct {
		CommonNames []string `json:"common_names"`
	} `json:"details"`
}

type identificationResponse struct {
	Result struct {
		Classification struct {
			Suggestions []Suggestion `json:"suggestions"`
		} `json:"classification"`
	} `json:"result"`
}

type Client struct {
	HttpCli *http.Client
	APIKey  string
	URL     string
	Timeout time.Duration
}

func NewClient(httpCli *http.Client, apiKey string, apiURL string) *Client {
	return &Client{
		HttpCli: httpCli,
		APIKey:  apiKey,
		URL:     apiURL,
		Timeout: config.IDENTIFY_TIMEOUT,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.APIKey != ""
}

// Identify sends one image and returns the raw classifier suggestions in
// the classifier's order.
func (c *Client) Identify(ctx context.Context, mimeType string, image []byte) ([]Suggestion, error) {

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	body, err := json.Marshal(&struct {
		Images        []string `json:"images"`
		SimilarImages bool     `json:"similar_images"`
	}{Images: []string{dataURI}, SimilarImages: false})
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("details", "common_names")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.HttpCli.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &UpstreamError{StatusCode: res.StatusCode, Body: string(raw)}
	}

	var resp identificationResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}

	return resp.Result.Classification.Suggestions, nil

}
