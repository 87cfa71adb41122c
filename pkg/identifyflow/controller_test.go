package identifyflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"plantcareapi/pkg/client"
	"plantcareapi/pkg/imagenorm"
	"plantcareapi/pkg/schemas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayFunc func(ctx context.Context, image []byte) ([]schemas.IdentifySuggestion, error)

func (f gatewayFunc) Identify(ctx context.Context, image []byte) ([]schemas.IdentifySuggestion, error) {
	return f(ctx, image)
}

type recorder struct {
	mu       sync.Mutex
	states   []string
	photos   [][]byte
	selected []schemas.IdentifySuggestion
	cleared  int
}

func (r *recorder) options(gw Gateway) Options {
	return Options{
		Gateway: gw,
		Normalize: func(data []byte) (*imagenorm.Result, error) {
			return &imagenorm.Result{Data: append([]byte("small:"), data[:4]...)}, nil
		},
		OnState: func(s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, Name(s))
		},
		OnPhotoReady: func(photo []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.photos = append(r.photos, photo)
		},
		OnSelect: func(s schemas.IdentifySuggestion) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.selected = append(r.selected, s)
		},
		OnClear: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.cleared++
		},
	}
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

func suggestions(confidences ...int) []schemas.IdentifySuggestion {
	res := make([]schemas.IdentifySuggestion, len(confidences))
	for i, c := range confidences {
		res[i] = schemas.IdentifySuggestion{Name: "Pflanze", Species: "Planta", Confidence: c}
	}
	return res
}

func fixed(res []schemas.IdentifySuggestion, err error) Gateway {
	return gatewayFunc(func(context.Context, []byte) ([]schemas.IdentifySuggestion, error) {
		return res, err
	})
}

func TestSelectFile_Results(t *testing.T) {
	rec := &recorder{}
	var sent []byte
	gw := gatewayFunc(func(_ context.Context, image []byte) ([]schemas.IdentifySuggestion, error) {
		sent = image
		return suggestions(92, 5), nil
	})
	c := New(rec.options(gw))

	file := jpegBytes(t)
	s := c.SelectFile(context.Background(), file)

	results, ok := s.(Results)
	require.True(t, ok)
	assert.False(t, results.LowConfidence)
	assert.Len(t, results.Suggestions, 2)
	assert.Equal(t, []string{"compressing", "loading", "results"}, rec.states)

	// the compressed photo is handed out and sent
	require.Len(t, rec.photos, 1)
	assert.Equal(t, rec.photos[0], sent)
	assert.Equal(t, c.State(), s)
}

func TestSelectFile_LowConfidence(t *testing.T) {
	c := New((&recorder{}).options(fixed(suggestions(29, 12), nil)))
	s := c.SelectFile(context.Background(), jpegBytes(t))

	results, ok := s.(Results)
	require.True(t, ok)
	assert.True(t, results.LowConfidence)

	c = New((&recorder{}).options(fixed(suggestions(30, 12), nil)))
	results = c.SelectFile(context.Background(), jpegBytes(t)).(Results)
	assert.False(t, results.LowConfidence)
}

func TestSelectFile_NoResults(t *testing.T) {
	c := New((&recorder{}).options(fixed([]schemas.IdentifySuggestion{}, nil)))
	assert.Equal(t, NoResults{}, c.SelectFile(context.Background(), jpegBytes(t)))
}

func TestSelectFile_PreChecks(t *testing.T) {
	calls := 0
	gw := gatewayFunc(func(context.Context, []byte) ([]schemas.IdentifySuggestion, error) {
		calls++
		return nil, nil
	})
	rec := &recorder{}
	c := New(rec.options(gw))

	s := c.SelectFile(context.Background(), []byte("GIF89a-not-allowed"))
	assert.Equal(t, Error{Message: MSG_INVALID_TYPE}, s)

	big := append(jpegBytes(t), make([]byte, MAX_FILE_SIZE)...)
	s = c.SelectFile(context.Background(), big)
	assert.Equal(t, Error{Message: MSG_TOO_LARGE}, s)

	assert.Zero(t, calls)
	assert.Empty(t, rec.photos)

	_, err := c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrRetryBlocked)
}

func TestSelectFile_ProcessingError(t *testing.T) {
	rec := &recorder{}
	opts := rec.options(fixed(suggestions(90), nil))
	opts.Normalize = func([]byte) (*imagenorm.Result, error) {
		return nil, imagenorm.ErrImageProcessing
	}
	c := New(opts)

	s := c.SelectFile(context.Background(), jpegBytes(t))
	assert.Equal(t, Error{Message: MSG_PROCESSING}, s)
	assert.Empty(t, rec.photos)

	_, err := c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrRetryBlocked)
}

func TestSelectFile_GatewayErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Error
	}{
		{"unavailable", client.ErrUnavailable, Error{Message: MSG_UNAVAILABLE}},
		{"timeout", client.ErrTimeout, Error{Message: MSG_TIMEOUT, CanRetry: true}},
		{"server error", &client.APIError{StatusCode: 502}, Error{Message: MSG_CONNECTION, CanRetry: true}},
		{"network", errors.New("connection refused"), Error{Message: MSG_CONNECTION, CanRetry: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New((&recorder{}).options(fixed(nil, tt.err)))
			assert.Equal(t, tt.want, c.SelectFile(context.Background(), jpegBytes(t)))
		})
	}
}

func TestSelectFile_ClientTimeout(t *testing.T) {
	gw := gatewayFunc(func(ctx context.Context, _ []byte) ([]schemas.IdentifySuggestion, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	opts := (&recorder{}).options(gw)
	opts.Timeout = 20 * time.Millisecond
	c := New(opts)

	s := c.SelectFile(context.Background(), jpegBytes(t))
	assert.Equal(t, Error{Message: MSG_TIMEOUT, CanRetry: true}, s)
	assert.Zero(t, c.Countdown())
}

func TestRateLimitCountdown(t *testing.T) {
	calls := 0
	gw := gatewayFunc(func(context.Context, []byte) ([]schemas.IdentifySuggestion, error) {
		calls++
		if calls == 1 {
			return nil, client.ErrRateLimited
		}
		return suggestions(80), nil
	})
	opts := (&recorder{}).options(gw)
	opts.Tick = time.Millisecond
	c := New(opts)

	s := c.SelectFile(context.Background(), jpegBytes(t))
	e, ok := s.(Error)
	require.True(t, ok)
	assert.True(t, e.CanRetry)
	assert.Equal(t, RETRY_COOLDOWN, e.RetryAfter)
	assert.Equal(t, MSG_RATE_LIMITED, e.Message)

	require.Eventually(t, func() bool {
		return c.State() == State(Error{Message: MSG_RATE_LIMITED, CanRetry: true})
	}, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, c.Countdown())

	s, err := c.Retry(context.Background())
	require.NoError(t, err)
	assert.IsType(t, Results{}, s)
	assert.Equal(t, 2, calls)
}

func TestRateLimitCountdown_BlocksRetry(t *testing.T) {
	opts := (&recorder{}).options(fixed(nil, client.ErrRateLimited))
	opts.Tick = time.Hour
	c := New(opts)

	c.SelectFile(context.Background(), jpegBytes(t))
	assert.Equal(t, RETRY_COOLDOWN, c.Countdown())

	_, err := c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrRetryBlocked)

	// a new file is always accepted and resets the countdown
	s := c.SelectFile(context.Background(), jpegBytes(t))
	assert.IsType(t, Error{}, s)
	assert.Equal(t, RETRY_COOLDOWN, c.Countdown())

	c.Clear()
	assert.Zero(t, c.Countdown())
}

func TestStaleResponseIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var mu sync.Mutex
	calls := 0
	gw := gatewayFunc(func(_ context.Context, _ []byte) ([]schemas.IdentifySuggestion, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return []schemas.IdentifySuggestion{{Name: "Alt", Species: "Vetus", Confidence: 99}}, nil
		}
		return []schemas.IdentifySuggestion{{Name: "Neu", Species: "Novus", Confidence: 88}}, nil
	})
	c := New((&recorder{}).options(gw))

	done := make(chan State)
	go func() {
		done <- c.SelectFile(context.Background(), jpegBytes(t))
	}()
	<-started

	s := c.SelectFile(context.Background(), jpegBytes(t))
	require.IsType(t, Results{}, s)

	close(release)
	<-done

	results := c.State().(Results)
	require.Len(t, results.Suggestions, 1)
	assert.Equal(t, "Neu", results.Suggestions[0].Name)
}

func TestClearDuringRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := gatewayFunc(func(context.Context, []byte) ([]schemas.IdentifySuggestion, error) {
		close(started)
		<-release
		return suggestions(90), nil
	})
	rec := &recorder{}
	c := New(rec.options(gw))

	done := make(chan State)
	go func() {
		done <- c.SelectFile(context.Background(), jpegBytes(t))
	}()
	<-started

	c.Clear()
	close(release)
	<-done

	assert.Equal(t, Idle{}, c.State())
	assert.Equal(t, 1, rec.cleared)
	require.Len(t, rec.photos, 2)
	assert.Nil(t, rec.photos[1])

	_, err := c.Retry(context.Background())
	assert.ErrorIs(t, err, ErrRetryBlocked)
}

func TestSelectSuggestion(t *testing.T) {
	rec := &recorder{}
	c := New(rec.options(fixed(suggestions(90, 40), nil)))

	assert.False(t, c.SelectSuggestion(0))

	c.SelectFile(context.Background(), jpegBytes(t))
	before := c.State()

	assert.True(t, c.SelectSuggestion(1))
	assert.False(t, c.SelectSuggestion(2))

	require.Len(t, rec.selected, 1)
	assert.Equal(t, 40, rec.selected[0].Confidence)
	assert.Equal(t, before, c.State())
}

func TestLevel(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, Level(70))
	assert.Equal(t, ConfidenceMedium, Level(69))
	assert.Equal(t, ConfidenceMedium, Level(30))
	assert.Equal(t, ConfidenceLow, Level(29))
}
