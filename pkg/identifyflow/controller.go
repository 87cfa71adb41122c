// Package identifyflow drives one identification attempt from file selection
// to suggestions: pre-check, compress, call the gateway, expose the outcome
// as a State. Only the newest attempt may change the state.
package identifyflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"plantcareapi/pkg/client"
	"plantcareapi/pkg/imagenorm"
	"plantcareapi/pkg/schemas"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const (
	MAX_FILE_SIZE   = 10 << 20
	REQUEST_TIMEOUT = 10 * time.Second
	RETRY_COOLDOWN  = 30
	LOW_CONFIDENCE  = 30

	MSG_INVALID_TYPE = "Ungültiges Dateiformat. Erlaubt: JPEG, PNG, WebP."
	MSG_TOO_LARGE    = "Die Datei ist zu groß. Maximal 10 MB erlaubt."
	MSG_PROCESSING   = "Bild konnte nicht verarbeitet werden. Bitte verwende ein anderes Format (JPEG, PNG, WebP)."
	MSG_RATE_LIMITED = "Zu viele Anfragen. Bitte warte einen Moment und versuche es erneut."
	MSG_UNAVAILABLE  = "Pflanzenidentifikation ist derzeit nicht verfügbar. Bitte versuche es später erneut."
	MSG_TIMEOUT      = "Zeitlimit überschritten. Bitte versuche es erneut."
	MSG_CONNECTION   = "Verbindungsfehler -- bitte erneut versuchen."
)

var ALLOWED_TYPES = []string{"image/jpeg", "image/png", "image/webp"}

var ErrRetryBlocked = errors.New("retry not possible right now")

type Gateway interface {
	Identify(ctx context.Context, image []byte) ([]schemas.IdentifySuggestion, error)
}

type Options struct {
	Gateway   Gateway
	Normalize func(data []byte) (*imagenorm.Result, error)
	Logger    *zap.Logger

	Timeout time.Duration
	// one countdown step, a second outside of tests
	Tick time.Duration

	OnState      func(State)
	OnPhotoReady func(photo []byte)
	OnSelect     func(s schemas.IdentifySuggestion)
	OnClear      func()
}

type Controller struct {
	opts Options

	mu         sync.Mutex
	state      State
	generation uint64
	file       []byte
	cancel     context.CancelFunc
	countdown  int
}

func New(opts Options) *Controller {
	if opts.Normalize == nil {
		opts.Normalize = imagenorm.Normalize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout == 0 {
		opts.Timeout = REQUEST_TIMEOUT
	}
	if opts.Tick == 0 {
		opts.Tick = time.Second
	}
	return &Controller{opts: opts, state: Idle{}}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Countdown is the number of seconds until Retry is accepted again.
func (c *Controller) Countdown() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countdown
}

// begin starts a new attempt and supersedes any running one.
func (c *Controller) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	c.countdown = 0
	ctx, c.cancel = context.WithCancel(ctx)
	return ctx, c.generation
}

// set writes s only while gen is still the newest attempt.
func (c *Controller) set(gen uint64, s State) bool {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.opts.Logger.Debug("dropping stale state", zap.String("state", Name(s)), zap.Uint64("generation", gen))
		return false
	}
	c.state = s
	c.mu.Unlock()

	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
	return true
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

// SelectFile checks, compresses and identifies file. It blocks until the
// attempt finishes and returns the state it ended in, which is stale if a
// newer selection or Clear happened meanwhile.
func (c *Controller) SelectFile(ctx context.Context, file []byte) State {

	ctx, gen := c.begin(ctx)

	if !mimetype.EqualsAny(mimetype.Detect(file).String(), ALLOWED_TYPES...) {
		s := Error{Message: MSG_INVALID_TYPE}
		c.set(gen, s)
		return s
	}
	if len(file) > MAX_FILE_SIZE {
		s := Error{Message: MSG_TOO_LARGE}
		c.set(gen, s)
		return s
	}

	c.mu.Lock()
	if gen == c.generation {
		c.file = file
	}
	c.mu.Unlock()

	return c.run(ctx, gen, file)

}

// Retry re-runs the held file. It is refused while the rate limit countdown
// runs and after terminal errors.
func (c *Controller) Retry(ctx context.Context) (State, error) {

	c.mu.Lock()
	file, countdown := c.file, c.countdown
	e, failed := c.state.(Error)
	c.mu.Unlock()

	if file == nil || countdown > 0 || (failed && !e.CanRetry) {
		return c.State(), ErrRetryBlocked
	}

	ctx, gen := c.begin(ctx)
	return c.run(ctx, gen, file), nil

}

// Clear returns to Idle and forgets the held file.
func (c *Controller) Clear() {

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	gen := c.generation
	c.file = nil
	c.countdown = 0
	c.mu.Unlock()

	c.set(gen, Idle{})
	if c.opts.OnPhotoReady != nil {
		c.opts.OnPhotoReady(nil)
	}
	if c.opts.OnClear != nil {
		c.opts.OnClear()
	}

}

// SelectSuggestion hands suggestion i of the current results to OnSelect.
func (c *Controller) SelectSuggestion(i int) bool {

	results, ok := c.State().(Results)
	if !ok || i < 0 || i >= len(results.Suggestions) {
		return false
	}

	if c.opts.OnSelect != nil {
		c.opts.OnSelect(results.Suggestions[i])
	}
	return true

}

func (c *Controller) run(ctx context.Context, gen uint64, file []byte) State {

	c.set(gen, Compressing{})

	res, err := c.opts.Normalize(file)
	if err != nil {
		c.opts.Logger.Debug("normalize failed", zap.Error(err))
		s := Error{Message: MSG_PROCESSING}
		c.set(gen, s)
		return s
	}
	c.opts.Logger.Debug("photo ready",
		zap.Bool("reencoded", res.Reencoded),
		zap.Int("quality", res.Quality),
		zap.Int("bytes", len(res.Data)),
	)
	if !c.current(gen) {
		return c.State()
	}
	if c.opts.OnPhotoReady != nil {
		c.opts.OnPhotoReady(res.Data)
	}

	c.set(gen, Loading{})

	reqCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	suggestions, err := c.opts.Gateway.Identify(reqCtx, res.Data)
	cancel()

	s := c.outcome(suggestions, err)
	e, cooldown := s.(Error)
	cooldown = cooldown && e.RetryAfter > 0
	if cooldown {
		c.mu.Lock()
		if gen == c.generation {
			c.countdown = e.RetryAfter
		}
		c.mu.Unlock()
	}

	if c.set(gen, s) && cooldown {
		c.startCountdown(gen, e)
	}

	return s

}

func (c *Controller) outcome(suggestions []schemas.IdentifySuggestion, err error) State {

	switch {
	case err == nil && len(suggestions) == 0:
		return NoResults{}
	case err == nil:
		low := true
		for _, s := range suggestions {
			if s.Confidence >= LOW_CONFIDENCE {
				low = false
				break
			}
		}
		return Results{Suggestions: suggestions, LowConfidence: low}
	case errors.Is(err, client.ErrRateLimited):
		return Error{Message: MSG_RATE_LIMITED, CanRetry: true, RetryAfter: RETRY_COOLDOWN}
	case errors.Is(err, client.ErrUnavailable):
		return Error{Message: MSG_UNAVAILABLE}
	case errors.Is(err, client.ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Error{Message: MSG_TIMEOUT, CanRetry: true}
	}

	c.opts.Logger.Debug("identify failed", zap.Error(err))
	return Error{Message: MSG_CONNECTION, CanRetry: true}

}

func (c *Controller) startCountdown(gen uint64, e Error) {

	go func() {
		ticker := time.NewTicker(c.opts.Tick)
		defer ticker.Stop()
		for range ticker.C {
			c.mu.Lock()
			if gen != c.generation {
				c.mu.Unlock()
				return
			}
			c.countdown--
			e.RetryAfter = c.countdown
			c.mu.Unlock()

			c.set(gen, e)
			if e.RetryAfter <= 0 {
				return
			}
		}
	}()

}
