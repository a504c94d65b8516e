package playback

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"podcastai/internal/domain"
)

type fakeEngine struct {
	mu       sync.Mutex
	duration float64
	loadErr  error
	failNext error
	calls    []string
	rate     domain.Rate
	seekedTo float64
	closed   bool

	// When set, Load closes loadStarted and blocks until loadRelease closes.
	loadStarted chan struct{}
	loadRelease chan struct{}
}

func (e *fakeEngine) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	if e.failNext != nil {
		err := e.failNext
		e.failNext = nil
		return err
	}
	return nil
}

func (e *fakeEngine) Load(context.Context, string) (float64, error) {
	if err := e.record("load"); err != nil {
		return 0, err
	}
	if e.loadRelease != nil {
		close(e.loadStarted)
		<-e.loadRelease
	}
	return e.duration, e.loadErr
}

func (e *fakeEngine) Play() error  { return e.record("play") }
func (e *fakeEngine) Pause() error { return e.record("pause") }

func (e *fakeEngine) Seek(seconds float64) error {
	if err := e.record("seek"); err != nil {
		return err
	}
	e.mu.Lock()
	e.seekedTo = seconds
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) SetRate(rate domain.Rate) error {
	if err := e.record("rate"); err != nil {
		return err
	}
	e.mu.Lock()
	e.rate = rate
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAssets struct {
	data map[string]string
}

func (f fakeAssets) Fetch(_ context.Context, url string) (io.ReadCloser, error) {
	body, ok := f.data[url]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

var errEngine = errors.New("decoder crashed")
