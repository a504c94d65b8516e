package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"podcastai/internal/domain"
)

// Engine is the audio backend a Session drives. Position and end-of-track
// reports flow back through Session.ReportPosition and Session.ReportEnded.
type Engine interface {
	// Load prepares audioURL and returns its duration in seconds, or 0 if
	// the engine cannot tell.
	Load(ctx context.Context, audioURL string) (float64, error)
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetRate(rate domain.Rate) error
	Close() error
}

type AssetFetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

var errEngineClosed = errors.New("engine closed")

// AssetEngine is the server-side engine. It checks that the asset can be
// fetched; the client device renders the audio and reports positions.
type AssetEngine struct {
	assets AssetFetcher

	mu     sync.Mutex
	closed bool
}

func NewAssetEngine(assets AssetFetcher) *AssetEngine {
	return &AssetEngine{assets: assets}
}

func (e *AssetEngine) Load(ctx context.Context, audioURL string) (float64, error) {
	if err := e.check(); err != nil {
		return 0, err
	}
	rc, err := e.assets.Fetch(ctx, audioURL)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", audioURL, err)
	}
	return 0, rc.Close()
}

func (e *AssetEngine) Play() error               { return e.check() }
func (e *AssetEngine) Pause() error              { return e.check() }
func (e *AssetEngine) Seek(float64) error        { return e.check() }
func (e *AssetEngine) SetRate(domain.Rate) error { return e.check() }

func (e *AssetEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *AssetEngine) check() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errEngineClosed
	}
	return nil
}
