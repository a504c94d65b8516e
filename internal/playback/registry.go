package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"podcastai/internal/domain"
)

// Registry owns the open sessions of this process.
type Registry struct {
	newEngine func() Engine
	opts      Options
	idleTTL   time.Duration
	newID     func() string
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(newEngine func() Engine, opts Options, idleTTL time.Duration, logger *slog.Logger) *Registry {
	logger = logger.With("component", "playback")
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Registry{
		newEngine: newEngine,
		opts:      opts.withDefaults(),
		idleTTL:   idleTTL,
		newID:     uuid.NewString,
		logger:    logger,
		sessions:  make(map[string]*Session),
	}
}

// Open creates a session for podcast and loads its audio. A load failure
// leaves the session registered in the Error state and is also returned.
func (r *Registry) Open(ctx context.Context, podcast *domain.Podcast, rate float64) (*Session, error) {
	opts := r.opts
	if rate != 0 {
		parsed, err := domain.ParseRate(rate)
		if err != nil {
			return nil, err
		}
		opts.InitialRate = parsed
	}

	session := NewSession(r.newID(), podcast.ID, r.newEngine(), opts)

	r.mu.Lock()
	r.sessions[session.ID()] = session
	r.mu.Unlock()

	if err := session.Open(ctx, podcast.AudioURL, podcast.Duration); err != nil {
		r.logger.Warn("session failed to load", "session_id", session.ID(), "podcast_id", podcast.ID, "error", err)
		return session, err
	}

	r.logger.Info("session opened", "session_id", session.ID(), "podcast_id", podcast.ID)
	return session, nil
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return session, nil
}

func (r *Registry) Close(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	r.logger.Info("session closed", "session_id", id)
	return session.Close()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SweepIdle closes sessions that saw no activity for longer than the idle TTL.
func (r *Registry) SweepIdle(now time.Time) int {
	if r.idleTTL <= 0 {
		return 0
	}

	var stale []*Session
	r.mu.Lock()
	for id, session := range r.sessions {
		if now.Sub(session.idleSince()) > r.idleTTL {
			stale = append(stale, session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range stale {
		if err := session.Close(); err != nil {
			r.logger.Warn("failed to close idle session", "session_id", session.ID(), "error", err)
		}
	}
	if len(stale) > 0 {
		r.logger.Info("idle sessions closed", "count", len(stale))
	}
	return len(stale)
}

// CloseAll closes every open session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, session := range sessions {
		_ = session.Close()
	}
}

// Sweep adapts SweepIdle to the scheduler.
func (r *Registry) Sweep(_ context.Context) error {
	r.SweepIdle(r.opts.Now())
	return nil
}
