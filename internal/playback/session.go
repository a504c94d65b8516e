// Package playback tracks the state of open players: position, rate and
// play/pause, against an Engine that renders the audio.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"podcastai/internal/domain"
	"podcastai/internal/logging"
)

type Options struct {
	// CatchUpTolerance is how close an engine position must be to a pending
	// seek target before engine updates are trusted again.
	CatchUpTolerance time.Duration
	// CatchUpWindow bounds how long a seek stays authoritative when the
	// engine never lands near the target.
	CatchUpWindow time.Duration
	SkipInterval  time.Duration
	InitialRate   domain.Rate
	Now           func() time.Time
	Logger        *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.CatchUpTolerance <= 0 {
		o.CatchUpTolerance = time.Second
	}
	if o.CatchUpWindow <= 0 {
		o.CatchUpWindow = 3 * time.Second
	}
	if o.SkipInterval <= 0 {
		o.SkipInterval = 10 * time.Second
	}
	if _, err := domain.ParseRate(float64(o.InitialRate)); err != nil {
		o.InitialRate = domain.SupportedRates[0]
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return o
}

type pendingSeek struct {
	target   float64
	deadline time.Time
}

// Session is one open player. All methods are safe for concurrent use; engine
// reports and caller commands are ordered by the session lock, and a pending
// seek outranks engine positions until the engine catches up.
type Session struct {
	mu sync.Mutex

	id        string
	podcastID string
	engine    Engine
	opts      Options

	state    domain.PlaybackState
	position float64
	duration float64
	rate     domain.Rate
	errMsg   string
	seek     *pendingSeek

	// seekBeforeLoad is a fraction requested while Idle or Loading, applied
	// once the duration is known.
	seekBeforeLoad *float64

	lastActive time.Time
}

func NewSession(id, podcastID string, engine Engine, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		id:         id,
		podcastID:  podcastID,
		engine:     engine,
		opts:       opts,
		state:      domain.PlaybackIdle,
		rate:       opts.InitialRate,
		lastActive: opts.Now(),
	}
}

func (s *Session) ID() string { return s.id }

// Open loads audioURL. Idle moves to Loading and then Ready, or to Error when
// the engine fails. fallbackDuration is used when the engine reports none.
func (s *Session) Open(ctx context.Context, audioURL string, fallbackDuration float64) error {
	s.mu.Lock()
	if s.state != domain.PlaybackIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: open from %s", domain.ErrInvalidTransition, state)
	}
	s.state = domain.PlaybackLoading
	s.touch()
	s.mu.Unlock()

	duration, err := s.engine.Load(ctx, audioURL)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.PlaybackLoading {
		return fmt.Errorf("%w: session changed while loading", domain.ErrInvalidTransition)
	}
	if err != nil {
		s.seekBeforeLoad = nil
		s.fail(err)
		return fmt.Errorf("load audio: %w", err)
	}
	if duration <= 0 {
		duration = fallbackDuration
	}
	s.duration = math.Max(duration, 0)
	s.state = domain.PlaybackReady

	if s.rate != domain.SupportedRates[0] {
		if err := s.engine.SetRate(s.rate); err != nil {
			s.fail(err)
			return fmt.Errorf("set rate: %w", err)
		}
	}

	if s.seekBeforeLoad != nil {
		fraction := *s.seekBeforeLoad
		s.seekBeforeLoad = nil
		return s.seekLocked(fraction * s.duration)
	}
	return nil
}

// Play starts or resumes playback. Playing is a no-op; Ended restarts at 0.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch s.state {
	case domain.PlaybackPlaying:
		return nil
	case domain.PlaybackReady, domain.PlaybackPaused:
	case domain.PlaybackEnded:
		if err := s.engine.Seek(0); err != nil {
			s.fail(err)
			return fmt.Errorf("restart: %w", err)
		}
		s.position = 0
		s.seek = nil
	default:
		return fmt.Errorf("%w: play from %s", domain.ErrInvalidTransition, s.state)
	}

	if err := s.engine.Play(); err != nil {
		s.fail(err)
		return fmt.Errorf("play: %w", err)
	}
	s.state = domain.PlaybackPlaying
	return nil
}

// Pause is a no-op when already paused.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch s.state {
	case domain.PlaybackPaused:
		return nil
	case domain.PlaybackPlaying:
	default:
		return fmt.Errorf("%w: pause from %s", domain.ErrInvalidTransition, s.state)
	}

	if err := s.engine.Pause(); err != nil {
		s.fail(err)
		return fmt.Errorf("pause: %w", err)
	}
	s.state = domain.PlaybackPaused
	return nil
}

// Seek moves to fraction of the track, clamped to [0,1]. Before the audio is
// loaded the target is held and applied when the session becomes Ready.
func (s *Session) Seek(fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if math.IsNaN(fraction) {
		fraction = 0
	}
	fraction = math.Min(math.Max(fraction, 0), 1)

	if s.state == domain.PlaybackIdle || s.state == domain.PlaybackLoading {
		s.seekBeforeLoad = &fraction
		return nil
	}
	return s.seekLocked(fraction * s.duration)
}

func (s *Session) SkipForward() error {
	return s.skip(s.opts.SkipInterval.Seconds())
}

func (s *Session) SkipBackward() error {
	return s.skip(-s.opts.SkipInterval.Seconds())
}

func (s *Session) skip(delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	target := math.Min(math.Max(s.position+delta, 0), s.duration)
	return s.seekLocked(target)
}

func (s *Session) seekLocked(seconds float64) error {
	if s.state == domain.PlaybackError {
		return fmt.Errorf("%w: seek from %s", domain.ErrInvalidTransition, s.state)
	}
	if s.state == domain.PlaybackIdle || s.state == domain.PlaybackLoading {
		return fmt.Errorf("%w: seek before load", domain.ErrInvalidTransition)
	}

	if err := s.engine.Seek(seconds); err != nil {
		s.fail(err)
		return fmt.Errorf("seek: %w", err)
	}
	s.position = seconds
	s.seek = &pendingSeek{target: seconds, deadline: s.opts.Now().Add(s.opts.CatchUpWindow)}
	if s.state == domain.PlaybackEnded {
		s.state = domain.PlaybackPaused
	}
	return nil
}

// SetRate accepts only the supported speeds; anything else leaves the session
// untouched and reports ErrUnsupportedRate.
func (s *Session) SetRate(value float64) error {
	rate, err := domain.ParseRate(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.setRateLocked(rate)
}

// CycleRate advances to the next supported speed, wrapping after the fastest.
func (s *Session) CycleRate() (domain.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	next := domain.NextRate(s.rate)
	if err := s.setRateLocked(next); err != nil {
		return s.rate, err
	}
	return next, nil
}

func (s *Session) setRateLocked(rate domain.Rate) error {
	if s.state == domain.PlaybackError {
		return fmt.Errorf("%w: set rate from %s", domain.ErrInvalidTransition, s.state)
	}
	if s.state != domain.PlaybackIdle && s.state != domain.PlaybackLoading {
		if err := s.engine.SetRate(rate); err != nil {
			s.fail(err)
			return fmt.Errorf("set rate: %w", err)
		}
	}
	s.rate = rate
	return nil
}

// ReportPosition applies an engine position update. It reports whether the
// update was applied; updates that contradict a recent seek are dropped.
func (s *Session) ReportPosition(seconds float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch s.state {
	case domain.PlaybackReady, domain.PlaybackPlaying, domain.PlaybackPaused:
	default:
		return false
	}
	if math.IsNaN(seconds) {
		return false
	}

	if s.seek != nil {
		caughtUp := math.Abs(seconds-s.seek.target) <= s.opts.CatchUpTolerance.Seconds()
		if !caughtUp {
			if s.opts.Now().Before(s.seek.deadline) {
				return false
			}
			s.opts.Logger.Debug("engine never caught up with seek",
				"session_id", s.id,
				"target_seconds", s.seek.target,
				"reported_seconds", seconds,
			)
		}
		s.seek = nil
	}

	s.position = math.Min(math.Max(seconds, 0), s.duration)
	return true
}

// ReportEnded marks end-of-track. Only a playing session ends; the position
// resets to 0.
func (s *Session) ReportEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.state != domain.PlaybackPlaying {
		return false
	}
	s.state = domain.PlaybackEnded
	s.position = 0
	s.seek = nil
	return true
}

// ReportError moves the session to the terminal Error state.
func (s *Session) ReportError(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail(errors.New(reason))
}

func (s *Session) Snapshot() domain.PlaybackSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PlaybackSession{
		ID:              s.id,
		PodcastID:       s.podcastID,
		State:           s.state,
		PositionSeconds: s.position,
		DurationSeconds: s.duration,
		IsPlaying:       s.state == domain.PlaybackPlaying,
		Rate:            s.rate,
		Elapsed:         domain.FormatClock(s.position),
		Total:           domain.FormatClock(s.duration),
		Error:           s.errMsg,
	}
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seek = nil
	return s.engine.Close()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.lastActive = s.opts.Now()
}

func (s *Session) fail(err error) {
	s.state = domain.PlaybackError
	s.errMsg = err.Error()
	s.seek = nil
	s.seekBeforeLoad = nil
}
