package service

import (
	"context"
	"maps"
	"sort"
	"sync"

	"podcastai/internal/domain"
)

// memStore is an in-memory JobStore, AudioStageStore, PodcastStore and
// TransactionManager. Transactions restore a snapshot when fn fails.
type memStore struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	jobs     map[string]domain.GenerationJob
	staged   map[string]domain.StagedAudio
	podcasts map[string]domain.Podcast

	failPodcastCreate error
}

func newMemStore() *memStore {
	return &memStore{
		jobs:     make(map[string]domain.GenerationJob),
		staged:   make(map[string]domain.StagedAudio),
		podcasts: make(map[string]domain.Podcast),
	}
}

func (m *memStore) Jobs() *memJobs         { return (*memJobs)(m) }
func (m *memStore) Staged() *memStaged     { return (*memStaged)(m) }
func (m *memStore) Podcasts() *memPodcasts { return (*memPodcasts)(m) }

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	jobs := maps.Clone(m.jobs)
	staged := maps.Clone(m.staged)
	podcasts := maps.Clone(m.podcasts)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.jobs, m.staged, m.podcasts = jobs, staged, podcasts
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) job(id string) (domain.GenerationJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	return j.Clone(), ok
}

func (m *memStore) podcastCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.podcasts)
}

func (m *memStore) stagedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.staged)
}

type memJobs memStore

func (s *memJobs) Create(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.Request.UserID == job.Request.UserID && existing.State.IsActive() {
			return domain.ErrActiveJob
		}
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *memJobs) Get(_ context.Context, id string) (*domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := j.Clone()
	return &out, nil
}

func (s *memJobs) Update(_ context.Context, job *domain.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.State.IsTerminal() {
		return domain.ErrAlreadyTerminal
	}
	next := job.Clone()
	next.CancelRequested = existing.CancelRequested
	s.jobs[job.ID] = next
	return nil
}

func (s *memJobs) MarkCancelRequested(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.State.IsTerminal() {
		return domain.ErrAlreadyTerminal
	}
	existing.CancelRequested = true
	s.jobs[id] = existing
	return nil
}

func (s *memJobs) ListByStates(_ context.Context, states []domain.JobState) ([]domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GenerationJob
	for _, j := range s.jobs {
		for _, st := range states {
			if j.State == st {
				out = append(out, j.Clone())
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (s *memJobs) ListByUser(_ context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.GenerationJob
	for _, j := range s.jobs {
		if j.Request.UserID == userID {
			out = append(out, j.Clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memStaged memStore

func (s *memStaged) Save(_ context.Context, audio *domain.StagedAudio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged[audio.JobID] = *audio
	return nil
}

func (s *memStaged) Get(_ context.Context, jobID string) (*domain.StagedAudio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.staged[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (s *memStaged) Delete(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.staged, jobID)
	return nil
}

type memPodcasts memStore

func (s *memPodcasts) Create(_ context.Context, p *domain.Podcast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPodcastCreate != nil {
		return s.failPodcastCreate
	}
	s.podcasts[p.ID] = *p
	return nil
}

func (s *memPodcasts) Get(_ context.Context, id string) (*domain.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.podcasts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *memPodcasts) ListByUser(_ context.Context, userID string) ([]domain.Podcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Podcast
	for _, p := range s.podcasts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}
