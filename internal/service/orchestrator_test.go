package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"podcastai/internal/config"
	"podcastai/internal/domain"
	"podcastai/internal/service/mocks"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type OrchestratorTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	store       *memStore
	generator   *mocks.MockContentGenerator
	synthesizer *mocks.MockAudioSynthesizer
	assets      *mocks.MockAssetStore
	publisher   *mocks.MockPublisher

	eventsMu sync.Mutex
	events   []domain.JobEvent

	cfg    config.JobsConfig
	logger *slog.Logger
	orch   *Orchestrator
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.store = newMemStore()
	s.generator = mocks.NewMockContentGenerator(s.ctrl)
	s.synthesizer = mocks.NewMockAudioSynthesizer(s.ctrl)
	s.assets = mocks.NewMockAssetStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.events = nil
	s.publisher.EXPECT().PublishJobEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.JobEvent) error {
			s.eventsMu.Lock()
			s.events = append(s.events, e)
			s.eventsMu.Unlock()
			return nil
		},
	).AnyTimes()
	s.publisher.EXPECT().PublishPodcast(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	s.cfg = config.JobsConfig{
		GenerateTimeout:   time.Second,
		SynthesizeTimeout: time.Second,
		StoreTimeout:      time.Second,
		MaxConcurrent:     4,
	}
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.orch = s.newOrchestrator(s.cfg)
}

func (s *OrchestratorTestSuite) newOrchestrator(cfg config.JobsConfig) *Orchestrator {
	return NewOrchestrator(
		s.store.Jobs(),
		s.store.Staged(),
		s.store.Podcasts(),
		s.store,
		s.generator,
		s.synthesizer,
		s.assets,
		s.publisher,
		s.logger,
		cfg,
	)
}

func (s *OrchestratorTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.orch.Shutdown(ctx)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func request(userID string) domain.PodcastRequest {
	return domain.PodcastRequest{
		UserID:   userID,
		Topic:    "latest developments in AI",
		Length:   5,
		Language: "en",
		VoiceID:  "alloy",
		Style:    domain.StyleConversational,
	}
}

func (s *OrchestratorTestSuite) expectHappyCollaborators(url string) {
	s.generator.EXPECT().Generate(gomock.Any(), "latest developments in AI", domain.StyleConversational, "en", 5).
		Return("Welcome to the show.", nil)
	s.synthesizer.EXPECT().Synthesize(gomock.Any(), "Welcome to the show.", "alloy", "en").
		Return(&domain.Audio{Data: []byte("mp3-bytes"), Duration: 300, Format: "mp3"}, nil)
	s.assets.EXPECT().Store(gomock.Any(), []byte("mp3-bytes")).Return(url, nil)
}

func (s *OrchestratorTestSuite) waitForState(jobID string, want domain.JobState) *domain.GenerationJob {
	var last *domain.GenerationJob
	s.Require().Eventually(func() bool {
		job, err := s.orch.Status(context.Background(), jobID)
		if err != nil {
			return false
		}
		last = job
		return job.State == want
	}, waitFor, tick, "job never reached %s", want)
	return last
}

func (s *OrchestratorTestSuite) waitForIdle(jobID string) {
	s.Require().Eventually(func() bool {
		s.orch.mu.Lock()
		defer s.orch.mu.Unlock()
		_, running := s.orch.running[jobID]
		return !running
	}, waitFor, tick)
}

func (s *OrchestratorTestSuite) eventStates(jobID string) []domain.JobState {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	var states []domain.JobState
	for _, e := range s.events {
		if e.JobID == jobID {
			states = append(states, e.State)
		}
	}
	return states
}

func (s *OrchestratorTestSuite) TestSubmit_CompletesAndPublishesPodcast() {
	ctx := context.Background()
	s.expectHappyCollaborators("/assets/a.mp3")

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.NotEmpty(jobID)

	job := s.waitForState(jobID, domain.JobComplete)
	s.Require().NotNil(job.PodcastID)
	s.Require().NotNil(job.AudioRef)
	s.Equal("/assets/a.mp3", *job.AudioRef)
	s.Nil(job.Error)

	s.waitForIdle(jobID)
	s.Equal([]domain.JobState{
		domain.JobQueued,
		domain.JobGenerating,
		domain.JobSynthesizing,
		domain.JobUploading,
		domain.JobComplete,
	}, s.eventStates(jobID))

	podcast, err := s.store.Podcasts().Get(ctx, *job.PodcastID)
	s.Require().NoError(err)
	s.Equal("Latest Developments In Ai", podcast.Title)
	s.Equal("Welcome to the show.", podcast.Content)
	s.Equal("Welcome to the show.", podcast.Transcript)
	s.Equal("/assets/a.mp3", podcast.AudioURL)
	s.Equal(300.0, podcast.Duration)
	s.Equal("user-1", podcast.UserID)
	s.Equal("latest developments in AI", podcast.Topic)
	s.Equal(jobID, podcast.JobID)
	s.Equal(0, s.store.stagedCount())

	persisted, ok := s.store.job(jobID)
	s.Require().True(ok)
	s.Equal(domain.JobComplete, persisted.State)
}

func (s *OrchestratorTestSuite) TestSubmit_InvalidRequest() {
	ctx := context.Background()

	req := request("user-1")
	req.Length = 2
	_, err := s.orch.Submit(ctx, req)
	s.ErrorIs(err, domain.ErrInvalidRequest)

	req = request("user-1")
	req.Length = 31
	_, err = s.orch.Submit(ctx, req)
	s.ErrorIs(err, domain.ErrInvalidRequest)

	req = request("user-1")
	req.Topic = "   "
	_, err = s.orch.Submit(ctx, req)
	s.ErrorIs(err, domain.ErrInvalidRequest)

	s.Empty(s.store.jobs)
}

func (s *OrchestratorTestSuite) TestSubmit_RejectsSecondActiveJobForSameUser() {
	ctx := context.Background()
	release := make(chan struct{})

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Style, string, int) (string, error) {
			<-release
			return "", errors.New("model unavailable")
		})

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.waitForState(jobID, domain.JobGenerating)

	_, err = s.orch.Submit(ctx, request("user-1"))
	s.ErrorIs(err, domain.ErrActiveJob)

	close(release)
	s.waitForState(jobID, domain.JobFailed)
	s.waitForIdle(jobID)

	s.expectHappyCollaborators("/assets/b.mp3")
	second, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.waitForState(second, domain.JobComplete)
}

func (s *OrchestratorTestSuite) TestSubmit_DifferentUsersRunConcurrently() {
	ctx := context.Background()
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Style, string, int) (string, error) {
			started.Done()
			<-release
			return "", errors.New("stop here")
		}).Times(2)

	a, err := s.orch.Submit(ctx, request("user-a"))
	s.Require().NoError(err)
	b, err := s.orch.Submit(ctx, request("user-b"))
	s.Require().NoError(err)

	waited := make(chan struct{})
	go func() {
		started.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(waitFor):
		s.FailNow("jobs for different users did not run concurrently")
	}

	close(release)
	s.waitForState(a, domain.JobFailed)
	s.waitForState(b, domain.JobFailed)
}

func (s *OrchestratorTestSuite) TestGenerationFailure_FailsWithoutPodcast() {
	ctx := context.Background()
	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("upstream 500"))

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)

	job := s.waitForState(jobID, domain.JobFailed)
	s.Require().NotNil(job.Error)
	s.Contains(*job.Error, "generation failure")
	s.Contains(*job.Error, "upstream 500")
	s.Equal(0, s.store.podcastCount())
}

func (s *OrchestratorTestSuite) TestEmptyScript_IsGenerationFailure() {
	ctx := context.Background()
	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("  \n", nil)

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)

	job := s.waitForState(jobID, domain.JobFailed)
	s.Contains(*job.Error, "generation failure")
}

func (s *OrchestratorTestSuite) TestSynthesisTimeout_FailsWithTimeoutReason() {
	ctx := context.Background()
	s.orch = s.newOrchestrator(config.JobsConfig{
		GenerateTimeout:   time.Second,
		SynthesizeTimeout: 20 * time.Millisecond,
		StoreTimeout:      time.Second,
		MaxConcurrent:     1,
	})

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("script", nil)
	s.synthesizer.EXPECT().Synthesize(gomock.Any(), "script", "alloy", "en").
		DoAndReturn(func(ctx context.Context, _, _, _ string) (*domain.Audio, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)

	job := s.waitForState(jobID, domain.JobFailed)
	s.Require().NotNil(job.Error)
	s.Contains(*job.Error, "timeout")
	s.Contains(*job.Error, "synthesize")
	s.Require().NotNil(job.Script)
	s.Equal("script", *job.Script)
}

func (s *OrchestratorTestSuite) TestStorageFailure_DropsStagedAudio() {
	ctx := context.Background()
	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("script", nil)
	s.synthesizer.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.Audio{Data: []byte("x"), Duration: 10}, nil)
	s.assets.EXPECT().Store(gomock.Any(), []byte("x")).Return("", errors.New("disk full"))

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)

	job := s.waitForState(jobID, domain.JobFailed)
	s.Contains(*job.Error, "storage failure")
	s.Nil(job.AudioRef)
	s.Equal(0, s.store.podcastCount())
	s.Equal(0, s.store.stagedCount())
}

func (s *OrchestratorTestSuite) TestFinalizeFailure_PublishesNothing() {
	ctx := context.Background()
	s.store.failPodcastCreate = errors.New("constraint violation")
	s.expectHappyCollaborators("/assets/c.mp3")

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)

	job := s.waitForState(jobID, domain.JobFailed)
	s.Nil(job.PodcastID)
	s.Contains(*job.Error, "storage failure")
	s.Equal(0, s.store.podcastCount())
}

func (s *OrchestratorTestSuite) TestPodcastNotVisibleWhileJobInProgress() {
	ctx := context.Background()
	release := make(chan struct{})

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("script", nil)
	s.synthesizer.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.Audio{Data: []byte("x"), Duration: 10}, nil)
	s.assets.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []byte) (string, error) {
			<-release
			return "/assets/d.mp3", nil
		})

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.waitForState(jobID, domain.JobUploading)

	podcasts, err := s.store.Podcasts().ListByUser(ctx, "user-1")
	s.NoError(err)
	s.Empty(podcasts)

	close(release)
	s.waitForState(jobID, domain.JobComplete)

	podcasts, err = s.store.Podcasts().ListByUser(ctx, "user-1")
	s.NoError(err)
	s.Len(podcasts, 1)
}

func (s *OrchestratorTestSuite) TestCancel_DuringGenerationStopsBeforeSynthesis() {
	ctx := context.Background()
	release := make(chan struct{})

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Style, string, int) (string, error) {
			<-release
			return "script", nil
		})

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.waitForState(jobID, domain.JobGenerating)

	s.NoError(s.orch.Cancel(ctx, jobID))

	persisted, _ := s.store.job(jobID)
	s.True(persisted.CancelRequested)

	close(release)
	s.waitForState(jobID, domain.JobCancelled)
	s.Equal(0, s.store.podcastCount())
	s.ErrorIs(s.orch.Cancel(ctx, jobID), domain.ErrAlreadyTerminal)
}

func (s *OrchestratorTestSuite) TestCancel_AfterUploadDeletesOrphanedAsset() {
	ctx := context.Background()
	release := make(chan struct{})

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("script", nil)
	s.synthesizer.EXPECT().Synthesize(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&domain.Audio{Data: []byte("x"), Duration: 10}, nil)
	s.assets.EXPECT().Store(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []byte) (string, error) {
			<-release
			return "/assets/e.mp3", nil
		})
	s.assets.EXPECT().Delete(gomock.Any(), "/assets/e.mp3").Return(nil)

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.waitForState(jobID, domain.JobUploading)

	s.NoError(s.orch.Cancel(ctx, jobID))
	close(release)

	s.waitForState(jobID, domain.JobCancelled)
	s.waitForIdle(jobID)
	s.Equal(0, s.store.podcastCount())
	s.Equal(0, s.store.stagedCount())
}

func (s *OrchestratorTestSuite) TestCancel_CompleteJobReturnsAlreadyTerminal() {
	ctx := context.Background()
	s.expectHappyCollaborators("/assets/f.mp3")

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	job := s.waitForState(jobID, domain.JobComplete)
	s.waitForIdle(jobID)

	s.ErrorIs(s.orch.Cancel(ctx, jobID), domain.ErrAlreadyTerminal)

	podcast, err := s.store.Podcasts().Get(ctx, *job.PodcastID)
	s.NoError(err)
	s.Equal(jobID, podcast.JobID)

	after, err := s.orch.Status(ctx, jobID)
	s.NoError(err)
	s.Equal(domain.JobComplete, after.State)
}

func (s *OrchestratorTestSuite) TestCancel_UnknownJob() {
	err := s.orch.Cancel(context.Background(), "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *OrchestratorTestSuite) TestCancel_QueuedJobWaitingForSlot() {
	ctx := context.Background()
	s.orch = s.newOrchestrator(config.JobsConfig{
		GenerateTimeout:   time.Second,
		SynthesizeTimeout: time.Second,
		StoreTimeout:      time.Second,
		MaxConcurrent:     1,
	})
	release := make(chan struct{})

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Style, string, int) (string, error) {
			<-release
			return "", errors.New("stop")
		})

	first, err := s.orch.Submit(ctx, request("user-a"))
	s.Require().NoError(err)
	s.waitForState(first, domain.JobGenerating)

	queued, err := s.orch.Submit(ctx, request("user-b"))
	s.Require().NoError(err)

	status, err := s.orch.Status(ctx, queued)
	s.Require().NoError(err)
	s.Equal(domain.JobQueued, status.State)

	s.NoError(s.orch.Cancel(ctx, queued))
	s.waitForState(queued, domain.JobCancelled)

	close(release)
	s.waitForState(first, domain.JobFailed)
}

func (s *OrchestratorTestSuite) TestCancel_WhileQueuedEventIsPublishing() {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})

	pub := mocks.NewMockPublisher(s.ctrl)
	pub.EXPECT().PublishJobEvent(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e domain.JobEvent) error {
			if e.State == domain.JobQueued {
				close(entered)
				<-release
			}
			s.eventsMu.Lock()
			s.events = append(s.events, e)
			s.eventsMu.Unlock()
			return nil
		},
	).AnyTimes()
	s.orch = NewOrchestrator(
		s.store.Jobs(), s.store.Staged(), s.store.Podcasts(), s.store,
		s.generator, s.synthesizer, s.assets, pub, s.logger, s.cfg,
	)

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)

	select {
	case <-entered:
	case <-time.After(waitFor):
		s.FailNow("queued event was never published")
	}

	s.NoError(s.orch.Cancel(ctx, jobID))
	close(release)

	job := s.waitForState(jobID, domain.JobCancelled)
	s.True(job.CancelRequested)
	s.waitForIdle(jobID)
	s.Equal(0, s.store.podcastCount())
	s.Equal([]domain.JobState{domain.JobQueued, domain.JobCancelled}, s.eventStates(jobID))

	persisted, ok := s.store.job(jobID)
	s.Require().True(ok)
	s.Equal(domain.JobCancelled, persisted.State)
}

func (s *OrchestratorTestSuite) TestStatus_UnknownJob() {
	_, err := s.orch.Status(context.Background(), "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *OrchestratorTestSuite) TestResume_ContinuesFromStagedAudio() {
	ctx := context.Background()
	script := "resumed script"
	created := time.Now().Add(-time.Minute).UTC()

	s.store.jobs["job-upload"] = domain.GenerationJob{
		ID:        "job-upload",
		Request:   request("user-1"),
		State:     domain.JobUploading,
		CreatedAt: created,
		UpdatedAt: created,
		Script:    &script,
		Duration:  42,
	}
	s.store.staged["job-upload"] = domain.StagedAudio{JobID: "job-upload", Data: []byte("staged"), Duration: 42}

	s.store.jobs["job-cancel"] = domain.GenerationJob{
		ID:              "job-cancel",
		Request:         request("user-2"),
		State:           domain.JobGenerating,
		CreatedAt:       created,
		UpdatedAt:       created,
		CancelRequested: true,
	}

	s.assets.EXPECT().Store(gomock.Any(), []byte("staged")).Return("/assets/g.mp3", nil)

	n, err := s.orch.Resume(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	job := s.waitForState("job-upload", domain.JobComplete)
	s.Require().NotNil(job.PodcastID)
	podcast, err := s.store.Podcasts().Get(ctx, *job.PodcastID)
	s.Require().NoError(err)
	s.Equal("resumed script", podcast.Transcript)
	s.Equal(42.0, podcast.Duration)

	s.waitForState("job-cancel", domain.JobCancelled)
}

func (s *OrchestratorTestSuite) TestResume_BlocksNewSubmitForResumedUser() {
	ctx := context.Background()
	release := make(chan struct{})
	created := time.Now().UTC()

	s.store.jobs["job-queued"] = domain.GenerationJob{
		ID:        "job-queued",
		Request:   request("user-1"),
		State:     domain.JobQueued,
		CreatedAt: created,
		UpdatedAt: created,
	}

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, domain.Style, string, int) (string, error) {
			<-release
			return "", errors.New("stop")
		})

	_, err := s.orch.Resume(ctx)
	s.Require().NoError(err)
	s.waitForState("job-queued", domain.JobGenerating)

	_, err = s.orch.Submit(ctx, request("user-1"))
	s.ErrorIs(err, domain.ErrActiveJob)

	close(release)
	s.waitForState("job-queued", domain.JobFailed)
}

func (s *OrchestratorTestSuite) TestShutdown_LeavesInterruptedJobResumable() {
	ctx := context.Background()

	s.generator.EXPECT().Generate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ domain.Style, _ string, _ int) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

	jobID, err := s.orch.Submit(ctx, request("user-1"))
	s.Require().NoError(err)
	s.waitForState(jobID, domain.JobGenerating)

	shutdownCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.orch.Shutdown(shutdownCtx), context.DeadlineExceeded)

	persisted, ok := s.store.job(jobID)
	s.Require().True(ok)
	s.Equal(domain.JobGenerating, persisted.State)

	_, err = s.orch.Submit(ctx, request("user-2"))
	s.ErrorIs(err, ErrShuttingDown)
}

func (s *OrchestratorTestSuite) TestListJobs_NewestFirst() {
	ctx := context.Background()
	older := time.Now().Add(-time.Hour).UTC()
	newer := time.Now().UTC()
	s.store.jobs["old"] = domain.GenerationJob{ID: "old", Request: request("user-1"), State: domain.JobFailed, CreatedAt: older}
	s.store.jobs["new"] = domain.GenerationJob{ID: "new", Request: request("user-1"), State: domain.JobComplete, CreatedAt: newer}
	s.store.jobs["other"] = domain.GenerationJob{ID: "other", Request: request("user-2"), State: domain.JobComplete, CreatedAt: newer}

	jobs, err := s.orch.ListJobs(ctx, "user-1", 0)
	s.Require().NoError(err)
	s.Require().Len(jobs, 2)
	s.Equal("new", jobs[0].ID)
	s.Equal("old", jobs[1].ID)
}

func TestPodcastTitle(t *testing.T) {
	req := domain.PodcastRequest{Topic: "  history   of\trome ", Language: "en"}
	if got := podcastTitle(req); got != "History Of Rome" {
		t.Fatalf("podcastTitle = %q, want %q", got, "History Of Rome")
	}

	long := domain.PodcastRequest{Language: "en"}
	for i := 0; i < 50; i++ {
		long.Topic += "word "
	}
	if got := []rune(podcastTitle(long)); len(got) != maxTitleRunes {
		t.Fatalf("title length = %d, want %d", len(got), maxTitleRunes)
	}
}

func TestFailureReason(t *testing.T) {
	if got := failureReason(nil); got != "unknown failure" {
		t.Fatalf("failureReason(nil) = %q", got)
	}
	err := errors.Join(errors.New("wrapped"), domain.ErrTimeout)
	if got := failureReason(err); got[:len("timeout")] != "timeout" {
		t.Fatalf("failureReason = %q, want timeout prefix", got)
	}
}
