package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"podcastai/internal/config"
	"podcastai/internal/domain"
)

var ErrShuttingDown = errors.New("orchestrator is shutting down")

const (
	maxTitleRunes     = 120
	defaultJobListCap = 20
)

// Orchestrator drives each GenerationJob through generate, synthesize and
// upload, persisting every transition before it becomes visible to Status.
type Orchestrator struct {
	jobs        JobStore
	staged      AudioStageStore
	podcasts    PodcastStore
	txManager   TransactionManager
	generator   ContentGenerator
	synthesizer AudioSynthesizer
	assets      AssetStore
	publisher   Publisher
	logger      *slog.Logger
	config      config.JobsConfig

	slots *semaphore.Weighted
	now   func() time.Time
	newID func() string

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]*jobRun
	active  map[string]string
}

type jobRun struct {
	mu         sync.Mutex
	job        domain.GenerationJob
	finalizing bool
	wake       context.CancelFunc
	waitCtx    context.Context
}

func (r *jobRun) snapshot() domain.GenerationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Clone()
}

func (r *jobRun) cancelRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.CancelRequested
}

func NewOrchestrator(
	jobs JobStore,
	staged AudioStageStore,
	podcasts PodcastStore,
	txManager TransactionManager,
	generator ContentGenerator,
	synthesizer AudioSynthesizer,
	assets AssetStore,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.JobsConfig,
) *Orchestrator {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		jobs:        jobs,
		staged:      staged,
		podcasts:    podcasts,
		txManager:   txManager,
		generator:   generator,
		synthesizer: synthesizer,
		assets:      assets,
		publisher:   publisher,
		logger:      logger.With("component", "orchestrator"),
		config:      cfg,
		slots:       semaphore.NewWeighted(maxConcurrent),
		now:         time.Now,
		newID:       uuid.NewString,
		baseCtx:     ctx,
		stop:        stop,
		running:     make(map[string]*jobRun),
		active:      make(map[string]string),
	}
}

// Submit validates the request, records a Queued job and starts it.
func (o *Orchestrator) Submit(ctx context.Context, req domain.PodcastRequest) (string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	now := o.now().UTC()
	job := domain.GenerationJob{
		ID:        o.newID(),
		Request:   req,
		State:     domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrShuttingDown
	}
	if existing, ok := o.active[req.UserID]; ok {
		o.mu.Unlock()
		return "", fmt.Errorf("%w: job %s", domain.ErrActiveJob, existing)
	}
	o.active[req.UserID] = job.ID
	run := o.registerLocked(job)
	o.wg.Add(1)
	o.mu.Unlock()

	if err := o.jobs.Create(ctx, &job); err != nil {
		run.wake()
		o.release(run)
		o.wg.Done()
		return "", fmt.Errorf("create job: %w", err)
	}

	o.logger.Info("job submitted",
		"job_id", job.ID,
		"user_id", req.UserID,
		"length_minutes", req.Length,
		"language", req.Language,
	)
	o.start(run, true)

	return job.ID, nil
}

// Status returns the latest persisted snapshot of a job without waiting on
// any in-flight step.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	o.mu.Lock()
	run := o.running[jobID]
	o.mu.Unlock()

	if run != nil {
		job := run.snapshot()
		return &job, nil
	}

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Cancel asks a job to stop before its next step. Terminal jobs, and jobs
// already publishing their podcast, report ErrAlreadyTerminal.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	o.mu.Lock()
	run := o.running[jobID]
	o.mu.Unlock()

	if run == nil {
		job, err := o.jobs.Get(ctx, jobID)
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		if job.State.IsTerminal() {
			return domain.ErrAlreadyTerminal
		}
		return o.jobs.MarkCancelRequested(ctx, jobID)
	}

	run.mu.Lock()
	if run.job.State.IsTerminal() || run.finalizing {
		run.mu.Unlock()
		return domain.ErrAlreadyTerminal
	}
	run.job.CancelRequested = true
	if run.wake != nil {
		run.wake()
	}
	run.mu.Unlock()

	if err := o.jobs.MarkCancelRequested(ctx, jobID); err != nil && !errors.Is(err, domain.ErrAlreadyTerminal) {
		o.logger.Warn("failed to persist cancel request", "job_id", jobID, "error", err)
	}

	o.logger.Info("cancel requested", "job_id", jobID)
	return nil
}

// ListJobs returns the user's most recent jobs, newest first.
func (o *Orchestrator) ListJobs(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	if limit <= 0 {
		limit = defaultJobListCap
	}
	jobs, err := o.jobs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range jobs {
		if run, ok := o.running[jobs[i].ID]; ok {
			jobs[i] = run.snapshot()
		}
	}
	return jobs, nil
}

// Resume picks up every non-terminal job left behind by a previous process.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	jobs, err := o.jobs.ListByStates(ctx, domain.ActiveJobStates)
	if err != nil {
		return 0, fmt.Errorf("list unfinished jobs: %w", err)
	}

	resumed := 0
	for _, job := range jobs {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return resumed, ErrShuttingDown
		}
		if _, owned := o.running[job.ID]; owned {
			o.mu.Unlock()
			continue
		}
		o.active[job.Request.UserID] = job.ID
		run := o.registerLocked(job)
		o.wg.Add(1)
		o.mu.Unlock()

		o.logger.Info("resuming job", "job_id", job.ID, "state", job.State, "cancel_requested", job.CancelRequested)
		o.start(run, false)
		resumed++
	}
	return resumed, nil
}

// Shutdown stops accepting jobs and waits for in-flight steps. If ctx expires
// first, in-flight calls are aborted and their jobs are left for Resume.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	for _, run := range o.running {
		run.mu.Lock()
		if run.wake != nil {
			run.wake()
		}
		run.mu.Unlock()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.stop()
		return nil
	case <-ctx.Done():
		o.stop()
		<-done
		return ctx.Err()
	}
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// registerLocked makes the job visible to Status and Cancel before it is
// persisted, so a cancel can never slip in between creation and start.
// The caller holds o.mu.
func (o *Orchestrator) registerLocked(job domain.GenerationJob) *jobRun {
	waitCtx, wake := context.WithCancel(o.baseCtx)
	run := &jobRun{job: job, wake: wake, waitCtx: waitCtx}
	o.running[job.ID] = run
	return run
}

// start expects the caller to have reserved the user slot and called wg.Add.
// announce publishes the Queued event before the first step.
func (o *Orchestrator) start(run *jobRun, announce bool) {
	wake := run.wake
	go func() {
		defer o.wg.Done()
		defer o.release(run)
		defer wake()
		if announce {
			o.publishEvent(o.baseCtx, run.snapshot())
		}
		o.execute(run.waitCtx, run)
	}()
}

func (o *Orchestrator) release(run *jobRun) {
	job := run.snapshot()

	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, job.ID)
	if o.active[job.Request.UserID] == job.ID {
		delete(o.active, job.Request.UserID)
	}
}

func (o *Orchestrator) execute(waitCtx context.Context, run *jobRun) {
	ctx := o.baseCtx
	job := run.snapshot()
	logger := o.logger.With("job_id", job.ID, "user_id", job.Request.UserID)

	if job.CancelRequested {
		o.cancelJob(ctx, run, logger)
		return
	}

	if err := o.slots.Acquire(waitCtx, 1); err != nil {
		if run.cancelRequested() && !o.isClosed() {
			o.cancelJob(ctx, run, logger)
		}
		return
	}
	defer o.slots.Release(1)

	for {
		job = run.snapshot()
		if job.State.IsTerminal() {
			return
		}
		if job.CancelRequested {
			o.cancelJob(ctx, run, logger)
			return
		}
		if o.isClosed() {
			logger.Info("job paused for shutdown", "state", job.State)
			return
		}

		var err error
		switch {
		case job.State == domain.JobQueued:
			err = o.transition(ctx, run, func(j *domain.GenerationJob) {
				j.State = domain.JobGenerating
			})
		case job.State == domain.JobGenerating:
			err = o.generate(ctx, run, logger)
		case job.State == domain.JobSynthesizing:
			err = o.synthesize(ctx, run, logger)
		case job.State == domain.JobUploading && job.AudioRef == nil:
			err = o.upload(ctx, run, logger)
		case job.State == domain.JobUploading:
			err = o.finalize(ctx, run, logger)
		}

		if err != nil {
			if ctx.Err() != nil {
				logger.Info("job interrupted by shutdown", "state", job.State)
				return
			}
			if errors.Is(err, errCancelledBeforeFinalize) {
				o.cancelJob(ctx, run, logger)
				return
			}
			o.failJob(ctx, run, err, logger)
			return
		}
	}
}

func (o *Orchestrator) generate(ctx context.Context, run *jobRun, logger *slog.Logger) error {
	req := run.snapshot().Request
	start := o.now()

	var script string
	err := o.callStep(ctx, "generate", o.config.GenerateTimeout, domain.ErrGenerationFailure, func(stepCtx context.Context) error {
		var err error
		script, err = o.generator.Generate(stepCtx, req.Topic, req.Style, req.Language, req.Length)
		if err == nil && strings.TrimSpace(script) == "" {
			err = errors.New("empty script")
		}
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("script generated", "words", len(strings.Fields(script)), "took", o.now().Sub(start))

	return o.transition(ctx, run, func(j *domain.GenerationJob) {
		j.Script = &script
		j.State = domain.JobSynthesizing
	})
}

func (o *Orchestrator) synthesize(ctx context.Context, run *jobRun, logger *slog.Logger) error {
	job := run.snapshot()
	if job.Script == nil {
		return fmt.Errorf("%w: synthesize without script", domain.ErrSynthesisFailure)
	}
	start := o.now()

	var audio *domain.Audio
	err := o.callStep(ctx, "synthesize", o.config.SynthesizeTimeout, domain.ErrSynthesisFailure, func(stepCtx context.Context) error {
		var err error
		audio, err = o.synthesizer.Synthesize(stepCtx, *job.Script, job.Request.VoiceID, job.Request.Language)
		if err == nil && (audio == nil || len(audio.Data) == 0) {
			err = errors.New("empty audio")
		}
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("audio synthesized",
		"size", humanize.Bytes(uint64(len(audio.Data))),
		"duration_seconds", audio.Duration,
		"took", o.now().Sub(start),
	)

	next, err := o.prepare(run, func(j *domain.GenerationJob) {
		j.Duration = audio.Duration
		j.State = domain.JobUploading
	})
	if err != nil {
		return err
	}

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.staged.Save(txCtx, &domain.StagedAudio{
			JobID:    job.ID,
			Data:     audio.Data,
			Duration: audio.Duration,
		}); err != nil {
			return fmt.Errorf("stage audio: %w", err)
		}
		if err := o.jobs.Update(txCtx, &next); err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.commit(ctx, run, next)
	return nil
}

func (o *Orchestrator) upload(ctx context.Context, run *jobRun, logger *slog.Logger) error {
	job := run.snapshot()

	staged, err := o.staged.Get(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("%w: load staged audio: %w", domain.ErrStorageFailure, err)
	}

	var url string
	err = o.callStep(ctx, "store", o.config.StoreTimeout, domain.ErrStorageFailure, func(stepCtx context.Context) error {
		var err error
		url, err = o.assets.Store(stepCtx, staged.Data)
		return err
	})
	if err != nil {
		return err
	}

	logger.Info("audio stored", "audio_url", url, "size", humanize.Bytes(uint64(len(staged.Data))))

	return o.transition(ctx, run, func(j *domain.GenerationJob) {
		j.AudioRef = &url
		if j.Duration == 0 {
			j.Duration = staged.Duration
		}
	})
}

var errCancelledBeforeFinalize = errors.New("cancelled before finalize")

// finalize publishes the podcast and completes the job in one transaction.
func (o *Orchestrator) finalize(ctx context.Context, run *jobRun, logger *slog.Logger) error {
	run.mu.Lock()
	if run.job.CancelRequested {
		run.mu.Unlock()
		return errCancelledBeforeFinalize
	}
	run.finalizing = true
	job := run.job.Clone()
	run.mu.Unlock()

	if job.Script == nil || job.AudioRef == nil {
		return fmt.Errorf("%w: finalize without script or audio", domain.ErrStorageFailure)
	}

	now := o.now().UTC()
	podcast := &domain.Podcast{
		ID:         o.newID(),
		JobID:      job.ID,
		Title:      podcastTitle(job.Request),
		Content:    *job.Script,
		AudioURL:   *job.AudioRef,
		Transcript: *job.Script,
		Duration:   job.Duration,
		CreatedAt:  now,
		UserID:     job.Request.UserID,
		Topic:      job.Request.Topic,
	}

	next := job.Clone()
	next.State = domain.JobComplete
	next.PodcastID = &podcast.ID
	next.UpdatedAt = now

	err := o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.podcasts.Create(txCtx, podcast); err != nil {
			return fmt.Errorf("create podcast: %w", err)
		}
		if err := o.jobs.Update(txCtx, &next); err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		if err := o.staged.Delete(txCtx, job.ID); err != nil {
			return fmt.Errorf("drop staged audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageFailure, err)
	}

	o.commit(ctx, run, next)

	if o.publisher != nil {
		if err := o.publisher.PublishPodcast(ctx, podcast); err != nil {
			logger.Warn("failed to publish podcast", "podcast_id", podcast.ID, "error", err)
		}
	}

	logger.Info("job complete", "podcast_id", podcast.ID, "duration_seconds", podcast.Duration)
	return nil
}

func (o *Orchestrator) cancelJob(ctx context.Context, run *jobRun, logger *slog.Logger) {
	job := run.snapshot()
	if job.AudioRef != nil {
		if err := o.assets.Delete(ctx, *job.AudioRef); err != nil {
			logger.Warn("failed to delete orphaned asset", "audio_url", *job.AudioRef, "error", err)
		}
	}

	reason := "cancelled by user"
	err := o.terminate(ctx, run, domain.JobCancelled, reason)
	if err != nil {
		logger.Error("failed to persist cancellation", "error", err)
		return
	}
	logger.Info("job cancelled", "at_state", job.State)
}

func (o *Orchestrator) failJob(ctx context.Context, run *jobRun, cause error, logger *slog.Logger) {
	reason := failureReason(cause)
	if err := o.terminate(ctx, run, domain.JobFailed, reason); err != nil {
		logger.Error("failed to persist job failure", "reason", reason, "error", err)
		return
	}
	logger.Error("job failed", "reason", reason, "error", cause)
}

func (o *Orchestrator) terminate(ctx context.Context, run *jobRun, state domain.JobState, reason string) error {
	job := run.snapshot()
	next, err := o.prepare(run, func(j *domain.GenerationJob) {
		j.State = state
		j.Error = &reason
	})
	if err != nil {
		return err
	}

	err = o.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := o.jobs.Update(txCtx, &next); err != nil {
			return err
		}
		return o.staged.Delete(txCtx, job.ID)
	})
	if err != nil {
		return err
	}

	o.commit(ctx, run, next)
	return nil
}

// callStep runs one external call under its step timeout and tags failures.
func (o *Orchestrator) callStep(
	ctx context.Context,
	step string,
	timeout time.Duration,
	marker error,
	call func(ctx context.Context) error,
) error {
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := call(stepCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s step exceeded %s", domain.ErrTimeout, step, timeout)
	}
	if errors.Is(err, marker) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%w: %s: %w", marker, step, err)
}

func (o *Orchestrator) transition(ctx context.Context, run *jobRun, mutate func(j *domain.GenerationJob)) error {
	next, err := o.prepare(run, mutate)
	if err != nil {
		return err
	}
	if err := o.jobs.Update(ctx, &next); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	o.commit(ctx, run, next)
	return nil
}

// prepare computes the next snapshot without publishing it.
func (o *Orchestrator) prepare(run *jobRun, mutate func(j *domain.GenerationJob)) (domain.GenerationJob, error) {
	current := run.snapshot()
	next := current.Clone()
	mutate(&next)
	next.UpdatedAt = o.now().UTC()

	if next.State != current.State && !domain.CanTransition(current.State, next.State) {
		return next, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.State, next.State)
	}
	return next, nil
}

// commit makes a persisted snapshot visible to Status readers.
func (o *Orchestrator) commit(ctx context.Context, run *jobRun, next domain.GenerationJob) {
	run.mu.Lock()
	next.CancelRequested = next.CancelRequested || run.job.CancelRequested
	stateChanged := next.State != run.job.State
	run.job = next
	if next.State != domain.JobQueued && run.wake != nil {
		run.wake = nil
	}
	run.mu.Unlock()

	if stateChanged {
		o.publishEvent(ctx, next)
	}
}

func (o *Orchestrator) publishEvent(ctx context.Context, job domain.GenerationJob) {
	if o.publisher == nil {
		return
	}
	event := domain.JobEvent{
		JobID:     job.ID,
		UserID:    job.Request.UserID,
		State:     job.State,
		Error:     job.Error,
		PodcastID: job.PodcastID,
		At:        job.UpdatedAt,
	}
	if err := o.publisher.PublishJobEvent(ctx, event); err != nil {
		o.logger.Warn("failed to publish job event", "job_id", job.ID, "state", job.State, "error", err)
	}
}

func failureReason(err error) string {
	if err == nil {
		return "unknown failure"
	}
	msg := err.Error()
	if errors.Is(err, domain.ErrTimeout) && !strings.HasPrefix(msg, domain.ErrTimeout.Error()) {
		msg = domain.ErrTimeout.Error() + ": " + msg
	}
	return msg
}

func podcastTitle(req domain.PodcastRequest) string {
	tag, err := language.Parse(req.Language)
	if err != nil {
		tag = language.Und
	}
	title := cases.Title(tag).String(strings.Join(strings.Fields(req.Topic), " "))
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes-1]) + "…"
	}
	return title
}
