package domain

import "time"

type JobState string

const (
	JobQueued       JobState = "queued"
	JobGenerating   JobState = "generating"
	JobSynthesizing JobState = "synthesizing"
	JobUploading    JobState = "uploading"
	JobComplete     JobState = "complete"
	JobFailed       JobState = "failed"
	JobCancelled    JobState = "cancelled"
)

// ActiveJobStates lists the states in which a job still holds its user's slot.
var ActiveJobStates = []JobState{JobQueued, JobGenerating, JobSynthesizing, JobUploading}

func (s JobState) IsTerminal() bool {
	switch s {
	case JobComplete, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

func (s JobState) IsActive() bool {
	switch s {
	case JobQueued, JobGenerating, JobSynthesizing, JobUploading:
		return true
	default:
		return false
	}
}

// CanTransition enforces the job state machine edges.
func CanTransition(from, to JobState) bool {
	if to == JobFailed || to == JobCancelled {
		return from.IsActive()
	}
	switch from {
	case JobQueued:
		return to == JobGenerating
	case JobGenerating:
		return to == JobSynthesizing
	case JobSynthesizing:
		return to == JobUploading
	case JobUploading:
		return to == JobComplete
	default:
		return false
	}
}

// GenerationJob tracks one creation request through generate, synthesize and upload.
type GenerationJob struct {
	ID              string         `json:"id"`
	Request         PodcastRequest `json:"request"`
	State           JobState       `json:"state"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Script          *string        `json:"script,omitempty"`
	AudioRef        *string        `json:"audioRef,omitempty"`
	Duration        float64        `json:"duration,omitempty"`
	Error           *string        `json:"error,omitempty"`
	CancelRequested bool           `json:"cancelRequested,omitempty"`
	PodcastID       *string        `json:"podcastId,omitempty"`
}

// Clone returns a copy that shares no pointers with j.
func (j GenerationJob) Clone() GenerationJob {
	out := j
	out.Script = clonePtr(j.Script)
	out.AudioRef = clonePtr(j.AudioRef)
	out.Error = clonePtr(j.Error)
	out.PodcastID = clonePtr(j.PodcastID)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// StagedAudio is synthesized audio waiting to be uploaded.
type StagedAudio struct {
	JobID    string
	Data     []byte
	Duration float64
}

// JobEvent is emitted after every persisted job transition.
type JobEvent struct {
	JobID     string    `json:"jobId"`
	UserID    string    `json:"userId"`
	State     JobState  `json:"state"`
	Error     *string   `json:"error,omitempty"`
	PodcastID *string   `json:"podcastId,omitempty"`
	At        time.Time `json:"at"`
}
