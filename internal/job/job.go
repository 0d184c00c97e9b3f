// Package job provides the Generation aggregate that tracks one
// image-to-video run, and the Pipeline that drives it from resize to
// downloaded video.
package job

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/maauso/img2video/internal/job/id"
)

// Status represents the current state of a Generation.
type Status string

const (
	// StatusPending indicates the image has not been submitted yet.
	StatusPending Status = "PENDING"
	// StatusInProgress indicates the remote service accepted the image and is rendering.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the video was downloaded.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates a stage failed.
	StatusFailed Status = "FAILED"
	// StatusCancelled indicates the run was cancelled by the caller.
	StatusCancelled Status = "CANCELLED"
	// StatusTimedOut indicates polling gave up before the video was ready.
	StatusTimedOut Status = "TIMED_OUT"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusFailed, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut},
	StatusCompleted:  {},
	StatusFailed:     {},
	StatusCancelled:  {},
	StatusTimedOut:   {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

// Generation records the lifecycle of one run. It is held in memory only.
type Generation struct {
	mu sync.RWMutex

	// ID is the local run identifier used for log correlation.
	ID string
	// GenerationID is the 64-character ID issued by the remote service.
	GenerationID string
	// Status is the current state.
	Status Status
	// Attempts is the number of result polls made.
	Attempts int
	// Error contains the failure message, if any.
	Error string
	// SourceImagePath is the image given to the run.
	SourceImagePath string
	// ResizedImagePath is the image that was uploaded.
	ResizedImagePath string
	// OutputVideoPath is where the video was written.
	OutputVideoPath string
	// VideoURL is the S3 URL when the video was uploaded.
	VideoURL string
	// CreatedAt is when the run started.
	CreatedAt time.Time
	// UpdatedAt is when the run was last updated.
	UpdatedAt time.Time
	// SubmittedAt is when the remote service accepted the image.
	SubmittedAt time.Time
	// CompletedAt is when the run reached a terminal state.
	CompletedAt time.Time
}

// New creates a Generation with a fresh run ID in PENDING status.
func New() *Generation {
	return NewWithID(id.Generate())
}

// NewWithID creates a Generation with the specified run ID in PENDING status.
func NewWithID(runID string) *Generation {
	now := time.Now()
	return &Generation{
		ID:        runID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (g *Generation) TransitionTo(status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transitionLocked(status)
}

func (g *Generation) transitionLocked(status Status) error {
	if !canTransition(g.Status, status) {
		return ErrInvalidTransition
	}

	g.Status = status
	g.UpdatedAt = time.Now()

	switch status {
	case StatusInProgress:
		g.SubmittedAt = g.UpdatedAt
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		g.CompletedAt = g.UpdatedAt
	}

	return nil
}

// Submitted records the remote generation ID and moves to IN_PROGRESS.
func (g *Generation) Submitted(generationID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.transitionLocked(StatusInProgress); err != nil {
		return err
	}
	g.GenerationID = generationID
	return nil
}

// Complete transitions to COMPLETED.
func (g *Generation) Complete() error {
	return g.TransitionTo(StatusCompleted)
}

// Fail transitions to FAILED with an error message.
func (g *Generation) Fail(errMsg string) error {
	return g.endWith(StatusFailed, errMsg)
}

// Cancel transitions to CANCELLED.
func (g *Generation) Cancel(errMsg string) error {
	return g.endWith(StatusCancelled, errMsg)
}

// Timeout transitions to TIMED_OUT.
func (g *Generation) Timeout(errMsg string) error {
	return g.endWith(StatusTimedOut, errMsg)
}

func (g *Generation) endWith(status Status, errMsg string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.transitionLocked(status); err != nil {
		return err
	}
	g.Error = errMsg
	return nil
}

// GetStatus returns the current status (thread-safe).
func (g *Generation) GetStatus() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status
}

// SetAttempts records the number of polls made so far.
func (g *Generation) SetAttempts(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Attempts = n
	g.UpdatedAt = time.Now()
}

// SetOutput sets the output video path and optional S3 URL.
func (g *Generation) SetOutput(videoPath, videoURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.OutputVideoPath = videoPath
	g.VideoURL = videoURL
	g.UpdatedAt = time.Now()
}

// IsTerminal returns true if the generation is in a terminal state.
func (g *Generation) IsTerminal() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.Status == StatusCompleted ||
		g.Status == StatusFailed ||
		g.Status == StatusCancelled ||
		g.Status == StatusTimedOut
}

// Duration returns the elapsed time from creation to completion, or to now
// while the run is still active.
func (g *Generation) Duration() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.CompletedAt.IsZero() {
		return time.Since(g.CreatedAt)
	}
	return g.CompletedAt.Sub(g.CreatedAt)
}

// Clone creates a copy of the generation for safe reads.
func (g *Generation) Clone() *Generation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return &Generation{
		ID:               g.ID,
		GenerationID:     g.GenerationID,
		Status:           g.Status,
		Attempts:         g.Attempts,
		Error:            g.Error,
		SourceImagePath:  g.SourceImagePath,
		ResizedImagePath: g.ResizedImagePath,
		OutputVideoPath:  g.OutputVideoPath,
		VideoURL:         g.VideoURL,
		CreatedAt:        g.CreatedAt,
		UpdatedAt:        g.UpdatedAt,
		SubmittedAt:      g.SubmittedAt,
		CompletedAt:      g.CompletedAt,
	}
}
