// Package poller waits for a submitted generation to finish and stores its video.
package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/img2video/internal/metrics"
	"github.com/maauso/img2video/internal/stability"
	"github.com/maauso/img2video/internal/storage"
)

// Static errors for polling.
var (
	// ErrMaxAttempts is returned when the generation is still running after Policy.MaxAttempts polls.
	ErrMaxAttempts = errors.New("poller: max attempts exceeded")
	// ErrTimeout is returned when the generation is still running after Policy.Timeout.
	ErrTimeout = errors.New("poller: timed out waiting for generation")
	// ErrUnexpectedStatus is returned when a poll reports a status the poller cannot act on.
	ErrUnexpectedStatus = errors.New("poller: unexpected generation status")
)

// Fetcher fetches the state of a generation once.
type Fetcher interface {
	Poll(ctx context.Context, generationID string) (stability.PollResult, error)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy bounds the polling loop.
type Policy struct {
	// Interval is the fixed wait between polls that report the job still running.
	Interval time.Duration
	// MaxAttempts caps the number of poll requests. Zero means unbounded.
	MaxAttempts int
	// Timeout is the overall deadline for the loop. Zero means no deadline.
	Timeout time.Duration
}

// DefaultPolicy polls every 10 seconds with no attempt cap or deadline.
func DefaultPolicy() Policy {
	return Policy{Interval: 10 * time.Second}
}

// Result describes a completed generation.
type Result struct {
	GenerationID string
	OutputPath   string
	Attempts     int
	Size         int
	ContentType  string
	FinishReason string
	Seed         string
}

// Poller repeatedly polls a generation until it completes or fails.
type Poller struct {
	client    Fetcher
	store     storage.Storage
	logger    *slog.Logger
	policy    Policy
	sleep     Sleeper
	metrics   *metrics.Metrics
	onAttempt func(attempt int, status stability.Status)
}

// Option configures a Poller.
type Option func(*Poller)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(pl *Poller) {
		if p.Interval > 0 {
			pl.policy.Interval = p.Interval
		}
		if p.MaxAttempts >= 0 {
			pl.policy.MaxAttempts = p.MaxAttempts
		}
		if p.Timeout >= 0 {
			pl.policy.Timeout = p.Timeout
		}
	}
}

// WithSleeper replaces the wait between polls, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(pl *Poller) {
		if s != nil {
			pl.sleep = s
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(pl *Poller) {
		if m != nil {
			pl.metrics = m
		}
	}
}

// WithOnAttempt registers a hook called after every successful poll request.
func WithOnAttempt(fn func(attempt int, status stability.Status)) Option {
	return func(pl *Poller) {
		pl.onAttempt = fn
	}
}

// New creates a Poller that reads results through client and writes videos to store.
func New(client Fetcher, store storage.Storage, logger *slog.Logger, opts ...Option) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Poller{
		client:  client,
		store:   store,
		logger:  logger,
		policy:  DefaultPolicy(),
		sleep:   SleepContext,
		metrics: metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the effective retry policy.
func (p *Poller) Policy() Policy {
	return p.policy
}

// Wait polls generationID until it completes, then writes the response body
// verbatim to dst. A malformed ID is rejected before any request is made.
// Nothing is written to dst unless the generation completes.
func (p *Poller) Wait(ctx context.Context, generationID, dst string) (Result, error) {
	result := Result{GenerationID: generationID}

	if !stability.ValidGenerationID(generationID) {
		p.logger.Error("invalid generation ID received",
			slog.Int("length", len(generationID)),
		)
		return result, fmt.Errorf("%w: want %d characters, got %d",
			stability.ErrInvalidGenerationID, stability.GenerationIDLength, len(generationID))
	}

	if p.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.policy.Timeout, ErrTimeout)
		defer cancel()
	}

	logger := p.logger.With(slog.String("generation_id", generationID))
	logger.Info("fetching video")

	for attempt := 1; ; attempt++ {
		result.Attempts = attempt

		res, err := p.client.Poll(ctx, generationID)
		if err != nil {
			if ctx.Err() != nil {
				return result, p.contextErr(ctx)
			}
			p.metrics.RecordPoll(ctx, string(stability.StatusFailed))
			logger.Error("failed to fetch video",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			return result, fmt.Errorf("poll generation: %w", err)
		}

		p.metrics.RecordPoll(ctx, string(res.Status))
		if p.onAttempt != nil {
			p.onAttempt(attempt, res.Status)
		}

		switch res.Status {
		case stability.StatusComplete:
			if err := p.store.SaveFile(ctx, dst, bytes.NewReader(res.Video)); err != nil {
				logger.Error("failed to save video",
					slog.String("path", dst),
					slog.String("error", err.Error()),
				)
				return result, fmt.Errorf("save video: %w", err)
			}
			result.OutputPath = dst
			result.Size = len(res.Video)
			result.ContentType = res.ContentType
			result.FinishReason = res.FinishReason
			result.Seed = res.Seed

			logger.Info("generation complete",
				slog.Int("attempts", attempt),
				slog.String("path", dst),
				slog.Int("bytes", len(res.Video)),
				slog.String("finish_reason", res.FinishReason),
			)
			return result, nil

		case stability.StatusInProgress:
			if p.policy.MaxAttempts > 0 && attempt >= p.policy.MaxAttempts {
				logger.Error("generation still in progress after max attempts",
					slog.Int("attempts", attempt),
				)
				return result, fmt.Errorf("%w: %d", ErrMaxAttempts, attempt)
			}

			logger.Info("generation in progress, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("interval", p.policy.Interval),
			)
			if err := p.sleep(ctx, p.policy.Interval); err != nil {
				if ctx.Err() != nil {
					return result, p.contextErr(ctx)
				}
				return result, fmt.Errorf("poller: sleep: %w", err)
			}

		default:
			return result, fmt.Errorf("%w: %s", ErrUnexpectedStatus, res.Status)
		}
	}
}

// contextErr reports why ctx ended, distinguishing the policy deadline from
// cancellation by the caller.
func (p *Poller) contextErr(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrTimeout) {
		p.logger.Error("timed out waiting for generation", slog.Duration("timeout", p.policy.Timeout))
		return fmt.Errorf("%w after %s", ErrTimeout, p.policy.Timeout)
	}
	p.logger.Warn("polling cancelled", slog.String("error", ctx.Err().Error()))
	return fmt.Errorf("poller: cancelled: %w", ctx.Err())
}
