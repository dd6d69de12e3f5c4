// Package generation turns a user's travel preferences into an itinerary.
//
// A Pipeline validates the request, opens a streaming completion and relays
// each fragment to the caller as it arrives. When the upstream stream ends
// the accumulated text is stored as a Trip. A run moves through
//
//	Received -> Streaming -> Completed | Failed | Cancelled
//
// A cancelled run stores nothing; a partial itinerary is never persisted.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/trip"
)

const DefaultTimeout = 3 * time.Minute

// Outcomes reported to Metrics.GenerationFinished.
const (
	OutcomeCompleted     = "completed"
	OutcomePersistFailed = "persist_failed"
	OutcomeUpstreamError = "upstream_error"
	OutcomeTimeout       = "timeout"
	OutcomeCancelled     = "cancelled"
)

// TripStore receives completed itineraries.
type TripStore interface {
	Append(ctx context.Context, t *trip.Trip) error
}

type Metrics interface {
	GenerationStarted()
	GenerationFinished(outcome string, d time.Duration)
	FragmentRelayed()
}

type noopMetrics struct{}

func (noopMetrics) GenerationStarted()                       {}
func (noopMetrics) GenerationFinished(string, time.Duration) {}
func (noopMetrics) FragmentRelayed()                         {}

type Config struct {
	// Timeout bounds a whole run. Defaults to DefaultTimeout.
	Timeout time.Duration
	Now     func() time.Time
	Metrics Metrics
	Logger  *logging.Logger
}

type Pipeline struct {
	completer Completer
	trips     TripStore
	timeout   time.Duration
	now       func() time.Time
	metrics   Metrics
	logger    *logging.Logger
}

func NewPipeline(completer Completer, trips TripStore, cfg Config) *Pipeline {
	p := &Pipeline{
		completer: completer,
		trips:     trips,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = logging.Discard()
	}
	return p
}

// Result is the outcome of a run that reached the end of the upstream
// stream. Trip is nil when storing it failed; PersistErr says why.
type Result struct {
	Trip       *trip.Trip
	PersistErr error
}

// Run is one generation in progress.
type Run struct {
	fragments chan string
	done      chan struct{}
	cancel    context.CancelFunc

	result Result
	err    error
}

// Fragments delivers each non-empty fragment as soon as it is received.
// The channel is unbuffered and closed when the upstream stream stops.
func (r *Run) Fragments() <-chan string {
	return r.fragments
}

// Cancel stops the run. Nothing is stored for a cancelled run.
func (r *Run) Cancel() {
	r.cancel()
}

// Wait blocks until the run has finished, including storing the trip.
// A cancelled run returns context.Canceled; an upstream failure or timeout
// returns an upstream error. A failed store is reported in the Result.
func (r *Run) Wait() (Result, error) {
	<-r.done
	return r.result, r.err
}

// Start validates params and opens the upstream stream. Validation and
// open failures are returned directly and nothing is started.
func (p *Pipeline) Start(ctx context.Context, userID uuid.UUID, params Params) (*Run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	callerCtx, cancel := context.WithCancel(ctx)
	runCtx, cancelTimeout := context.WithTimeout(callerCtx, p.timeout)

	stream, err := p.completer.StreamChat(runCtx, Messages(params))
	if err != nil {
		cancelTimeout()
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Wrap(apperr.KindUpstream, "", fmt.Errorf("open completion stream: %w", err))
	}

	r := &Run{
		fragments: make(chan string),
		done:      make(chan struct{}),
		cancel:    cancel,
	}

	p.metrics.GenerationStarted()
	go func() {
		defer close(r.done)
		defer cancel()
		defer cancelTimeout()
		p.produce(callerCtx, runCtx, r, stream, userID, params)
	}()

	return r, nil
}

func (p *Pipeline) produce(callerCtx, runCtx context.Context, r *Run, stream Stream, userID uuid.UUID, params Params) {
	started := p.now()
	logger := p.logger.WithFields(map[string]any{
		"user_id":     userID,
		"destination": params.Destination,
	})

	var text strings.Builder
	relay := func() {
		defer close(r.fragments)
		defer stream.Close()
		for stream.Next() {
			fragment := stream.Fragment()
			if fragment == "" {
				continue
			}
			if runCtx.Err() != nil {
				return
			}
			text.WriteString(fragment)
			select {
			case r.fragments <- fragment:
				p.metrics.FragmentRelayed()
			case <-runCtx.Done():
				return
			}
		}
	}
	relay()

	finish := func(outcome string) {
		p.metrics.GenerationFinished(outcome, p.now().Sub(started))
	}

	switch {
	case callerCtx.Err() != nil && !errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.Info("generation cancelled")
		r.err = context.Canceled
		finish(OutcomeCancelled)
		return
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		logger.Warn("generation timed out", "timeout", p.timeout.String())
		r.err = apperr.Wrap(apperr.KindUpstream, "", fmt.Errorf("generation timed out after %s", p.timeout))
		finish(OutcomeTimeout)
		return
	case stream.Err() != nil:
		logger.Error("completion stream failed", "error", stream.Err().Error())
		r.err = apperr.Wrap(apperr.KindUpstream, "", fmt.Errorf("completion stream: %w", stream.Err()))
		finish(OutcomeUpstreamError)
		return
	}

	t := &trip.Trip{
		UserID:      userID,
		GeneratedAt: p.now().UTC(),
		Destination: params.Destination,
		Month:       params.Month,
		Duration:    params.Duration,
		Interests:   params.Interests,
		Text:        text.String(),
	}
	if err := p.trips.Append(callerCtx, t); err != nil {
		logger.Error("failed to store trip", "error", err.Error())
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Wrap(apperr.KindStore, "", err)
		}
		r.result = Result{PersistErr: err}
		finish(OutcomePersistFailed)
		return
	}

	logger.Info("trip generated", "trip_id", t.ID, "chars", text.Len())
	r.result = Result{Trip: t}
	finish(OutcomeCompleted)
}
