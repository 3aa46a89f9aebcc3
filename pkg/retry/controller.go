package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/models"
)

// Strategy is how an attempt obtains the artifact it tries to publish
type Strategy string

const (
	// StrategyInitial is the first attempt: fresh candidate, fresh download
	StrategyInitial Strategy = "initial"
	// StrategyResize shrinks the artifact already in memory for the same candidate
	StrategyResize Strategy = "resize"
	// StrategyReplace drops the current candidate and asks the supplier for another
	StrategyReplace Strategy = "replace"
)

// State is a step of a single attempt
type State string

const (
	StateAcquiring    State = "acquiring"
	StateTransforming State = "transforming"
	StatePublishing   State = "publishing"
	StateSucceeded    State = "succeeded"
	StateGivenUp      State = "given_up"
)

// AttemptState records how one attempt went. A new value is built for every
// attempt; the controller never changes one after handing it to OnAttempt.
type AttemptState struct {
	Attempt   int
	Strategy  Strategy
	Candidate models.Candidate
	Artifact  *models.Artifact
	// Scale is the cumulative shrink applied to the current artifact (1 = untouched)
	Scale float64
	// State is where the attempt ended: StateSucceeded, or the step that failed
	State State
	Err   error
}

// CandidateSupplier hands out candidates that have not been tried yet.
// It returns a NoCandidatesError when nothing is left.
type CandidateSupplier interface {
	Next(ctx context.Context) (models.Candidate, error)
}

// SupplierFunc adapts a function to CandidateSupplier
type SupplierFunc func(ctx context.Context) (models.Candidate, error)

func (f SupplierFunc) Next(ctx context.Context) (models.Candidate, error) { return f(ctx) }

// AcquireFunc materializes a candidate into bytes
type AcquireFunc func(ctx context.Context, c models.Candidate) (*models.Artifact, error)

// TransformFunc shrinks an artifact by scale (0 < scale < 1). The returned
// artifact must be strictly smaller than the input.
type TransformFunc func(ctx context.Context, a *models.Artifact, scale float64) (*models.Artifact, error)

// PublishFunc performs the externally visible post
type PublishFunc func(ctx context.Context, a *models.Artifact, c models.Candidate) (*models.PublishedRecord, error)

// RetryAll retries every failure. This is how the bots have always behaved,
// including on credentials that can never work.
func RetryAll(error) bool { return true }

// StopOnPermanent gives up as soon as a remote service rejects the request
// in a way a retry cannot fix (auth, not found, unparseable response).
func StopOnPermanent(err error) bool { return !errs.IsPermanent(err) }

// ControllerConfig configures a Controller
type ControllerConfig struct {
	MaxAttempts  int
	MaxSizeBytes int64
	// ResizeFactor is applied once per shrink; it compounds across resize attempts
	ResizeFactor float64
	// Backoff is slept between attempts when set
	Backoff BackoffStrategy
	RetryIf func(error) bool
	// OnAttempt observes every finished attempt, successful or not
	OnAttempt func(AttemptState)
	Logger    logger.Logger
}

// DefaultControllerConfig returns the budget the bots run with
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		MaxAttempts:  6,
		MaxSizeBytes: 3_000_000,
		ResizeFactor: 0.9,
		RetryIf:      RetryAll,
	}
}

// Controller drives acquire, transform and publish across a bounded number of
// attempts. Failed attempts alternate between shrinking the current artifact
// (even attempts) and replacing the candidate (odd attempts).
type Controller struct {
	cfg ControllerConfig
	log logger.Logger
}

// NewController fills unset fields of cfg from DefaultControllerConfig
func NewController(cfg ControllerConfig) *Controller {
	def := DefaultControllerConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = def.MaxSizeBytes
	}
	if cfg.ResizeFactor <= 0 || cfg.ResizeFactor >= 1 {
		cfg.ResizeFactor = def.ResizeFactor
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = def.RetryIf
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Controller{cfg: cfg, log: log.WithField("component", "retry_controller")}
}

// Run publishes one artifact or gives up. A NoCandidatesError from the
// supplier is returned as is on any attempt; exhausting the budget returns
// a GiveUpError wrapping the last failure. publish succeeds at most once.
func (c *Controller) Run(ctx context.Context, supplier CandidateSupplier, acquire AcquireFunc, transform TransformFunc, publish PublishFunc) (*models.PublishedRecord, error) {
	var (
		candidate models.Candidate
		artifact  *models.Artifact
		scale     = 1.0
		lastErr   error
	)

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.pause(ctx, attempt-1); err != nil {
				return nil, fmt.Errorf("retry cancelled after attempt %d: %w", attempt-1, err)
			}
		}

		strategy := strategyFor(attempt)
		if strategy == StrategyResize && artifact == nil {
			strategy = StrategyReplace
		}

		state := AttemptState{Attempt: attempt, Strategy: strategy}

		switch strategy {
		case StrategyInitial, StrategyReplace:
			next, err := supplier.Next(ctx)
			if err != nil {
				if errs.IsFatal(err) {
					c.log.WithError(err).InfoWithFields("no candidates left", map[string]interface{}{
						"attempt": attempt,
					})
					return nil, err
				}
				lastErr = &errs.AcquisitionError{Cause: err}
				artifact = nil
				state.State, state.Err = StateAcquiring, lastErr
				break
			}
			candidate, artifact, scale = next, nil, 1.0
			state.Candidate = candidate

			c.log.DebugWithFields("acquiring candidate", map[string]interface{}{
				"attempt":      attempt,
				"strategy":     string(strategy),
				"candidate_id": candidate.ID,
			})
			a, err := acquire(ctx, candidate)
			if err != nil {
				lastErr = asAcquisition(candidate.ID, err)
				state.State, state.Err = StateAcquiring, lastErr
				break
			}
			artifact = a

			if artifact.Size() > c.cfg.MaxSizeBytes {
				if err := c.shrink(ctx, &artifact, &scale, transform); err != nil {
					lastErr = err
					state.State, state.Err = StateTransforming, err
				}
			}

		case StrategyResize:
			state.Candidate = candidate
			if err := c.shrink(ctx, &artifact, &scale, transform); err != nil {
				lastErr = err
				state.State, state.Err = StateTransforming, err
			}
		}

		if state.Err == nil {
			record, err := c.publishOnce(ctx, artifact, candidate, publish)
			if err == nil {
				record.Attempts = attempt
				state.Artifact, state.Scale, state.State = artifact, scale, StateSucceeded
				c.observe(state)
				c.log.InfoWithFields("published", map[string]interface{}{
					"attempt":      attempt,
					"strategy":     string(strategy),
					"candidate_id": candidate.ID,
					"bytes":        artifact.Size(),
					"scale":        scale,
				})
				return record, nil
			}
			lastErr = err
			state.State, state.Err = StatePublishing, err
		}

		state.Artifact, state.Scale = artifact, scale
		c.observe(state)
		logger.LogAttempt(c.log, attempt, c.cfg.MaxAttempts, string(strategy), state.Candidate.ID, lastErr)

		if !c.cfg.RetryIf(lastErr) {
			c.log.WithError(lastErr).WarnWithFields("error is not retryable, giving up", map[string]interface{}{
				"attempt": attempt,
			})
			return nil, &errs.GiveUpError{Attempts: attempt, Last: lastErr}
		}
		if attempt < c.cfg.MaxAttempts && errs.IsPermanent(lastErr) {
			c.log.WithError(lastErr).Warn("retrying an error that a retry cannot fix")
		}
	}

	c.log.WithError(lastErr).ErrorWithFields("giving up", map[string]interface{}{
		"attempts": c.cfg.MaxAttempts,
		"state":    string(StateGivenUp),
	})
	return nil, &errs.GiveUpError{Attempts: c.cfg.MaxAttempts, Last: lastErr}
}

// shrink applies one ResizeFactor step to *artifact and re-checks the size limit
func (c *Controller) shrink(ctx context.Context, artifact **models.Artifact, scale *float64, transform TransformFunc) error {
	current := *artifact
	before := current.Size()

	shrunk, err := transform(ctx, current, c.cfg.ResizeFactor)
	if err != nil {
		var te *errs.TransformError
		if errors.As(err, &te) {
			return err
		}
		return &errs.TransformError{CandidateID: current.CandidateID, Cause: err}
	}
	if shrunk == nil {
		return &errs.TransformError{CandidateID: current.CandidateID, Cause: errors.New("transform returned no artifact")}
	}

	*artifact = shrunk
	*scale *= c.cfg.ResizeFactor

	c.log.DebugWithFields("artifact resized", map[string]interface{}{
		"candidate_id": shrunk.CandidateID,
		"before":       before,
		"after":        shrunk.Size(),
		"scale":        *scale,
	})

	if shrunk.Size() > c.cfg.MaxSizeBytes {
		return &errs.OversizedError{CandidateID: shrunk.CandidateID, Size: shrunk.Size(), Limit: c.cfg.MaxSizeBytes}
	}
	return nil
}

func (c *Controller) publishOnce(ctx context.Context, artifact *models.Artifact, candidate models.Candidate, publish PublishFunc) (*models.PublishedRecord, error) {
	if artifact.Size() > c.cfg.MaxSizeBytes {
		return nil, &errs.OversizedError{CandidateID: candidate.ID, Size: artifact.Size(), Limit: c.cfg.MaxSizeBytes}
	}

	record, err := publish(ctx, artifact, candidate)
	if err != nil {
		var pe *errs.PublishError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &errs.PublishError{CandidateID: candidate.ID, Cause: err}
	}
	if record == nil {
		record = &models.PublishedRecord{CreatedAt: time.Now()}
	}
	if record.CandidateID == "" {
		record.CandidateID = candidate.ID
	}
	return record, nil
}

func (c *Controller) pause(ctx context.Context, attempt int) error {
	if c.cfg.Backoff == nil {
		return ctx.Err()
	}
	return Wait(ctx, c.cfg.Backoff.NextDelay(attempt))
}

func (c *Controller) observe(state AttemptState) {
	if c.cfg.OnAttempt != nil {
		c.cfg.OnAttempt(state)
	}
}

func strategyFor(attempt int) Strategy {
	switch {
	case attempt == 1:
		return StrategyInitial
	case attempt%2 == 0:
		return StrategyResize
	default:
		return StrategyReplace
	}
}

func asAcquisition(candidateID string, err error) error {
	var ae *errs.AcquisitionError
	if errors.As(err, &ae) {
		return err
	}
	return &errs.AcquisitionError{CandidateID: candidateID, Cause: err}
}
