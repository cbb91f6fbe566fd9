// Package jobclient owns the lifecycle of audit jobs: submission, polling
// until a terminal status, and the client-side failure modes (transport,
// not found, timeout, abandonment) that are distinct from an engine-reported
// FAILED job.
package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/logging"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/metrics"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

const (
	// MinPollInterval is the floor applied to Options.PollInterval.
	MinPollInterval = time.Second

	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 120
)

// ErrAbandoned is wrapped by the error returned when the caller's context
// ends while a job is being tracked. It is not an audit failure.
var ErrAbandoned = errors.New("stopped tracking audit")

// Engine is the subset of the audit engine API the client needs.
// *auditengine.Client satisfies it.
type Engine interface {
	Start(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error)
	Status(ctx context.Context, auditID string) (*models.AuditJob, error)
}

// Pacer blocks until the next status query may be sent.
// *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PacerFunc adapts a function to Pacer.
type PacerFunc func(ctx context.Context) error

func (f PacerFunc) Wait(ctx context.Context) error { return f(ctx) }

// Options configures a Client. The zero value is usable.
type Options struct {
	// PollInterval is the delay between status queries. Values below
	// MinPollInterval are raised to it; zero selects DefaultPollInterval.
	PollInterval time.Duration

	// MaxAttempts bounds the number of status queries per tracking attempt.
	// Zero selects DefaultMaxAttempts.
	MaxAttempts int

	// OnTransition, when set, is called synchronously for every state change.
	OnTransition func(Transition)

	// NewPacer builds the pacer for one tracking attempt. nil uses a token
	// bucket limiter that admits one query per PollInterval.
	NewPacer func(interval time.Duration) Pacer

	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Client submits audits and tracks them to completion. It is safe for
// concurrent use; jobs are tracked independently.
type Client struct {
	engine Engine
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	terminal map[string][]byte
}

// New returns a Client for engine.
func New(engine Engine, opts Options) *Client {
	switch {
	case opts.PollInterval == 0:
		opts.PollInterval = DefaultPollInterval
	case opts.PollInterval < MinPollInterval:
		opts.PollInterval = MinPollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.NewPacer == nil {
		opts.NewPacer = newLimiterPacer
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		engine:   engine,
		opts:     opts,
		logger:   logger,
		terminal: make(map[string][]byte),
	}
}

// PollInterval returns the effective interval between status queries.
func (c *Client) PollInterval() time.Duration { return c.opts.PollInterval }

// MaxAttempts returns the effective status query ceiling.
func (c *Client) MaxAttempts() int { return c.opts.MaxAttempts }

// StartAudit submits req and, when the engine answers with a non-terminal
// status, polls until the job is terminal. An engine-reported FAILED job is
// returned as a job, not as an error.
func (c *Client) StartAudit(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error) {
	tr := c.track("")
	job, err := c.submit(ctx, tr, req)
	if err != nil || job.Terminal() {
		return job, err
	}
	return c.poll(ctx, tr, job)
}

// Submit sends req without waiting for the job to finish. The returned job
// may already be terminal.
func (c *Client) Submit(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error) {
	return c.submit(ctx, c.track(""), req)
}

// Await polls auditID until it is terminal. It is the recovery path after a
// timeout or an abandoned wait: the remote job is unaffected by either, so
// it can be picked up again by id.
func (c *Client) Await(ctx context.Context, auditID string) (*models.AuditJob, error) {
	if job, ok, err := c.cached(auditID); ok || err != nil {
		return job, err
	}
	tr := c.track(auditID)
	return c.poll(ctx, tr, &models.AuditJob{AuditID: auditID})
}

// GetStatus queries auditID once. Once a job has been seen terminal, every
// later call returns a decoded copy of the same bytes without contacting the
// engine.
func (c *Client) GetStatus(ctx context.Context, auditID string) (*models.AuditJob, error) {
	if job, ok, err := c.cached(auditID); ok || err != nil {
		return job, err
	}

	c.opts.Metrics.Poll()
	job, err := c.engine.Status(ctx, auditID)
	if err != nil {
		c.opts.Metrics.ClientError(string(auditerr.KindOf(err)))
		return nil, err
	}
	if job.Terminal() {
		return c.remember(job)
	}
	return job, nil
}

func (c *Client) submit(ctx context.Context, tr *tracker, req *models.AuditRequest) (*models.AuditJob, error) {
	if err := checkRequest(req); err != nil {
		return nil, err
	}

	tr.move(StateSubmitted, "", nil)
	c.logger.Info("submitting audit",
		zap.String("account_id", req.AccountID),
		zap.String("role_name", req.RoleName),
		zap.String("external_id", logging.MaskSecret(req.ExternalID)),
		zap.Int("checks", len(req.Checks)),
	)

	job, err := c.engine.Start(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, tr.abandon(ctx.Err())
		}
		outcome := "error"
		if auditerr.KindOf(err) == auditerr.KindSubmission {
			outcome = "rejected"
		}
		c.opts.Metrics.Submission(outcome)
		return nil, tr.fail(err)
	}
	c.opts.Metrics.Submission("accepted")

	tr.auditID = job.AuditID
	if job.AuditID == "" && !job.Terminal() {
		return nil, tr.fail(&auditerr.Error{
			Kind:    auditerr.KindTransport,
			Op:      "start audit",
			Message: fmt.Sprintf("engine returned status %s without an audit id", job.Status),
		})
	}

	c.logger.Info("audit accepted",
		zap.String("audit_id", job.AuditID),
		zap.String("status", string(job.Status)),
	)
	if job.Terminal() {
		return c.settle(tr, job)
	}
	return job, nil
}

func (c *Client) poll(ctx context.Context, tr *tracker, job *models.AuditJob) (*models.AuditJob, error) {
	tr.move(StatePolling, job.Status, nil)
	pacer := c.opts.NewPacer(c.opts.PollInterval)
	last := job.Status

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		if err := pacer.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, tr.abandon(ctx.Err())
			}
			// The limiter refuses to wait past the context deadline.
			return nil, tr.abandon(fmt.Errorf("%w: %v", context.DeadlineExceeded, err))
		}

		c.opts.Metrics.Poll()
		next, err := c.engine.Status(ctx, tr.auditID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, tr.abandon(ctx.Err())
			}
			return nil, tr.fail(err)
		}

		c.logger.Debug("polled audit status",
			zap.String("audit_id", tr.auditID),
			zap.Int("attempt", attempt),
			zap.String("status", string(next.Status)),
		)
		if next.Terminal() {
			return c.settle(tr, next)
		}
		last = next.Status
	}

	status := string(last)
	if status == "" {
		status = "unknown"
	}
	return nil, tr.fail(&auditerr.Error{
		Kind:    auditerr.KindTimeout,
		Op:      "await audit",
		AuditID: tr.auditID,
		Message: fmt.Sprintf("job still %s after %d status checks at %s intervals", status, c.opts.MaxAttempts, c.opts.PollInterval),
	})
}

// settle records a terminal job and moves tr to StateTerminal.
func (c *Client) settle(tr *tracker, job *models.AuditJob) (*models.AuditJob, error) {
	out, err := c.remember(job)
	if err != nil {
		return nil, tr.fail(err)
	}
	tr.move(StateTerminal, out.Status, nil)
	c.opts.Metrics.Terminal(string(out.Status), time.Since(tr.started).Seconds())
	c.logger.Info("audit finished",
		zap.String("audit_id", out.AuditID),
		zap.String("status", string(out.Status)),
		zap.Int("results", len(out.Results)),
	)
	return out, nil
}

// remember caches the encoded form of a terminal job and returns it decoded.
// The first terminal encoding seen for an id wins.
func (c *Client) remember(job *models.AuditJob) (*models.AuditJob, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode audit %s: %w", job.AuditID, err)
	}
	if job.AuditID != "" {
		c.mu.Lock()
		if prev, ok := c.terminal[job.AuditID]; ok {
			data = prev
		} else {
			c.terminal[job.AuditID] = data
		}
		c.mu.Unlock()
	}
	return decode(data)
}

func (c *Client) cached(auditID string) (*models.AuditJob, bool, error) {
	c.mu.Lock()
	data, ok := c.terminal[auditID]
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	job, err := decode(data)
	return job, true, err
}

func decode(data []byte) (*models.AuditJob, error) {
	var job models.AuditJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode cached audit: %w", err)
	}
	return &job, nil
}

// checkRequest refuses to send a request missing the fields the engine
// needs to assume the trust role.
func checkRequest(req *models.AuditRequest) error {
	switch {
	case req == nil || req.AccountID == "":
		return auditerr.Validation(auditerr.ReasonMissingAccountID, "account id is required")
	case req.ExternalID == "":
		return auditerr.Validation(auditerr.ReasonMissingExternalID, "external id is required")
	}
	return nil
}

func newLimiterPacer(interval time.Duration) Pacer {
	l := rate.NewLimiter(rate.Every(interval), 1)
	// Drain the initial token so the first query waits a full interval
	// after submission.
	l.Allow()
	return l
}
