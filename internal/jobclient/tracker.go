package jobclient

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// tracker is the state machine for one tracking attempt. It is owned by a
// single goroutine.
type tracker struct {
	c       *Client
	auditID string
	state   State
	started time.Time
}

func (c *Client) track(auditID string) *tracker {
	return &tracker{c: c, auditID: auditID, state: StateIdle, started: time.Now()}
}

// move transitions to `to` unless the current state is absorbing or equal.
func (t *tracker) move(to State, status models.JobStatus, err error) {
	if t.state.Absorbing() || t.state == to {
		return
	}
	tr := Transition{
		AuditID: t.auditID,
		From:    t.state,
		To:      to,
		Status:  status,
		Err:     err,
		At:      time.Now(),
	}
	t.state = to
	if fn := t.c.opts.OnTransition; fn != nil {
		fn(tr)
	}
}

func (t *tracker) fail(err error) error {
	kind := auditerr.KindOf(err)
	t.c.opts.Metrics.ClientError(string(kind))
	t.c.logger.Warn("audit tracking failed",
		zap.String("audit_id", t.auditID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	t.move(StateErrored, "", err)
	return err
}

func (t *tracker) abandon(cause error) error {
	subject := "audit submission"
	if t.auditID != "" {
		subject = "audit " + t.auditID
	}
	err := fmt.Errorf("%s: %w: %w", subject, ErrAbandoned, cause)
	t.c.logger.Info("stopped tracking audit; the engine may still complete it",
		zap.String("audit_id", t.auditID),
		zap.Error(cause),
	)
	t.move(StateAbandoned, "", err)
	return err
}
