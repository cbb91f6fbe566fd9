package jobclient

import (
	"time"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// State is the client-side tracking state of one audit job.
type State string

const (
	StateIdle      State = "idle"
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateTerminal  State = "terminal"
	StateErrored   State = "errored"

	// StateAbandoned means the caller stopped waiting. The engine is not
	// told and the job may still complete remotely.
	StateAbandoned State = "abandoned"
)

// Absorbing reports whether no transition may leave s.
func (s State) Absorbing() bool {
	return s == StateTerminal || s == StateErrored || s == StateAbandoned
}

// Transition is one observed state change.
type Transition struct {
	AuditID string
	From    State
	To      State

	// Status is the engine status that caused the transition, if any.
	Status models.JobStatus

	// Err is set when To is StateErrored or StateAbandoned.
	Err error

	At time.Time
}
