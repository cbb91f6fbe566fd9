package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// JobStatus is the lifecycle status of an audit job as reported by the engine.
type JobStatus string

const (
	JobPending   JobStatus = "PENDING"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether s belongs to the closed set of terminal statuses.
// Any status outside that set, including ones this client does not know, is
// treated as still in progress.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// UnmarshalJSON normalises the engine's status string to upper case. The
// engine emits lower-case values ("completed"); display and comparison always
// use the canonical form.
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("job status: %w", err)
	}
	*s = JobStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// CheckStatus is the outcome of a single executed check.
type CheckStatus string

const (
	CheckPass  CheckStatus = "PASS"
	CheckFail  CheckStatus = "FAIL"
	CheckWarn  CheckStatus = "WARN"
	CheckError CheckStatus = "ERROR"
)

// Known reports whether s is one of PASS, FAIL, WARN or ERROR.
func (s CheckStatus) Known() bool {
	switch s {
	case CheckPass, CheckFail, CheckWarn, CheckError:
		return true
	}
	return false
}

// Actionable reports whether a result with this status is a finding that
// remediation content applies to.
func (s CheckStatus) Actionable() bool {
	return s == CheckFail || s == CheckWarn
}

func (s *CheckStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("check status: %w", err)
	}
	*s = CheckStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return nil
}

// AuditRequest is one scan submission. It is built and validated by the
// request package and never mutated afterwards.
type AuditRequest struct {
	AccountID  string   `json:"account_id"`
	RoleName   string   `json:"role_name,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
	Checks     []string `json:"checks,omitempty"`
}

// AllChecks reports whether the request leaves check selection to the engine.
func (r AuditRequest) AllChecks() bool {
	return len(r.Checks) == 0
}

// CheckResult is one evaluated (check, resource) pair inside a job.
// Details is check-specific and is passed through without interpretation.
type CheckResult struct {
	CheckID    string         `json:"check_id"`
	Status     CheckStatus    `json:"status"`
	ResourceID string         `json:"resource_id"`
	Message    string         `json:"message"`
	Details    Payload        `json:"details,omitempty"`
}

// Payload is an engine-defined object carried through without
// interpretation. Numbers decode as json.Number so they re-encode exactly.
type Payload map[string]any

func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*p = m
	return nil
}

// AuditJob is the engine's view of one audit run. It is read-only to the
// client and immutable once its status is terminal.
type AuditJob struct {
	AuditID      string         `json:"audit_id"`
	AccountID    string         `json:"account_id"`
	Status       JobStatus      `json:"status"`
	StartedAt    Timestamp      `json:"started_at"`
	CompletedAt  *Timestamp     `json:"completed_at,omitempty"`
	Results      []CheckResult  `json:"results,omitempty"`
	Summary      *Summary       `json:"summary,omitempty"`
	Error        string         `json:"error,omitempty"`
	GuidelineIDs GuidelineIDs   `json:"guideline_ids,omitempty"`
	Raw          Payload        `json:"raw,omitempty"`
}

// Terminal reports whether the job has reached COMPLETED or FAILED.
func (j *AuditJob) Terminal() bool {
	return j != nil && j.Status.Terminal()
}

// GuidelineIDs maps a check ID to the guideline record that documents its
// remediation. The engine emits numeric IDs and occasionally null or 0;
// those entries are dropped on decode so that presence always means
// "resolvable".
type GuidelineIDs map[string]string

func (g *GuidelineIDs) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("guideline_ids: %w", err)
	}
	out := make(GuidelineIDs, len(raw))
	for checkID, v := range raw {
		id, ok, err := decodeGuidelineID(v)
		if err != nil {
			return fmt.Errorf("guideline_ids.%s: %w", checkID, err)
		}
		if ok {
			out[checkID] = id
		}
	}
	*g = out
	return nil
}

// Lookup returns the guideline ID mapped to checkID, if any.
func (g GuidelineIDs) Lookup(checkID string) (string, bool) {
	id, ok := g[checkID]
	return id, ok && id != ""
}

func decodeGuidelineID(v json.RawMessage) (string, bool, error) {
	s := strings.TrimSpace(string(v))
	if s == "" || s == "null" {
		return "", false, nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(v, &str); err != nil {
			return "", false, err
		}
		str = strings.TrimSpace(str)
		return str, str != "", nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", false, fmt.Errorf("unsupported value %s", s)
	}
	if i, err := n.Int64(); err == nil {
		if i == 0 {
			return "", false, nil
		}
		return strconv.FormatInt(i, 10), true, nil
	}
	if f, err := n.Float64(); err == nil && f == 0 {
		return "", false, nil
	}
	return n.String(), true, nil
}
