// Package auditerr defines the error taxonomy shared by the audit request
// builder, the engine transport and the job client. Every failure that
// leaves those packages is an *Error so callers can branch on Kind without
// inspecting messages or HTTP payload shapes.
package auditerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an audit workflow failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuthRequired Kind = "auth_required"
	KindSubmission   Kind = "submission"
	KindTransport    Kind = "transport"
	KindNotFound     Kind = "not_found"
	KindTimeout      Kind = "timeout"
)

// Reason narrows a validation failure to the offending field.
type Reason string

const (
	ReasonMissingAccountID   Reason = "MissingAccountId"
	ReasonMalformedAccountID Reason = "MalformedAccountId"
	ReasonMissingExternalID  Reason = "MissingExternalId"
)

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrAuthRequired = &Error{Kind: KindAuthRequired}
	ErrSubmission   = &Error{Kind: KindSubmission}
	ErrTransport    = &Error{Kind: KindTransport}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrTimeout      = &Error{Kind: KindTimeout}
)

// Error is a classified audit workflow failure.
type Error struct {
	Kind Kind

	// Op names the operation that failed, e.g. "start audit".
	Op string

	// Reason is set for KindValidation only.
	Reason Reason

	// AuditID is set when the failure concerns a known job.
	AuditID string

	// StatusCode is the HTTP status returned by the remote side, 0 when no
	// response was received.
	StatusCode int

	// Message is the remote side's message, verbatim, or a local description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Reason != "" {
		fmt.Fprintf(&b, " (%s)", e.Reason)
	}
	if e.AuditID != "" {
		fmt.Fprintf(&b, " [audit %s]", e.AuditID)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind. A target with a Reason also
// requires the Reason to match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Validation returns a KindValidation error for reason.
func Validation(reason Reason, msg string) *Error {
	return &Error{Kind: KindValidation, Op: "build audit request", Reason: reason, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when err
// is nil or unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether retrying the same operation may succeed.
// Transport failures and client-side timeouts are retryable; engine-reported
// submission failures, auth failures and validation failures are not.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindTimeout:
		return true
	}
	return false
}

// Display renders err as a single line suitable for showing to a user,
// keeping the kind and the original message.
func Display(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	label := displayLabels[e.Kind]
	if e.Reason != "" {
		label += " (" + string(e.Reason) + ")"
	}
	line := label
	if msg != "" {
		line += ": " + msg
	}
	if Retryable(err) {
		line += " (retry is safe)"
	}
	return line
}

var displayLabels = map[Kind]string{
	KindValidation:   "Invalid request",
	KindAuthRequired: "Authentication required",
	KindSubmission:   "Audit engine rejected the request",
	KindTransport:    "Could not reach the audit engine",
	KindNotFound:     "Audit not found",
	KindTimeout:      "Audit did not finish in time",
}
