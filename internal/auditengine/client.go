// Package auditengine is the HTTP client for the remote audit engine. It maps
// transport outcomes onto the auditerr taxonomy; callers never see
// *transport.HTTPError directly.
package auditengine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/transport"
)

const (
	startPath  = "/api/audit/start"
	statusPath = "/api/audit/status/"
	healthPath = "/health"
)

// Client calls the audit engine.
type Client struct {
	http *transport.Client
}

// New returns a Client using c for all requests.
func New(c *transport.Client) *Client {
	return &Client{http: c}
}

// BaseURL returns the engine base URL.
func (c *Client) BaseURL() string { return c.http.BaseURL() }

// Start submits req. The returned job may already be terminal when the engine
// ran the audit synchronously.
//
// 401 and 403 map to KindAuthRequired. 502, 503 and 504 come from the
// gateway in front of the engine and map to KindTransport whatever their
// body says. Any other error response that carries a recognised error
// payload maps to KindSubmission with the engine's message verbatim.
// Everything else, including network failures and unreadable bodies, maps to
// KindTransport.
func (c *Client) Start(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error) {
	const op = "start audit"

	var job models.AuditJob
	err := c.http.DoJSON(ctx, http.MethodPost, startPath, req, &job)
	if err == nil {
		return &job, nil
	}

	he, ok := transport.AsHTTPError(err)
	switch {
	case ok && he.Unauthorized():
		return nil, classify(auditerr.KindAuthRequired, op, "", he, err)
	case ok && gatewayFailure(he.StatusCode):
		return nil, classify(auditerr.KindTransport, op, "", he, err)
	case ok && he.Structured:
		return nil, classify(auditerr.KindSubmission, op, "", he, err)
	case ok:
		return nil, classify(auditerr.KindTransport, op, "", he, err)
	}
	return nil, &auditerr.Error{Kind: auditerr.KindTransport, Op: op, Err: err}
}

// gatewayFailure reports whether code is produced by a proxy or load
// balancer rather than by the engine itself.
func gatewayFailure(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Status fetches the current state of auditID. 404 maps to KindNotFound,
// 401 and 403 to KindAuthRequired, anything else to KindTransport.
func (c *Client) Status(ctx context.Context, auditID string) (*models.AuditJob, error) {
	const op = "get audit status"

	if strings.TrimSpace(auditID) == "" {
		return nil, &auditerr.Error{Kind: auditerr.KindNotFound, Op: op, Message: "empty audit id"}
	}

	var job models.AuditJob
	err := c.http.DoJSON(ctx, http.MethodGet, statusPath+url.PathEscape(auditID), nil, &job)
	if err == nil {
		if job.AuditID == "" {
			job.AuditID = auditID
		}
		return &job, nil
	}

	he, ok := transport.AsHTTPError(err)
	switch {
	case ok && he.StatusCode == http.StatusNotFound:
		return nil, classify(auditerr.KindNotFound, op, auditID, he, err)
	case ok && he.Unauthorized():
		return nil, classify(auditerr.KindAuthRequired, op, auditID, he, err)
	case ok:
		return nil, classify(auditerr.KindTransport, op, auditID, he, err)
	}
	return nil, &auditerr.Error{Kind: auditerr.KindTransport, Op: op, AuditID: auditID, Err: err}
}

// Health probes the engine liveness endpoint and returns its reported
// status, or the raw body when it is not JSON.
func (c *Client) Health(ctx context.Context) (string, error) {
	data, err := c.http.Do(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		if he, ok := transport.AsHTTPError(err); ok {
			return "", classify(auditerr.KindTransport, "engine health", "", he, err)
		}
		return "", &auditerr.Error{Kind: auditerr.KindTransport, Op: "engine health", Err: err}
	}

	var body struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(data, &body) == nil && body.Status != "" {
		return body.Status, nil
	}
	return strings.TrimSpace(string(data)), nil
}

func classify(kind auditerr.Kind, op, auditID string, he *transport.HTTPError, err error) *auditerr.Error {
	return &auditerr.Error{
		Kind:       kind,
		Op:         op,
		AuditID:    auditID,
		StatusCode: he.StatusCode,
		Message:    he.Message,
		Err:        err,
	}
}
