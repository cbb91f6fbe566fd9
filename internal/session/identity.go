package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/transport"
)

// DefaultExternalIDPath is the identity service route returning the caller's
// external id.
const DefaultExternalIDPath = "/api/user/external-id"

// IdentityClient talks to the identity service.
type IdentityClient struct {
	http           *transport.Client
	externalIDPath string
}

// NewIdentityClient returns a client for the identity service behind c.
// An empty path selects DefaultExternalIDPath.
func NewIdentityClient(c *transport.Client, externalIDPath string) *IdentityClient {
	if externalIDPath == "" {
		externalIDPath = DefaultExternalIDPath
	}
	return &IdentityClient{http: c, externalIDPath: externalIDPath}
}

// FetchExternalID retrieves the caller's external id. The endpoint answers
// with either a JSON string, a JSON object with an "externalId" field, or
// plain text. 401 and 403 are reported as auditerr.KindAuthRequired and are
// left to the session refresh flow.
func (c *IdentityClient) FetchExternalID(ctx context.Context) (string, error) {
	const op = "fetch external id"

	data, err := c.http.Do(ctx, http.MethodGet, c.externalIDPath, nil)
	if err != nil {
		if he, ok := transport.AsHTTPError(err); ok && he.Unauthorized() {
			return "", &auditerr.Error{Kind: auditerr.KindAuthRequired, Op: op, StatusCode: he.StatusCode, Message: he.Message, Err: err}
		}
		return "", &auditerr.Error{Kind: auditerr.KindTransport, Op: op, Err: err}
	}

	id := parseExternalID(data)
	if id == "" {
		return "", &auditerr.Error{Kind: auditerr.KindTransport, Op: op, Message: "identity service returned an empty external id"}
	}
	return id, nil
}

func parseExternalID(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return ""
	}

	var s string
	if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		ExternalID      string `json:"externalId"`
		ExternalIDSnake string `json:"external_id"`
	}
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
		if obj.ExternalID != "" {
			return strings.TrimSpace(obj.ExternalID)
		}
		return strings.TrimSpace(obj.ExternalIDSnake)
	}
	if strings.ContainsAny(trimmed, "{}[]\"") {
		return ""
	}
	return trimmed
}

// Resolve returns a Context for token, fetching the external id from the
// identity service unless externalID is already known. Without a token the
// engine is addressed directly and a configured external id is the only
// credential, so the session counts as authenticated when one is present.
func Resolve(ctx context.Context, token, externalID string, identity *IdentityClient) (Context, error) {
	if token == "" {
		return Static{ExternalID: externalID, Authenticated: externalID != ""}, nil
	}
	ts, err := FromToken(token)
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	if !ts.IsAuthenticated() {
		return nil, &auditerr.Error{Kind: auditerr.KindAuthRequired, Op: "resolve session", Message: "access token expired"}
	}
	if externalID == "" && identity != nil {
		externalID, err = identity.FetchExternalID(ctx)
		if err != nil {
			return nil, err
		}
	}
	return ts.WithExternalID(externalID), nil
}
