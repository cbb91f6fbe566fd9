// Package request assembles and validates audit submissions. It performs no
// I/O: the external id must already be known when Build is called.
package request

import (
	"strings"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/session"
)

// DefaultRoleName is the trust role created in target accounts by the
// onboarding template.
const DefaultRoleName = "CloudDoctorAuditRole"

// accountIDLength is the length of an AWS account id.
const accountIDLength = 12

// Input is the raw, unvalidated form data for one submission.
type Input struct {
	AccountID  string
	RoleName   string
	ExternalID string
	Checks     []string
}

// Builder turns Input into a models.AuditRequest.
type Builder struct {
	// RoleName is used when Input.RoleName is empty. Empty selects
	// DefaultRoleName.
	RoleName string
}

// NewBuilder returns a Builder bound to roleName.
func NewBuilder(roleName string) *Builder {
	return &Builder{RoleName: roleName}
}

// Build validates in and returns the request to submit. Validation stops at
// the first failure, in this order: missing account id, malformed account
// id, missing external id. Check ids are passed through unvalidated; an
// empty selection means every check.
func (b *Builder) Build(in Input) (*models.AuditRequest, error) {
	accountID := strings.TrimSpace(in.AccountID)
	if accountID == "" {
		return nil, auditerr.Validation(auditerr.ReasonMissingAccountID, "account id is required")
	}
	if !isAccountID(accountID) {
		return nil, auditerr.Validation(auditerr.ReasonMalformedAccountID,
			"account id must be exactly 12 digits, got "+quote(accountID))
	}

	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, auditerr.Validation(auditerr.ReasonMissingExternalID,
			"external id has not been fetched for this session")
	}

	return &models.AuditRequest{
		AccountID:  accountID,
		RoleName:   b.roleName(in.RoleName),
		ExternalID: externalID,
		Checks:     normalizeChecks(in.Checks),
	}, nil
}

// FromSession builds a request using the external id already held by s.
// An unauthenticated session is reported as auditerr.KindAuthRequired before
// any field validation runs.
func (b *Builder) FromSession(s session.Context, accountID string, checks []string) (*models.AuditRequest, error) {
	if s == nil || !s.IsAuthenticated() {
		return nil, &auditerr.Error{
			Kind:    auditerr.KindAuthRequired,
			Op:      "build audit request",
			Message: "sign in before starting an audit",
		}
	}
	return b.Build(Input{
		AccountID:  accountID,
		ExternalID: s.CurrentExternalID(),
		Checks:     checks,
	})
}

func (b *Builder) roleName(override string) string {
	if r := strings.TrimSpace(override); r != "" {
		return r
	}
	if b.RoleName != "" {
		return b.RoleName
	}
	return DefaultRoleName
}

func isAccountID(s string) bool {
	if len(s) != accountIDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// normalizeChecks trims, drops blanks and collapses duplicates, keeping the
// first occurrence. It returns nil when nothing remains.
func normalizeChecks(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func quote(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return `"` + s + `"`
}
