// Package trust checks, before an audit is submitted, that the trust role in
// the target account can only be assumed with the caller's external id.
package trust

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/providers/aws/common"
)

// Result is the outcome of a trust-role preflight.
type Result struct {
	RoleName string `json:"role_name"`
	RoleARN  string `json:"role_arn,omitempty"`

	// AccountID is the account the role lives in, parsed from its ARN.
	AccountID string `json:"account_id,omitempty"`

	// TrustedPrincipals lists the AWS principals allowed to assume the role.
	TrustedPrincipals []string `json:"trusted_principals,omitempty"`

	// RequiresExternalID is true when every statement allowing
	// sts:AssumeRole carries an sts:ExternalId condition.
	RequiresExternalID bool `json:"requires_external_id"`

	// ExternalIDMatches is true when the caller's external id satisfies the
	// condition. Always false when no external id was supplied.
	ExternalIDMatches bool `json:"external_id_matches"`

	Problems []string `json:"problems,omitempty"`
}

// OK reports whether the role is safe to hand to the audit engine.
func (r *Result) OK() bool { return len(r.Problems) == 0 }

// Checker inspects trust roles through IAM.
type Checker struct {
	iam common.IAMRoleClient
}

// NewChecker returns a Checker using client.
func NewChecker(client common.IAMRoleClient) *Checker {
	return &Checker{iam: client}
}

// Check fetches roleName and evaluates its trust policy against externalID.
// Problems with the policy are reported in Result; only API and parse
// failures are returned as errors.
func (c *Checker) Check(ctx context.Context, roleName, externalID string) (*Result, error) {
	out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		return nil, fmt.Errorf("get IAM role %q: %w", roleName, err)
	}
	if out.Role == nil {
		return nil, fmt.Errorf("get IAM role %q: empty response", roleName)
	}

	res := &Result{
		RoleName: roleName,
		RoleARN:  aws.ToString(out.Role.Arn),
	}
	res.AccountID = accountFromARN(res.RoleARN)

	doc, err := parsePolicy(aws.ToString(out.Role.AssumeRolePolicyDocument))
	if err != nil {
		return nil, fmt.Errorf("role %q: %w", roleName, err)
	}
	evaluate(res, doc, externalID)
	return res, nil
}

func evaluate(res *Result, doc *policyDocument, externalID string) {
	assumable := 0
	guarded := 0
	matched := 0

	for _, s := range doc.Statement {
		if !s.allowsAssumeRole() {
			continue
		}
		assumable++
		res.TrustedPrincipals = append(res.TrustedPrincipals, s.Principal.AWS...)
		if s.Principal.Wildcard {
			res.Problems = append(res.Problems, fmt.Sprintf("statement %s trusts any principal (*)", sid(s)))
		}

		ids, ok := s.externalIDs()
		if !ok {
			res.Problems = append(res.Problems, fmt.Sprintf("statement %s allows sts:AssumeRole without an sts:ExternalId condition", sid(s)))
			continue
		}
		guarded++
		if externalID != "" && matchesAny(ids, externalID) {
			matched++
		}
	}

	switch {
	case assumable == 0:
		res.Problems = append(res.Problems, "trust policy does not allow sts:AssumeRole")
		return
	case guarded == assumable:
		res.RequiresExternalID = true
	}

	res.ExternalIDMatches = externalID != "" && matched == guarded && guarded > 0
	if externalID != "" && res.RequiresExternalID && !res.ExternalIDMatches {
		res.Problems = append(res.Problems, "sts:ExternalId condition does not match this user's external id")
	}
}

func matchesAny(patterns []string, value string) bool {
	for _, p := range patterns {
		if p == value {
			return true
		}
		// StringLike patterns use * and ? wildcards, which path.Match also
		// understands for values without a slash.
		if strings.ContainsAny(p, "*?") && !strings.Contains(value, "/") {
			if ok, _ := path.Match(p, value); ok {
				return true
			}
		}
	}
	return false
}

func sid(s statement) string {
	if s.Sid != "" {
		return fmt.Sprintf("%q", s.Sid)
	}
	return "(unnamed)"
}

// accountFromARN returns the account field of arn:partition:service:region:account:resource.
func accountFromARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) < 6 {
		return ""
	}
	return parts[4]
}
