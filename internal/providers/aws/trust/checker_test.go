package trust

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type fakeIAM struct {
	policy string
	arn    string
	err    error
	asked  string
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	f.asked = aws.ToString(in.RoleName)
	if f.err != nil {
		return nil, f.err
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{
		RoleName:                 in.RoleName,
		Arn:                      aws.String(f.arn),
		AssumeRolePolicyDocument: aws.String(url.QueryEscape(f.policy)),
	}}, nil
}

const guardedPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Sid": "CloudDoctor",
    "Effect": "Allow",
    "Principal": {"AWS": "arn:aws:iam::999999999999:root"},
    "Action": "sts:AssumeRole",
    "Condition": {"StringEquals": {"sts:ExternalId": "ext-123"}}
  }]
}`

func TestCheck_GuardedRoleMatchingExternalID(t *testing.T) {
	fake := &fakeIAM{policy: guardedPolicy, arn: "arn:aws:iam::123456789012:role/CloudDoctorAuditRole"}
	res, err := NewChecker(fake).Check(context.Background(), "CloudDoctorAuditRole", "ext-123")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if fake.asked != "CloudDoctorAuditRole" {
		t.Errorf("GetRole asked for %q", fake.asked)
	}
	if !res.OK() {
		t.Errorf("expected OK, problems: %v", res.Problems)
	}
	if !res.RequiresExternalID || !res.ExternalIDMatches {
		t.Errorf("RequiresExternalID=%v ExternalIDMatches=%v", res.RequiresExternalID, res.ExternalIDMatches)
	}
	if res.AccountID != "123456789012" {
		t.Errorf("AccountID = %q", res.AccountID)
	}
	if len(res.TrustedPrincipals) != 1 || res.TrustedPrincipals[0] != "arn:aws:iam::999999999999:root" {
		t.Errorf("TrustedPrincipals = %v", res.TrustedPrincipals)
	}
}

func TestCheck_ExternalIDMismatch(t *testing.T) {
	fake := &fakeIAM{policy: guardedPolicy, arn: "arn:aws:iam::123456789012:role/r"}
	res, err := NewChecker(fake).Check(context.Background(), "r", "someone-else")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.OK() || res.ExternalIDMatches {
		t.Fatalf("expected mismatch, got %+v", res)
	}
	if !strings.Contains(res.Problems[0], "does not match") {
		t.Errorf("problem = %q", res.Problems[0])
	}
}

func TestCheck_NoExternalIDSuppliedOnlyChecksPresence(t *testing.T) {
	fake := &fakeIAM{policy: guardedPolicy, arn: "arn:aws:iam::123456789012:role/r"}
	res, err := NewChecker(fake).Check(context.Background(), "r", "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.OK() || !res.RequiresExternalID || res.ExternalIDMatches {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCheck_StatementObjectWithoutCondition(t *testing.T) {
	policy := `{"Version":"2012-10-17","Statement":{"Effect":"Allow","Principal":"*","Action":["sts:AssumeRole"]}}`
	fake := &fakeIAM{policy: policy, arn: "arn:aws:iam::123456789012:role/r"}
	res, err := NewChecker(fake).Check(context.Background(), "r", "ext-123")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.RequiresExternalID {
		t.Error("RequiresExternalID should be false")
	}
	if len(res.Problems) != 2 {
		t.Fatalf("expected wildcard and missing-condition problems, got %v", res.Problems)
	}
	if !strings.Contains(res.Problems[0], "any principal") {
		t.Errorf("problem[0] = %q", res.Problems[0])
	}
	if !strings.Contains(res.Problems[1], "without an sts:ExternalId") {
		t.Errorf("problem[1] = %q", res.Problems[1])
	}
}

func TestCheck_NoAssumeRoleStatement(t *testing.T) {
	policy := `{"Statement":[{"Effect":"Deny","Principal":{"AWS":"*"},"Action":"sts:AssumeRole"}]}`
	res, err := NewChecker(&fakeIAM{policy: policy}).Check(context.Background(), "r", "x")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(res.Problems) != 1 || res.Problems[0] != "trust policy does not allow sts:AssumeRole" {
		t.Errorf("Problems = %v", res.Problems)
	}
}

func TestCheck_StringLikeListCondition(t *testing.T) {
	policy := `{"Statement":[{"Effect":"Allow","Principal":{"AWS":["arn:aws:iam::1:root"]},"Action":"sts:AssumeRole",
	  "Condition":{"StringLike":{"sts:ExternalId":["other","ext-*"]}}}]}`
	res, err := NewChecker(&fakeIAM{policy: policy}).Check(context.Background(), "r", "ext-123")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.OK() || !res.ExternalIDMatches {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestCheck_Errors(t *testing.T) {
	if _, err := NewChecker(&fakeIAM{err: errors.New("AccessDenied")}).Check(context.Background(), "r", ""); err == nil ||
		!strings.Contains(err.Error(), "AccessDenied") {
		t.Errorf("expected wrapped API error, got %v", err)
	}
	if _, err := NewChecker(&fakeIAM{policy: "not json"}).Check(context.Background(), "r", ""); err == nil ||
		!strings.Contains(err.Error(), "parse trust policy") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestAccountFromARN(t *testing.T) {
	tests := []struct{ arn, want string }{
		{"arn:aws:iam::123456789012:role/x", "123456789012"},
		{"arn:aws-cn:iam::210987654321:role/path/x", "210987654321"},
		{"not-an-arn", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := accountFromARN(tt.arn); got != tt.want {
			t.Errorf("accountFromARN(%q) = %q, want %q", tt.arn, got, tt.want)
		}
	}
}
