package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/config"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/providers/aws/common"
)

// ── AWS mocks ─────────────────────────────────────────────────────────────────

type mockAWSProvider struct {
	profileResult *common.ProfileConfig
	profileErr    error
	profiles      []string
	regionsResult []string
	regionsErr    error
	lastProfile   string // records the profile name passed to LoadProfile
	lastRegion    string
}

func (m *mockAWSProvider) LoadProfile(_ context.Context, profile, region string) (*common.ProfileConfig, error) {
	m.lastProfile = profile
	m.lastRegion = region
	return m.profileResult, m.profileErr
}

func (m *mockAWSProvider) ListProfiles() ([]string, error) {
	if m.profiles != nil {
		return m.profiles, nil
	}
	if m.profileResult != nil {
		return []string{m.profileResult.ProfileName}, nil
	}
	return nil, nil
}

func (m *mockAWSProvider) GetActiveRegions(_ context.Context, _ *common.ProfileConfig) ([]string, error) {
	return m.regionsResult, m.regionsErr
}

type mockIAM struct {
	policy string
	err    error
}

func (m *mockIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{
		RoleName:                 in.RoleName,
		Arn:                      aws.String("arn:aws:iam::123456789012:role/" + aws.ToString(in.RoleName)),
		AssumeRolePolicyDocument: aws.String(m.policy),
	}}, nil
}

type mockS3 struct {
	bucket, key string
	body        []byte
	err         error
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.bucket = aws.ToString(in.Bucket)
	m.key = aws.ToString(in.Key)
	m.body, _ = io.ReadAll(in.Body)
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

func goodMockAWS() *mockAWSProvider {
	return &mockAWSProvider{
		profileResult: &common.ProfileConfig{
			ProfileName: "default",
			AccountID:   "123456789012",
			Region:      "us-east-1",
			Clients:     &common.ClientSet{IAM: &mockIAM{}, S3: &mockS3{}},
		},
		regionsResult: []string{"us-east-1", "eu-west-1"},
	}
}

// ── CLI helpers ───────────────────────────────────────────────────────────────

// isolate points HOME at an empty directory and clears the environment
// overrides so a developer's own config never leaks into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{config.EnvEngineURL, config.EnvIdentityURL, config.EnvToken, config.EnvExternalID} {
		t.Setenv(k, "")
	}
}

// runCLI executes the root command with args and returns stdout, stderr and
// the command error.
func runCLI(t *testing.T, g *globalOptions, args ...string) (string, string, error) {
	t.Helper()
	if g == nil {
		g = &globalOptions{awsProvider: goodMockAWS()}
	}
	root := newRootCmdWith(g)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--log-level", "error", "--no-color", "--no-progress"))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func exitCode(err error) int {
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	if err != nil {
		return 1
	}
	return 0
}
