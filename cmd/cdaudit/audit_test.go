package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditengine/enginetest"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/jobclient"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

const testAccount = "123456789012"

func engineWithFindings(t *testing.T, opts ...enginetest.Option) *enginetest.Server {
	t.Helper()
	base := []enginetest.Option{enginetest.WithOutcome(enginetest.Outcome{
		Results: []models.CheckResult{
			{CheckID: "EC2IMDSv2Check", Status: models.CheckFail, ResourceID: "i-0abc", Message: "IMDSv1 enabled"},
			{CheckID: "S3EncryptionCheck", Status: models.CheckPass, ResourceID: "bucket-a", Message: "encrypted"},
		},
		GuidelineIDs: map[string]any{"EC2IMDSv2Check": 7, "S3EncryptionCheck": 9},
	})}
	return enginetest.New(t, append(base, opts...)...)
}

func TestAuditStart_Table(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	out, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456")
	if err != nil {
		t.Fatalf("audit start: %v", err)
	}

	ids := srv.AuditIDs()
	if len(ids) != 1 {
		t.Fatalf("expected one audit, got %v", ids)
	}
	for _, want := range []string{
		"Audit:    " + ids[0],
		"Status:   COMPLETED",
		"2 total",
		"EC2 IMDSv2 enforced",
		"/guide/ec2/7",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}
	// PASS results never carry a link.
	if strings.Contains(out, "/guide/s3/9") {
		t.Errorf("PASS result must not show a guide link;\ngot:\n%s", out)
	}

	req := srv.LastRequest()
	if req.AccountID != testAccount || req.ExternalID != "ext-123456" || req.RoleName != "CloudDoctorAuditRole" {
		t.Errorf("unexpected request %+v", req)
	}
	if req.Checks != nil {
		t.Errorf("no --check should send no check list, got %v", req.Checks)
	}
}

func TestAuditStart_ChecksAndRoleForwarded(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456",
		"--role", "CustomRole",
		"--check", "EC2IMDSv2Check,S3EncryptionCheck", "--check", "EC2IMDSv2Check")
	if err != nil {
		t.Fatalf("audit start: %v", err)
	}
	req := srv.LastRequest()
	if req.RoleName != "CustomRole" {
		t.Errorf("RoleName = %q", req.RoleName)
	}
	want := []string{"EC2IMDSv2Check", "S3EncryptionCheck"}
	if !reflect.DeepEqual(req.Checks, want) {
		t.Errorf("Checks = %v, want %v", req.Checks, want)
	}
}

func TestAuditStart_InvalidAccountNeverReachesEngine(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "start",
		"--account", "1234", "--engine-url", srv.URL, "--external-id", "ext-123456")
	if !errors.Is(err, &auditerr.Error{Kind: auditerr.KindValidation, Reason: auditerr.ReasonMalformedAccountID}) {
		t.Fatalf("expected MalformedAccountId, got %v", err)
	}
	if srv.StartCalls() != 0 {
		t.Errorf("engine called %d times", srv.StartCalls())
	}
}

func TestAuditStart_WithoutCredentialsIsAuthRequired(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "start", "--account", testAccount, "--engine-url", srv.URL)
	if !errors.Is(err, auditerr.ErrAuthRequired) {
		t.Fatalf("expected AuthRequired, got %v", err)
	}
	if srv.StartCalls() != 0 {
		t.Errorf("engine called %d times", srv.StartCalls())
	}
}

func TestAuditStart_EngineFailureMessageIsKept(t *testing.T) {
	isolate(t)
	srv := enginetest.New(t, enginetest.WithStartFailure(enginetest.Failure{
		Code: 500,
		Body: `{"detail":"Failed to assume role: AccessDenied"}`,
	}))

	_, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456")
	if !errors.Is(err, auditerr.ErrSubmission) {
		t.Fatalf("expected Submission, got %v", err)
	}
	if got := auditerr.Display(err); !strings.Contains(got, "Failed to assume role: AccessDenied") {
		t.Errorf("Display lost the engine message: %q", got)
	}
}

func TestAuditStart_FailedJobExitsWithAuditFailed(t *testing.T) {
	isolate(t)
	srv := enginetest.New(t,
		enginetest.WithInitialStatus(models.JobFailed),
		enginetest.WithOutcome(enginetest.Outcome{Error: "Role CloudDoctorAuditRole not assumable"}),
	)

	out, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456")
	if code := exitCode(err); code != exitAuditFailed {
		t.Fatalf("exit code = %d (err %v), want %d", code, err, exitAuditFailed)
	}
	for _, want := range []string{"Status:   FAILED", "Audit failed: Role CloudDoctorAuditRole not assumable", "0 total"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}
}

func TestAuditStart_FailOnFindings(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456",
		"--fail-on-findings")
	if code := exitCode(err); code != exitFindings {
		t.Errorf("exit code = %d, want %d", code, exitFindings)
	}
}

func TestAuditStart_JSONAndOutputFile(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)
	path := filepath.Join(t.TempDir(), "reports", "audit.json")

	out, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456",
		"--format", "json", "--output", path)
	if err != nil {
		t.Fatalf("audit start: %v", err)
	}

	var view models.AuditView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, out)
	}
	if len(view.Results) != 2 || view.Results[0].Link == nil || view.Results[0].Link.Target != "ec2/7" {
		t.Errorf("unexpected view %+v", view)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("output file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strings.TrimSpace(out) {
		t.Errorf("output file differs from stdout;\nfile:\n%s\nstdout:\n%s", data, out)
	}
}

func TestAuditStart_NoWait(t *testing.T) {
	isolate(t)
	srv := enginetest.New(t, enginetest.WithInitialStatus(models.JobPending))

	out, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456", "--no-wait")
	if err != nil {
		t.Fatalf("audit start: %v", err)
	}
	id := srv.AuditIDs()[0]
	if !strings.Contains(out, "Audit "+id+" submitted (PENDING)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "cdaudit audit status --wait "+id) {
		t.Errorf("missing resume hint:\n%s", out)
	}
	if srv.StatusCalls() != 0 {
		t.Errorf("--no-wait must not poll; status calls = %d", srv.StatusCalls())
	}
}

func TestAuditStart_ArchiveToS3(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)
	awsP := goodMockAWS()
	s3c := awsP.profileResult.Clients.S3.(*mockS3)
	cfgPath := writeConfig(t, "archive:\n  bucket: audit-archive\n  prefix: cd\naws:\n  profile: security\n")

	_, errOut, err := runCLI(t, &globalOptions{awsProvider: awsP}, "audit", "start",
		"--config", cfgPath,
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456", "--archive")
	if err != nil {
		t.Fatalf("audit start: %v", err)
	}

	id := srv.AuditIDs()[0]
	wantKey := "cd/" + testAccount + "/" + id + ".json"
	if s3c.bucket != "audit-archive" || s3c.key != wantKey {
		t.Errorf("PutObject to %s/%s, want audit-archive/%s", s3c.bucket, s3c.key, wantKey)
	}
	if awsP.lastProfile != "security" {
		t.Errorf("LoadProfile called with %q; want security", awsP.lastProfile)
	}
	if !strings.Contains(errOut, "Archived to s3://audit-archive/"+wantKey) {
		t.Errorf("stderr missing archive location:\n%s", errOut)
	}

	var job models.AuditJob
	if err := json.Unmarshal(s3c.body, &job); err != nil || job.AuditID != id {
		t.Errorf("archived body is not the job (err %v): %s", err, s3c.body)
	}
}

func TestAuditStart_ArchiveWithoutBucket(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456", "--archive")
	if err == nil || !strings.Contains(err.Error(), "archive.bucket") {
		t.Errorf("expected missing bucket error, got %v", err)
	}
}

func TestAuditStart_UnknownFormat(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456", "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), `unknown format "xml"`) {
		t.Errorf("expected format error, got %v", err)
	}
	if srv.StartCalls() != 0 {
		t.Error("format is checked before submission")
	}
}

func TestAuditStatus_Running(t *testing.T) {
	isolate(t)
	srv := enginetest.New(t, enginetest.WithInitialStatus(models.JobRunning))
	if _, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456", "--no-wait"); err != nil {
		t.Fatalf("audit start: %v", err)
	}
	id := srv.AuditIDs()[0]

	out, _, err := runCLI(t, nil, "audit", "status", id, "--engine-url", srv.URL)
	if err != nil {
		t.Fatalf("audit status: %v", err)
	}
	if !strings.Contains(out, "Audit "+id+": RUNNING") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestAuditStatus_Completed(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)
	if _, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456"); err != nil {
		t.Fatalf("audit start: %v", err)
	}
	id := srv.AuditIDs()[0]

	out, _, err := runCLI(t, nil, "audit", "status", id, "--engine-url", srv.URL, "--format", "summary", "--findings-only")
	if err != nil {
		t.Fatalf("audit status: %v", err)
	}
	if !strings.Contains(out, "Status:   COMPLETED") || strings.Contains(out, "RESOURCE ID") {
		t.Errorf("summary format should print the header only:\n%s", out)
	}
}

func TestAuditStatus_NotFound(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)

	_, _, err := runCLI(t, nil, "audit", "status", "does-not-exist", "--engine-url", srv.URL)
	if !errors.Is(err, auditerr.ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if got := auditerr.Display(err); !strings.Contains(got, "Audit not found") {
		t.Errorf("Display = %q", got)
	}
}

func TestAuditExplain(t *testing.T) {
	isolate(t)
	srv := engineWithFindings(t)
	if _, _, err := runCLI(t, nil, "audit", "start",
		"--account", testAccount, "--engine-url", srv.URL, "--external-id", "ext-123456"); err != nil {
		t.Fatalf("audit start: %v", err)
	}
	id := srv.AuditIDs()[0]

	out, _, err := runCLI(t, nil, "audit", "explain", id, "EC2IMDSv2Check", "--engine-url", srv.URL)
	if err != nil {
		t.Fatalf("audit explain: %v", err)
	}
	for _, want := range []string{"CHECK EC2IMDSv2Check", "Guideline: /guide/ec2/7", "i-0abc: IMDSv1 enabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, nil, "audit", "explain", id, "GuardDutyStatusCheck", "--engine-url", srv.URL, "--format", "json")
	if exitCode(err) != 1 {
		t.Errorf("missing check should exit 1, got %v", err)
	}
	if !strings.Contains(out, "No results for check GuardDutyStatusCheck in audit "+id) {
		t.Errorf("unexpected JSON:\n%s", out)
	}
}

func TestExplainWaitError_AddsResumeHint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantHint bool
	}{
		{"timeout", &auditerr.Error{Kind: auditerr.KindTimeout}, true},
		{"abandoned", jobclient.ErrAbandoned, true},
		{"transport", &auditerr.Error{Kind: auditerr.KindTransport}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			got := explainWaitError(&buf, tt.err, "a-1")
			if got != tt.err {
				t.Errorf("error must be returned unchanged")
			}
			hasHint := strings.Contains(buf.String(), "cdaudit audit status --wait a-1")
			if hasHint != tt.wantHint {
				t.Errorf("hint = %v, want %v; output %q", hasHint, tt.wantHint, buf.String())
			}
		})
	}
}
