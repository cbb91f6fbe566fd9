package policy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

func boolPtr(b bool) *bool { return &b }

var testEntries = []models.CheckCatalogEntry{
	{ID: "EC2IMDSv2Check", Category: "ec2"},
	{ID: "EC2AMIPrivateCheck", Category: "ec2"},
	{ID: "S3EncryptionCheck", Category: "s3"},
	{ID: "SSMDocumentPublicAccessCheck", Category: "ssm"},
}

func TestSelectChecks_NilPolicyKeepsSelection(t *testing.T) {
	got, err := SelectChecks(nil, testEntries, nil)
	if err != nil || got != nil {
		t.Fatalf("expected nil selection; got %v, %v", got, err)
	}

	got, _ = SelectChecks([]string{"S3EncryptionCheck"}, testEntries, nil)
	if !reflect.DeepEqual(got, []string{"S3EncryptionCheck"}) {
		t.Fatalf("selection changed: %v", got)
	}
}

func TestSelectChecks_UnrestrictedPolicyKeepsAll(t *testing.T) {
	cfg := &Config{
		Version:    1,
		Categories: map[string]CategoryConfig{"ec2": {Enabled: boolPtr(true)}},
		Checks:     map[string]CheckConfig{"S3EncryptionCheck": {Enabled: boolPtr(true)}},
	}

	got, err := SelectChecks(nil, testEntries, cfg)
	if err != nil || got != nil {
		t.Fatalf("an all-enabled policy must leave selection to the engine; got %v, %v", got, err)
	}
}

func TestSelectChecks_CategoryDisabledExpandsAll(t *testing.T) {
	cfg := &Config{Categories: map[string]CategoryConfig{"ec2": {Enabled: boolPtr(false)}}}

	got, err := SelectChecks(nil, testEntries, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"S3EncryptionCheck", "SSMDocumentPublicAccessCheck"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSelectChecks_CheckOverridesCategory(t *testing.T) {
	cfg := &Config{
		Categories: map[string]CategoryConfig{"ec2": {Enabled: boolPtr(false)}},
		Checks:     map[string]CheckConfig{"EC2IMDSv2Check": {Enabled: boolPtr(true)}},
	}

	got, err := SelectChecks([]string{"EC2IMDSv2Check", "EC2AMIPrivateCheck"}, testEntries, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"EC2IMDSv2Check"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSelectChecks_UnknownRequestedCheckKept(t *testing.T) {
	cfg := &Config{Checks: map[string]CheckConfig{"S3EncryptionCheck": {Enabled: boolPtr(false)}}}

	got, err := SelectChecks([]string{"RetiredCheck", "S3EncryptionCheck"}, testEntries, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"RetiredCheck"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSelectChecks_NothingLeft(t *testing.T) {
	cfg := &Config{Checks: map[string]CheckConfig{"S3EncryptionCheck": {Enabled: boolPtr(false)}}}

	_, err := SelectChecks([]string{"S3EncryptionCheck"}, testEntries, cfg)
	if !errors.Is(err, ErrNothingSelected) {
		t.Fatalf("expected ErrNothingSelected, got %v", err)
	}
}

func TestEnabled_NilConfig(t *testing.T) {
	var cfg *Config
	if !cfg.Enabled("anything", "ec2") {
		t.Fatal("nil policy enables everything")
	}
}

func TestSelectChecks_CategoryWithoutEnabledStaysEnabled(t *testing.T) {
	cfg := &Config{
		Categories: map[string]CategoryConfig{"ec2": {}},
		Checks:     map[string]CheckConfig{"S3EncryptionCheck": {Enabled: boolPtr(false)}},
	}

	got, err := SelectChecks(nil, testEntries, cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"EC2IMDSv2Check", "EC2AMIPrivateCheck", "SSMDocumentPublicAccessCheck"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if !cfg.Enabled("EC2IMDSv2Check", "ec2") {
		t.Error("a category without enabled must not disable its checks")
	}
}
