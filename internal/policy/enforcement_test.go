package policy

import (
	"testing"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

func viewWith(statuses ...models.CheckStatus) *models.AuditView {
	v := &models.AuditView{}
	for _, s := range statuses {
		v.Results = append(v.Results, models.CorrelatedResult{CheckResult: models.CheckResult{Status: s}})
	}
	return v
}

func TestShouldFail_NilConfig(t *testing.T) {
	if ShouldFail(viewWith(models.CheckFail), nil) {
		t.Error("nil cfg must return false")
	}
}

func TestShouldFail_NoEnforcementBlock(t *testing.T) {
	if ShouldFail(viewWith(models.CheckFail), &Config{}) {
		t.Error("absent enforcement block must return false")
	}
}

func TestShouldFail_NoResults(t *testing.T) {
	cfg := &Config{Enforcement: EnforcementConfig{FailOn: []string{"FAIL"}}}
	if ShouldFail(viewWith(), cfg) {
		t.Error("empty result list must return false")
	}
}

func TestShouldFail_MatchingStatus(t *testing.T) {
	cfg := &Config{Enforcement: EnforcementConfig{FailOn: []string{"FAIL"}}}
	if !ShouldFail(viewWith(models.CheckPass, models.CheckFail), cfg) {
		t.Error("a FAIL result must trip fail_on: [FAIL]")
	}
	if ShouldFail(viewWith(models.CheckPass, models.CheckWarn), cfg) {
		t.Error("WARN must not trip fail_on: [FAIL]")
	}
}

func TestShouldFail_CaseInsensitive(t *testing.T) {
	cfg := &Config{Enforcement: EnforcementConfig{FailOn: []string{" warn "}}}
	if !ShouldFail(viewWith(models.CheckWarn), cfg) {
		t.Error("fail_on values must be matched case-insensitively")
	}
}
