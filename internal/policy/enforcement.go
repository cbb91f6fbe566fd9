package policy

import (
	"strings"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// ShouldFail reports whether any result in view has a status listed in the
// policy's enforcement.fail_on.
//
// It returns false when:
//   - cfg is nil (no policy loaded)
//   - fail_on is empty
//   - view has no results
func ShouldFail(view *models.AuditView, cfg *Config) bool {
	if cfg == nil || view == nil || len(cfg.Enforcement.FailOn) == 0 {
		return false
	}
	failOn := make(map[models.CheckStatus]bool, len(cfg.Enforcement.FailOn))
	for _, s := range cfg.Enforcement.FailOn {
		failOn[models.CheckStatus(strings.ToUpper(strings.TrimSpace(s)))] = true
	}
	for _, r := range view.Results {
		if failOn[r.Status] {
			return true
		}
	}
	return false
}
