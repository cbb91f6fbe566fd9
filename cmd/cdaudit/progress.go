package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/jobclient"
)

// progress follows job transitions. It drives a spinner when enabled and
// always remembers the last audit id seen so an interrupted wait can print
// how to resume.
type progress struct {
	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
	auditID string
}

func startProgress(w io.Writer, enabled bool, text string) *progress {
	p := &progress{}
	if !enabled {
		return p
	}
	sp, err := pterm.DefaultSpinner.
		WithWriter(w).
		WithRemoveWhenDone(true).
		Start(text)
	if err == nil {
		p.spinner = sp
	}
	return p
}

// observe is installed as jobclient.Options.OnTransition.
func (p *progress) observe(t jobclient.Transition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.AuditID != "" {
		p.auditID = t.AuditID
	}
	if p.spinner == nil {
		return
	}
	switch t.To {
	case jobclient.StateSubmitted:
		p.spinner.UpdateText(fmt.Sprintf("Audit %s submitted", p.auditID))
	case jobclient.StatePolling:
		p.spinner.UpdateText(fmt.Sprintf("Audit %s %s (since %s)", p.auditID, t.Status, t.At.Format(time.Kitchen)))
	}
}

func (p *progress) lastAuditID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auditID
}

func (p *progress) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		_ = p.spinner.Stop()
		p.spinner = nil
	}
}
