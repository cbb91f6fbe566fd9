// Package metrics exposes the audit client's Prometheus instruments.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cdaudit"

// Recorder holds the audit client's collectors. The zero value is not usable;
// construct with NewRecorder. A nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	Submissions     *prometheus.CounterVec
	StatusPolls     prometheus.Counter
	TerminalJobs    *prometheus.CounterVec
	ClientErrors    *prometheus.CounterVec
	JobWait         prometheus.Histogram
	SummaryMismatch prometheus.Counter
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_submissions_total",
			Help:      "Audit submissions by outcome (accepted, rejected, error).",
		}, []string{"outcome"}),
		StatusPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_status_polls_total",
			Help:      "Status queries sent to the audit engine.",
		}),
		TerminalJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_jobs_terminal_total",
			Help:      "Jobs observed reaching a terminal status.",
		}, []string{"status"}),
		ClientErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_client_errors_total",
			Help:      "Client-side failures by kind.",
		}, []string{"kind"}),
		JobWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audit_job_wait_seconds",
			Help:      "Time from submission until the job was terminal.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		SummaryMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_summary_mismatch_total",
			Help:      "Completed jobs whose declared summary disagreed with their results.",
		}),
	}
	r.registry.MustRegister(r.Submissions, r.StatusPolls, r.TerminalJobs, r.ClientErrors, r.JobWait, r.SummaryMismatch)
	return r
}

// Registry returns the registry holding r's collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) Submission(outcome string) {
	if r != nil {
		r.Submissions.WithLabelValues(outcome).Inc()
	}
}

func (r *Recorder) Poll() {
	if r != nil {
		r.StatusPolls.Inc()
	}
}

func (r *Recorder) Terminal(status string, waitSeconds float64) {
	if r == nil {
		return
	}
	r.TerminalJobs.WithLabelValues(status).Inc()
	if waitSeconds >= 0 {
		r.JobWait.Observe(waitSeconds)
	}
}

func (r *Recorder) ClientError(kind string) {
	if r != nil {
		r.ClientErrors.WithLabelValues(kind).Inc()
	}
}

func (r *Recorder) Mismatch() {
	if r != nil {
		r.SummaryMismatch.Inc()
	}
}

// WriteTextfile writes every collected metric to path in the text
// exposition format read by the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
