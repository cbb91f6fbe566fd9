// Package enginetest provides an in-process fake of the audit engine for
// tests. It speaks the engine's wire format: lower-case statuses, naive UTC
// timestamps and numeric guideline ids.
package enginetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

const naiveLayout = "2006-01-02T15:04:05.999999"

// Failure is a canned error response.
type Failure struct {
	Code int
	Body string
}

// Outcome is what a job reports once it is terminal.
type Outcome struct {
	Results      []models.CheckResult
	Summary      *models.Summary
	GuidelineIDs map[string]any
	Error        string
}

// Server is a fake audit engine. Configure it with Options before the first
// request; counters may be read at any time.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	initial  models.JobStatus
	sequence []models.JobStatus
	final    models.JobStatus
	outcome  Outcome
	token    string

	startFailure  *Failure
	statusFailure *Failure

	jobs        map[string]*job
	startCalls  int
	statusCalls int
	lastRequest models.AuditRequest
}

type job struct {
	id        string
	accountID string
	started   time.Time
	completed time.Time
	polls     int
	status    models.JobStatus
}

// Option configures a Server.
type Option func(*Server)

// WithInitialStatus sets the status returned by the start endpoint.
// The default is COMPLETED, which makes the engine synchronous.
func WithInitialStatus(s models.JobStatus) Option {
	return func(srv *Server) { srv.initial = s }
}

// WithStatusSequence scripts the statuses returned by successive status
// queries for each job. The last entry repeats forever.
func WithStatusSequence(seq ...models.JobStatus) Option {
	return func(srv *Server) { srv.sequence = seq }
}

// WithOutcome sets the payload attached once a job is terminal.
func WithOutcome(o Outcome) Option {
	return func(srv *Server) { srv.outcome = o }
}

// WithStartFailure makes the start endpoint answer with f.
func WithStartFailure(f Failure) Option {
	return func(srv *Server) { srv.startFailure = &f }
}

// WithStatusFailure makes the status endpoint answer with f for known jobs.
func WithStatusFailure(f Failure) Option {
	return func(srv *Server) { srv.statusFailure = &f }
}

// RequireToken rejects requests without "Authorization: Bearer token" with
// 401.
func RequireToken(token string) Option {
	return func(srv *Server) { srv.token = token }
}

// New starts a Server that is closed when t finishes.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	srv := &Server{
		initial: models.JobCompleted,
		jobs:    make(map[string]*job),
	}
	for _, opt := range opts {
		opt(srv)
	}

	r := mux.NewRouter()
	r.Use(srv.authenticate)
	r.HandleFunc("/health", srv.health).Methods(http.MethodGet)
	r.HandleFunc("/api/audit/start", srv.start).Methods(http.MethodPost)
	r.HandleFunc("/api/audit/status/{id}", srv.status).Methods(http.MethodGet)

	srv.Server = httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// StartCalls returns how many times the start endpoint was hit.
func (s *Server) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls
}

// StatusCalls returns how many times the status endpoint was hit.
func (s *Server) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

// LastRequest returns the most recent submission body.
func (s *Server) LastRequest() models.AuditRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

// AuditIDs returns the ids of every job created so far.
func (s *Server) AuditIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	return ids
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Token expired", "logout": false})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) start(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++

	var req models.AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"msg": "invalid body: " + err.Error()}},
		})
		return
	}
	s.lastRequest = req

	if s.startFailure != nil {
		writeRaw(w, s.startFailure.Code, s.startFailure.Body)
		return
	}

	j := &job{
		id:        uuid.NewString(),
		accountID: req.AccountID,
		started:   time.Now().UTC(),
		status:    s.initial,
	}
	if j.status.Terminal() {
		j.completed = j.started
	}
	s.jobs[j.id] = j
	writeJSON(w, http.StatusOK, s.render(j))
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++

	j, ok := s.jobs[mux.Vars(r)["id"]]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Audit not found"})
		return
	}
	if s.statusFailure != nil {
		writeRaw(w, s.statusFailure.Code, s.statusFailure.Body)
		return
	}

	if !j.status.Terminal() && len(s.sequence) > 0 {
		idx := j.polls
		if idx >= len(s.sequence) {
			idx = len(s.sequence) - 1
		}
		j.status = s.sequence[idx]
		j.polls++
		if j.status.Terminal() {
			j.completed = time.Now().UTC()
		}
	}
	writeJSON(w, http.StatusOK, s.render(j))
}

func (s *Server) render(j *job) map[string]any {
	body := map[string]any{
		"audit_id":   j.id,
		"account_id": j.accountID,
		"status":     strings.ToLower(string(j.status)),
		"started_at": j.started.Format(naiveLayout),
	}
	if !j.status.Terminal() {
		return body
	}

	body["completed_at"] = j.completed.Format(naiveLayout)
	if j.status == models.JobFailed {
		body["error"] = s.outcome.Error
		return body
	}

	results := s.outcome.Results
	if results == nil {
		results = []models.CheckResult{}
	}
	body["results"] = results
	if s.outcome.Summary != nil {
		body["summary"] = s.outcome.Summary
	}
	if s.outcome.GuidelineIDs != nil {
		body["guideline_ids"] = s.outcome.GuidelineIDs
	}
	return body
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, code int, body string) {
	if strings.HasPrefix(strings.TrimSpace(body), "{") {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/html")
	}
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
