package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"pointage/internal/core"
)

// timerSession is a running stopwatch waiting to become a ledger row.
type timerSession struct {
	Provider    string
	Client      string
	Task        string
	Description string
	StartedAt   time.Time
}

// timerRegistry holds running timers in memory, keyed by an opaque token.
// Timers do not survive a restart, the ledger row only exists once stopped.
type timerRegistry struct {
	mu       sync.Mutex
	sessions map[string]timerSession
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{sessions: make(map[string]timerSession)}
}

func (tr *timerRegistry) start(s timerSession) string {
	token := uuid.NewString()
	tr.mu.Lock()
	tr.sessions[token] = s
	tr.mu.Unlock()
	return token
}

func (tr *timerRegistry) stop(token string) (timerSession, bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	s, ok := tr.sessions[token]
	if ok {
		delete(tr.sessions, token)
	}
	return s, ok
}

type timerStartRequest struct {
	Provider    string `json:"provider"`
	Client      string `json:"client"`
	Task        string `json:"task"`
	Description string `json:"description"`
}

type timerStartResponse struct {
	Token     string    `json:"token"`
	StartedAt time.Time `json:"started_at"`
}

// handleTimerStart opens a stopwatch for a client and task. Nothing is
// written to the ledger until the timer is stopped.
func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req timerStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if sanitizeInput(req.Client) == "" || sanitizeInput(req.Task) == "" {
		writeError(w, r, core.ErrEmptyName)
		return
	}

	session := timerSession{
		Provider:    sanitizeInput(req.Provider),
		Client:      sanitizeInput(req.Client),
		Task:        sanitizeInput(req.Task),
		Description: sanitizeInput(req.Description),
		StartedAt:   time.Now().UTC(),
	}
	token := s.timers.start(session)

	writeJSON(w, http.StatusCreated, timerStartResponse{Token: token, StartedAt: session.StartedAt})
}

type timerStopRequest struct {
	Token string `json:"token"`
}

// handleTimerStop closes a stopwatch and records the elapsed span as a
// prestation, snapshotting the task's current rate.
func (s *Server) handleTimerStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var req timerStopRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, ok := s.timers.stop(req.Token)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown timer token"})
		return
	}

	ctx, cancel := s.queryContext(r)
	defer cancel()

	rate, err := s.svc.TaskRate(ctx, session.Task)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := core.PrestationInput{
		Provider:    session.Provider,
		Client:      session.Client,
		Task:        session.Task,
		Description: session.Description,
		StartAt:     session.StartedAt,
		EndAt:       time.Now().UTC(),
		Rate:        rate,
	}
	p, err := s.svc.Insert(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toPrestationJSON(p))
}
