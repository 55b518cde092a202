// Package walletclienttest provides an in-memory wallet gateway for tests.
package walletclienttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/yourorg/wallet-checkout/internal/adapter/walletclient"
)

type session struct {
	id        string
	requestID string
	payload   json.RawMessage
	events    []walletclient.Event
	sheets    []json.RawMessage
}

// Gateway is a fake wallet gateway backed by httptest.Server.
type Gateway struct {
	server *httptest.Server

	mu          sync.Mutex
	sessions    map[string]*session
	byRequest   map[string]*session
	nextSession int
	lastHeader  http.Header

	// Readiness is returned by GET /v1/readiness.
	Readiness walletclient.ReadinessResponse
	// ReadinessStatus overrides the HTTP status of readiness probes.
	ReadinessStatus int
	// StartStatus overrides the HTTP status of session creation.
	StartStatus int
	// FailPolls makes the next N event polls answer 500.
	FailPolls int
	// OnStart runs after a session is created, outside the gateway lock.
	OnStart func(g *Gateway, requestID string)
	// OnSheet runs after a sheet is posted, outside the gateway lock.
	OnSheet func(g *Gateway, requestID string, sheet json.RawMessage)

	activations int
	updatePages int
	polls       int
}

// NewGateway starts a fake gateway. Callers must Close it.
func NewGateway() *Gateway {
	g := &Gateway{
		sessions:  make(map[string]*session),
		byRequest: make(map[string]*session),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/payments", g.handleStart)
	mux.HandleFunc("GET /v1/payments/{id}/events", g.handleEvents)
	mux.HandleFunc("POST /v1/payments/{id}/sheet", g.handleSheet)
	mux.HandleFunc("GET /v1/readiness", g.handleReadiness)
	mux.HandleFunc("POST /v1/activation", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.activations++
		g.lastHeader = r.Header.Clone()
		g.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /v1/update-page", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		g.updatePages++
		g.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	})
	g.server = httptest.NewServer(mux)
	return g
}

func (g *Gateway) URL() string { return g.server.URL }

func (g *Gateway) Close() { g.server.Close() }

// Push appends ev to the session opened for requestID, numbering it.
func (g *Gateway) Push(requestID string, ev walletclient.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.byRequest[requestID]
	if !ok {
		return fmt.Errorf("walletclienttest: no session for request %s", requestID)
	}
	ev.Seq = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return nil
}

// Payload returns the payload the session for requestID was opened with.
func (g *Gateway) Payload(requestID string) (json.RawMessage, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.byRequest[requestID]
	if !ok {
		return nil, false
	}
	return s.payload, true
}

// Sheets returns the sheets posted for requestID.
func (g *Gateway) Sheets(requestID string) []json.RawMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.byRequest[requestID]
	if !ok {
		return nil
	}
	out := make([]json.RawMessage, len(s.sheets))
	copy(out, s.sheets)
	return out
}

// HasSession reports whether a session was opened for requestID.
func (g *Gateway) HasSession(requestID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.byRequest[requestID]
	return ok
}

// LastHeader returns the headers of the last session, readiness or
// activation call.
func (g *Gateway) LastHeader() http.Header {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastHeader
}

func (g *Gateway) Activations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activations
}

func (g *Gateway) UpdatePages() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.updatePages
}

// Polls counts event polls across all sessions.
func (g *Gateway) Polls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

func (g *Gateway) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequestID string          `json:"request_id"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	g.lastHeader = r.Header.Clone()
	if g.StartStatus != 0 {
		status := g.StartStatus
		g.mu.Unlock()
		http.Error(w, "start rejected", status)
		return
	}
	g.nextSession++
	s := &session{
		id:        "sess-" + strconv.Itoa(g.nextSession),
		requestID: body.RequestID,
		payload:   body.Payload,
	}
	g.sessions[s.id] = s
	g.byRequest[s.requestID] = s
	onStart := g.OnStart
	g.mu.Unlock()

	if onStart != nil {
		onStart(g, body.RequestID)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": s.id})
}

func (g *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	after, _ := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)

	g.mu.Lock()
	g.polls++
	if g.FailPolls > 0 {
		g.FailPolls--
		g.mu.Unlock()
		http.Error(w, "temporarily broken", http.StatusInternalServerError)
		return
	}
	s, ok := g.sessions[r.PathValue("id")]
	if !ok {
		g.mu.Unlock()
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	var events []walletclient.Event
	for _, ev := range s.events {
		if ev.Seq > after {
			events = append(events, ev)
		}
	}
	g.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (g *Gateway) handleSheet(w http.ResponseWriter, r *http.Request) {
	var sheet json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&sheet); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	s, ok := g.sessions[r.PathValue("id")]
	if !ok {
		g.mu.Unlock()
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	s.sheets = append(s.sheets, sheet)
	requestID := s.requestID
	onSheet := g.OnSheet
	g.mu.Unlock()

	if onSheet != nil {
		onSheet(g, requestID, sheet)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleReadiness(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.lastHeader = r.Header.Clone()
	status := g.ReadinessStatus
	resp := g.Readiness
	g.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "readiness unavailable", status)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
