// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/snapsift/snapsift/internal/capture"
	"github.com/snapsift/snapsift/internal/config"
	"github.com/snapsift/snapsift/internal/errors"
	"github.com/snapsift/snapsift/internal/session"
	"github.com/snapsift/snapsift/internal/storage"
	"github.com/snapsift/snapsift/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

type TickMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	State     session.State `json:"state"`
}

type DecisionMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	Seq       uint64  `json:"seq"`
	Outcome   string  `json:"outcome"`
	MatchSeq  uint64  `json:"match_seq,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Path      string  `json:"path,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type EndMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Captured  int    `json:"frames_captured"`
	Kept      int    `json:"frames_kept"`
	Discarded int    `json:"frames_discarded"`
	Errors    int    `json:"error_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// startRequest overrides the configured session defaults per field.
type startRequest struct {
	OutputDir       string  `json:"output_dir"`
	DurationSeconds int     `json:"duration_seconds"`
	IntervalSeconds int     `json:"interval_seconds"`
	Threshold       float64 `json:"threshold"`
	Region          string  `json:"region"`
	Policy          string  `json:"policy"`
	MaxRecords      int     `json:"max_records"`
	HashPrefilter   *bool   `json:"hash_prefilter"`
}

type statusResponse struct {
	SessionID string         `json:"session_id,omitempty"`
	State     *session.State `json:"state,omitempty"`
	Idle      bool           `json:"idle"`
}

// activeRun tracks the one session allowed at a time.
type activeRun struct {
	id     string
	runner *session.Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Server handles HTTP and WebSocket connections and owns the
// single-active-session policy.
type Server struct {
	cfg *config.Config

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	runMu  sync.Mutex
	active *activeRun

	// Injection points for tests; default to the real screen and disk.
	captureFor func(capture.Region) capture.Func
	files      storage.Store
}

// New creates a new server.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:        cfg,
		conns:      make(map[*websocket.Conn]struct{}),
		captureFor: capture.Screen,
		files:      storage.Disk{},
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/session/start", s.handleStart)
	mux.HandleFunc("POST /api/session/stop", s.handleStop)
	mux.HandleFunc("GET /api/session/status", s.handleStatus)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	cfg, err := s.sessionConfig(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id, err := s.startSession(cfg)
	if err != nil {
		if errors.IsCode(err, errors.CodeBusy) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}

	log.Info("session started", "session_id", id,
		"duration", cfg.Duration, "interval", cfg.Interval, "threshold", cfg.Threshold)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.stopSession() {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no active session"})
		return
	}
	trace.Logger(r.Context()).Info("session stop requested")
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.runMu.Lock()
	ar := s.active
	s.runMu.Unlock()

	if ar == nil {
		writeJSON(w, http.StatusOK, statusResponse{Idle: true})
		return
	}
	st := ar.runner.State()
	writeJSON(w, http.StatusOK, statusResponse{SessionID: ar.id, State: &st})
}

// sessionConfig merges request overrides onto the configured defaults.
func (s *Server) sessionConfig(req startRequest) (session.Config, error) {
	base := *s.cfg

	if req.OutputDir != "" {
		base.OutputDir = req.OutputDir
	}
	if req.DurationSeconds != 0 {
		base.Duration = req.DurationSeconds
	}
	if req.IntervalSeconds != 0 {
		base.Interval = req.IntervalSeconds
	}
	if req.Threshold != 0 {
		base.Threshold = req.Threshold
	}
	if req.Region != "" {
		base.Region = req.Region
	}
	if req.Policy != "" {
		base.Policy = req.Policy
	}
	if req.MaxRecords != 0 {
		base.MaxRecords = req.MaxRecords
	}
	if req.HashPrefilter != nil {
		base.HashPrefilter = *req.HashPrefilter
	}
	return base.Session()
}

// startSession admits one session at a time.
func (s *Server) startSession(cfg session.Config) (string, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.active != nil {
		return "", errors.New(errors.CodeBusy, "a session is already running")
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	runner := session.NewRunner(cfg, s.captureFor(cfg.Region), s.files, &broadcaster{srv: s, id: id})
	ar := &activeRun{id: id, runner: runner, cancel: cancel, done: make(chan struct{})}
	s.active = ar

	go func() {
		defer cancel()
		runner.Run(ctx)
		close(ar.done)

		s.runMu.Lock()
		if s.active == ar {
			s.active = nil
		}
		s.runMu.Unlock()
	}()
	return id, nil
}

// stopSession cancels the active run, if any.
func (s *Server) stopSession() bool {
	s.runMu.Lock()
	ar := s.active
	s.runMu.Unlock()

	if ar == nil {
		return false
	}
	ar.cancel()
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log := trace.Logger(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		if base.Type == "stop" {
			s.stopSession()
		}
	}
}

// broadcast pushes one event to every connected client.
func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.RUnlock()

	for _, conn := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
		_ = wsjson.Write(ctx, conn, msg)
		cancel()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// broadcaster relays session progress to WebSocket clients.
type broadcaster struct {
	srv *Server
	id  string
}

func (b *broadcaster) OnTick(st session.State) {
	b.srv.broadcast(TickMessage{Type: "tick", SessionID: b.id, State: st})
}

func (b *broadcaster) OnDecision(frame session.Frame, d session.Decision) {
	msg := DecisionMessage{
		Type:      "decision",
		SessionID: b.id,
		Seq:       frame.Seq,
		Outcome:   d.Kind.String(),
		MatchSeq:  d.MatchSeq,
		Score:     d.Score,
		Path:      d.Path,
	}
	if d.Err != nil {
		msg.Error = d.Err.Error()
	}
	b.srv.broadcast(msg)
}

func (b *broadcaster) OnSessionEnd(res session.Result) {
	b.srv.broadcast(EndMessage{
		Type:      "end",
		SessionID: b.id,
		Status:    res.Status.String(),
		Captured:  res.FramesCaptured,
		Kept:      res.FramesKept,
		Discarded: res.FramesDiscarded,
		Errors:    len(res.Errors),
	})
}

var _ session.Reporter = (*broadcaster)(nil)
