// Package web provides the browser shell for the storage assistant.
//
// Each browser session gets its own agent bound to the credentials the
// session was started with. Credentials are immutable for the life of a
// session: submitting new ones starts a fresh session with an empty
// transcript.
package web

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/richinex/bucketeer/agent"
	"github.com/richinex/bucketeer/bucket"
	"github.com/richinex/bucketeer/llm"
	"github.com/richinex/bucketeer/storage"
)

const sessionCookie = "bucketeer_session"

// SessionConfig carries the credentials a session is bound to. Empty
// fields fall back to the server's environment configuration.
type SessionConfig struct {
	Bucket    bucket.Config
	LLMAPIKey string
}

// AgentFactory builds an agent bound to the given session credentials.
// Injected so tests can run the server without AWS or an LLM.
type AgentFactory func(ctx context.Context, cfg SessionConfig) (*agent.Agent, error)

// session is one browser conversation. The mutex serializes agent runs
// so concurrent requests from the same browser cannot interleave their
// transcripts.
type session struct {
	mu      sync.Mutex
	agent   *agent.Agent
	history []llm.ChatMessage
}

// Server serves the chat UI and its JSON API.
type Server struct {
	logger  *zap.Logger
	factory AgentFactory
	store   storage.ConversationStorage

	mu       sync.RWMutex
	sessions map[string]*session

	router chi.Router
}

// NewServer creates a web server around the given agent factory.
func NewServer(logger *zap.Logger, factory AgentFactory, store storage.ConversationStorage) *Server {
	if store == nil {
		store = storage.NewInMemoryStorage()
	}

	s := &Server{
		logger:   logger,
		factory:  factory,
		store:    store,
		sessions: make(map[string]*session),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/api/session", s.handleNewSession)
	r.Post("/api/chat", s.handleChat)
	r.Get("/api/history", s.handleHistory)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web shell listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		s.logger.Error("failed to render index", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "healthy"})
}

// newSessionRequest carries optional credentials for a session. Empty
// storage fields mean the SDK default credential chain; an empty LLM key
// means the server's environment key.
type newSessionRequest struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	LLMAPIKey       string `json:"llm_api_key"`
}

// handleNewSession starts a fresh session with the submitted credentials.
// Any existing session for this browser is discarded.
func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	cfg := SessionConfig{
		Bucket: bucket.Config{
			AccessKeyID:     req.AccessKeyID,
			SecretAccessKey: req.SecretAccessKey,
			SessionToken:    req.SessionToken,
			Region:          req.Region,
			Endpoint:        req.Endpoint,
		},
		LLMAPIKey: req.LLMAPIKey,
	}

	a, err := s.factory(r.Context(), cfg)
	if err != nil {
		s.logger.Error("failed to create agent", zap.Error(err))
		http.Error(w, "failed to start session", http.StatusInternalServerError)
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	if prev := s.currentSessionID(r); prev != "" {
		delete(s.sessions, prev)
	}
	s.sessions[id] = &session{agent: a}
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session_id": id})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Kind  string `json:"kind"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sess, id := s.sessionFor(r)
	if sess == nil {
		http.Error(w, "no active session, start one first", http.StatusUnauthorized)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	// One agent run at a time per session.
	sess.mu.Lock()
	defer sess.mu.Unlock()

	response := sess.agent.ExecuteWithHistory(r.Context(), req.Message, sess.history)

	var resp chatResponse
	switch response.Type {
	case agent.ResponseSuccess:
		resp = chatResponse{Reply: response.Result, Kind: "answer"}
		sess.history = append(sess.history,
			llm.UserMessage(req.Message),
			llm.AssistantMessage(response.Result),
		)
		if err := s.store.Save(r.Context(), id, sess.history); err != nil {
			s.logger.Warn("failed to persist transcript", zap.Error(err))
		}
	case agent.ResponseLoopExceeded:
		resp = chatResponse{Reply: response.PartialResult, Kind: "loop_exceeded"}
	default:
		resp = chatResponse{Reply: response.Error, Kind: "error"}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.sessionFor(r)
	if sess == nil {
		http.Error(w, "no active session", http.StatusUnauthorized)
		return
	}

	sess.mu.Lock()
	history := make([]llm.ChatMessage, len(sess.history))
	copy(history, sess.history)
	sess.mu.Unlock()

	writeJSON(w, http.StatusOK, history)
}

// sessionFor resolves the browser's session from its cookie.
func (s *Server) sessionFor(r *http.Request) (*session, string) {
	id := s.currentSessionID(r)
	if id == "" {
		return nil, ""
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id], id
}

func (s *Server) currentSessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Bucketeer</title>
<style>
body { font-family: sans-serif; max-width: 760px; margin: 2em auto; }
#log { border: 1px solid #ccc; padding: 1em; height: 420px; overflow-y: auto; }
.user { color: #205080; margin: .4em 0; }
.assistant { color: #222; margin: .4em 0; }
.error { color: #a02020; margin: .4em 0; }
#creds { border: 1px solid #ddd; padding: 1em; margin-bottom: 1em; }
#creds input { width: 100%; margin-bottom: .4em; }
#msg { width: 80%; }
</style>
</head>
<body>
<h1>Bucketeer</h1>
<details id="creds">
<summary>Credentials (starts a new session)</summary>
<input id="access_key" placeholder="Access key ID (empty for default chain)">
<input id="secret_key" placeholder="Secret access key" type="password">
<input id="region" placeholder="Region (default us-east-1)">
<input id="endpoint" placeholder="Custom endpoint (optional)">
<input id="llm_key" placeholder="LLM API key (empty for server default)" type="password">
</details>
<button id="start">Start session</button>
<div id="log"></div>
<input id="msg" placeholder="Ask about your buckets...">
<button id="send">Send</button>
<script>
const log = document.getElementById("log");
function append(cls, text) {
  const div = document.createElement("div");
  div.className = cls;
  div.textContent = text;
  log.appendChild(div);
  log.scrollTop = log.scrollHeight;
}
document.getElementById("start").onclick = async () => {
  const body = {
    access_key_id: document.getElementById("access_key").value,
    secret_access_key: document.getElementById("secret_key").value,
    region: document.getElementById("region").value,
    endpoint: document.getElementById("endpoint").value,
    llm_api_key: document.getElementById("llm_key").value
  };
  const res = await fetch("/api/session", {method: "POST", body: JSON.stringify(body)});
  log.innerHTML = "";
  append(res.ok ? "assistant" : "error", res.ok ? "Session started." : "Failed to start session.");
};
document.getElementById("send").onclick = async () => {
  const msg = document.getElementById("msg").value.trim();
  if (!msg) return;
  document.getElementById("msg").value = "";
  append("user", msg);
  const res = await fetch("/api/chat", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({message: msg})
  });
  if (!res.ok) { append("error", await res.text()); return; }
  const data = await res.json();
  append(data.kind === "answer" ? "assistant" : "error", data.reply);
};
document.getElementById("msg").addEventListener("keydown", e => {
  if (e.key === "Enter") document.getElementById("send").click();
});
</script>
</body>
</html>
`))
