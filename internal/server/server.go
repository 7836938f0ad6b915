// Package server exposes conversations over a local HTTP and WebSocket
// API. The REST surface covers conversation CRUD, sends, resets, model
// switches, and exports; the WebSocket surface streams reply chunks.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sagalabs/saga/internal/ai"
	"github.com/sagalabs/saga/internal/chat"
	"github.com/sagalabs/saga/internal/httputil"
	"github.com/sagalabs/saga/internal/logging"
	"github.com/sagalabs/saga/internal/store"
)

// Options configures the listener and its request policies.
type Options struct {
	Addr           string
	Token          string // empty disables auth (local use)
	RateLimit      int    // requests per minute per client, 0 disables
	AllowedOrigins []string
}

// Server serves the conversation API.
type Server struct {
	opts Options
	hub  *Hub
	srv  *http.Server
}

// New builds a server around hub.
func New(hub *Hub, opts Options) *Server {
	s := &Server{opts: opts, hub: hub}
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	logging.Infof("API listening on %s", s.opts.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors(s.opts.AllowedOrigins))
	if s.opts.RateLimit > 0 {
		r.Use(rateLimit(s.opts.RateLimit))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		if s.opts.Token != "" {
			r.Use(tokenAuth(s.opts.Token))
		}
		r.Get("/models", s.handleModels)
		r.Get("/conversations", s.handleListConversations)
		r.Post("/conversations", s.handleCreateConversation)
		r.Route("/conversations/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetConversation)
			r.Delete("/", s.handleDeleteConversation)
			r.Get("/turns", s.handleTurns)
			r.Post("/messages", s.handleSend)
			r.Post("/reset", s.handleReset)
			r.Put("/model", s.handleSetModel)
			r.Get("/export", s.handleExport)
			r.Get("/ws", s.handleWS)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.OkJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	type providerModels struct {
		Provider string   `json:"provider"`
		Default  string   `json:"default"`
		Models   []string `json:"models,omitempty"`
	}
	var out []providerModels
	for _, p := range ai.Providers() {
		out = append(out, providerModels{
			Provider: p,
			Default:  ai.DefaultModelFor(p),
			Models:   ai.SupportedModels(p),
		})
	}
	httputil.OkJSON(w, out)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.hub.Store().ListConversations(r.Context())
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	if list == nil {
		list = []store.Conversation{}
	}
	httputil.OkJSON(w, list)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Model string `json:"model"`
	}
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	conv, err := s.hub.Store().CreateConversation(r.Context(), req.Title, req.Model)
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.hub.Store().GetConversation(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.OkJSON(w, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathVar(r, "id")
	if err := s.hub.Store().DeleteConversation(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.hub.Forget(id)
	httputil.OkJSON(w, map[string]bool{"deleted": true})
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := s.hub.Store().LoadTurns(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	if turns == nil {
		turns = []chat.Turn{}
	}
	httputil.OkJSON(w, turns)
}

type sendResponse struct {
	Reply   string        `json:"reply"`
	State   chat.State    `json:"state"`
	Turns   int           `json:"turns"`
	Notices []chat.Notice `json:"notices,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	id := httputil.PathVar(r, "id")
	var notices []chat.Notice
	reply, err := s.hub.Send(r.Context(), id, req.Text, nil, func(n chat.Notice) {
		notices = append(notices, n)
	})
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "")
		return
	}
	if err != nil {
		httputil.ErrorWithKind(w, statusForError(err), string(ai.KindOf(err)), err.Error())
		return
	}

	conv, err := s.hub.Conversation(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}
	httputil.OkJSON(w, sendResponse{
		Reply:   reply,
		State:   conv.State(),
		Turns:   conv.TurnCount(),
		Notices: notices,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathVar(r, "id")
	if err := s.hub.Reset(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, "")
			return
		}
		httputil.ErrorWithKind(w, statusForError(err), string(ai.KindOf(err)), err.Error())
		return
	}
	httputil.OkJSON(w, map[string]bool{"reset": true})
}

func (s *Server) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string `json:"model"`
	}
	if err := httputil.Parse(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	id := httputil.PathVar(r, "id")
	if err := s.hub.SetModel(r.Context(), id, req.Model); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputil.NotFound(w, "")
			return
		}
		httputil.ErrorWithKind(w, http.StatusBadRequest, string(ai.KindOf(err)), err.Error())
		return
	}
	httputil.OkJSON(w, map[string]string{"model": req.Model})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := httputil.PathVar(r, "id")
	format := httputil.QueryString(r, "format", chat.FormatCSV)

	meta, err := s.hub.Store().GetConversation(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	turns, err := s.hub.Store().LoadTurns(r.Context(), id)
	if err != nil {
		httputil.InternalError(w, err.Error())
		return
	}

	switch format {
	case chat.FormatCSV, "":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	case chat.FormatMarkdown, "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	case chat.FormatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	default:
		httputil.ErrorWithCode(w, http.StatusBadRequest, "unknown export format "+format)
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename="+chat.ExportFilename(format, time.Now()))
	if err := chat.Export(w, format, meta.Title, turns); err != nil {
		logging.Errorf("export failed: %v", err)
	}
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch ai.KindOf(err) {
	case ai.KindQuota:
		return http.StatusTooManyRequests
	case ai.KindAuth:
		return http.StatusUnauthorized
	case ai.KindSessionInit, ai.KindAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		httputil.NotFound(w, "")
		return
	}
	httputil.InternalError(w, err.Error())
}
