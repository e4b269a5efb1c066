// Package webapi exposes the command pipeline over local HTTP, plus a
// websocket feed of task events.
package webapi

import (
	"context"
	"encoding/json"
	"net/http"

	"taskpilot/cli/internal/historydb"
	"taskpilot/cli/internal/model"
	"taskpilot/cli/internal/taskstore"
)

// Executor runs one free-text command and returns the human reply.
type Executor interface {
	HandleText(ctx context.Context, chatID int64, source, text string) string
	HandleVoice(ctx context.Context, chatID int64, source string, audio []byte) string
}

type TaskLister interface {
	List(ctx context.Context, cmd model.Command) ([]taskstore.Task, model.Result, error)
}

type ProjectLister interface {
	Projects(ctx context.Context) ([]taskstore.Project, error)
}

type HistoryReader interface {
	List(chatID int64, limit int) ([]historydb.Entry, error)
}

type Deps struct {
	Executor Executor
	Tasks    TaskLister
	Projects ProjectLister
	History  HistoryReader
}

type Server struct {
	deps Deps
	mux  *http.ServeMux
	hub  *WSHub
}

func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux(), hub: NewWSHub()}
	s.registerCommandRoutes()
	s.registerTaskRoutes()
	s.registerHistoryRoutes()
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.hub.HandleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// PublishEvent pushes a task event to all websocket listeners.
func (s *Server) PublishEvent(topic, taskID string, payload map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(topic, taskID, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, map[string]any{"status": "ok"})
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "data": data})
}

func respondError(w http.ResponseWriter, code int, errCode string, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": map[string]any{"code": errCode, "message": msg}})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
