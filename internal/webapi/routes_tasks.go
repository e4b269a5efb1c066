package webapi

import (
	"net/http"
	"strconv"

	"taskpilot/cli/internal/model"
)

func (s *Server) registerTaskRoutes() {
	s.mux.HandleFunc("/api/v1/tasks", s.handleListTasks)
	s.mux.HandleFunc("/api/v1/projects", s.handleListProjects)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "GET required")
		return
	}
	cmd := model.Command{
		Action:      model.ActionListTasks,
		ProjectName: r.URL.Query().Get("project"),
	}
	tasks, res, err := s.deps.Tasks.List(r.Context(), cmd)
	if err != nil {
		respondError(w, http.StatusBadGateway, "LIST_FAILED", err.Error())
		return
	}
	respondOK(w, map[string]any{"tasks": tasks, "warnings": res.Warnings})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "GET required")
		return
	}
	projects, err := s.deps.Projects.Projects(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "PROJECTS_FAILED", err.Error())
		return
	}
	respondOK(w, map[string]any{"projects": projects})
}

func (s *Server) registerHistoryRoutes() {
	s.mux.HandleFunc("/api/v1/history", s.handleHistory)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "GET required")
		return
	}
	if s.deps.History == nil {
		respondOK(w, map[string]any{"entries": []any{}})
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.deps.History.List(0, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "HISTORY_FAILED", err.Error())
		return
	}
	respondOK(w, map[string]any{"entries": entries})
}
