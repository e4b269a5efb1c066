package webapi

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func (s *Server) registerCommandRoutes() {
	s.mux.HandleFunc("/api/v1/command", s.handleCommand)
	s.mux.HandleFunc("/api/v1/voice", s.handleVoice)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required")
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "text is required")
		return
	}

	requestID := uuid.NewString()
	reply := s.deps.Executor.HandleText(r.Context(), 0, "web", req.Text)
	s.PublishEvent("command.executed", "", map[string]any{"request_id": requestID, "text": req.Text, "reply": reply})
	respondOK(w, map[string]any{"request_id": requestID, "reply": reply})
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "POST required")
		return
	}
	var req struct {
		Audio string `json:"audio"` // base64
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 20<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	audio, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil || len(audio) == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PAYLOAD", "audio must be non-empty base64")
		return
	}

	reply := s.deps.Executor.HandleVoice(r.Context(), 0, "web", audio)
	respondOK(w, map[string]any{"reply": reply})
}
