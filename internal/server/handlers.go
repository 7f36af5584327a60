package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"promptcanvas/internal/dispatch"
	"promptcanvas/internal/scene"
	"promptcanvas/internal/tools"
)

// SessionHeader carries the conversation id when the body has none.
const SessionHeader = "X-Session-ID"

type promptRequest struct {
	Text      string          `json:"text"`
	State     json.RawMessage `json:"state"`
	SessionID string          `json:"session_id,omitempty"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body promptRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.logger.Debug("Rejecting malformed prompt body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, scene.TurnFailure(scene.ErrBadCall))
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusBadRequest, scene.TurnFailure(scene.ErrBadCall))
		return
	}

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}

	result, err := s.turns.HandlePrompt(r.Context(), dispatch.PromptRequest{
		SessionID: sessionID,
		Text:      body.Text,
		State:     body.State,
	})
	if err != nil {
		code := scene.ErrModelUnavailable
		var coded *scene.CodedError
		if errors.As(err, &coded) {
			code = coded.Code
		}
		s.logger.Warn("Turn failed", zap.String("session", sessionID), zap.String("code", string(code)), zap.Error(err))
		writeJSON(w, statusFor(code), scene.TurnFailure(code))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// statusFor maps infrastructure failures to HTTP statuses. Turn results,
// errors included, are always 200.
func statusFor(code scene.ErrorCode) int {
	switch code {
	case scene.ErrBadCall:
		return http.StatusBadRequest
	case scene.ErrModelUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "tools": s.registry.Count()})
}

// ToolInfo is one entry of the /tools catalog.
type ToolInfo struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description" yaml:"description"`
	Category    string           `json:"category" yaml:"category"`
	Parameters  tools.ToolSchema `json:"parameters" yaml:"parameters"`
}

// Catalog lists the registry's tools in declaration order.
func Catalog(registry *tools.Registry) []ToolInfo {
	all := registry.All()
	out := make([]ToolInfo, 0, len(all))
	for _, t := range all {
		out = append(out, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			Category:    string(t.Category),
			Parameters:  t.Schema,
		})
	}
	return out
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": Catalog(s.registry)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
