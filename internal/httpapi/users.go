package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/fundora/internal/memory"
	"github.com/ent0n29/fundora/internal/persona"
)

type chatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type chatResponse struct {
	UserID   string `json:"user_id"`
	Reply    string `json:"reply"`
	Source   string `json:"source"`
	EntryID  string `json:"entry_id,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
	Score    int    `json:"score"`
	Persona  string `json:"persona,omitempty"`
	Recorded bool   `json:"recorded"`
}

type historyResponse struct {
	UserID  string                     `json:"user_id"`
	Entries []memory.ConversationEntry `json:"entries"`
}

type personaSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Headline    string   `json:"headline"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
}

func summarize(p persona.Persona) personaSummary {
	return personaSummary{
		ID:          p.String(),
		Title:       p.Title(),
		Headline:    p.Headline(),
		Description: p.Description(),
		Keywords:    p.Keywords(),
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = "anonymous"
	}
	a, ok := s.assistantFor(w, userID)
	if !ok {
		return
	}

	res, err := a.Respond(r.Context(), req.Text)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("chat turn not recorded")
	}
	respondJSON(w, http.StatusOK, chatResponse{
		UserID:   userID,
		Reply:    res.Reply,
		Source:   string(res.Source),
		EntryID:  res.EntryID,
		Keyword:  res.Keyword,
		Score:    res.Score,
		Persona:  res.Persona.String(),
		Recorded: err == nil,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	a, ok := s.assistantFor(w, userID)
	if !ok {
		return
	}
	entries, err := a.History(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if entries == nil {
		entries = []memory.ConversationEntry{}
	}
	respondJSON(w, http.StatusOK, historyResponse{UserID: userID, Entries: entries})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assistantFor(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := a.ClearHistory(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assistantFor(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	profile, err := a.Profile(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// handleUpdateProfile merges every key of the request object into the profile.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(patch) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "profile patch is empty")
		return
	}

	a, ok := s.assistantFor(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var profile memory.UserProfile
	for key, value := range patch {
		var err error
		profile, err = a.UpdateProfile(r.Context(), key, value)
		if errors.Is(err, memory.ErrEmptyProfileKey) {
			respondError(w, http.StatusBadRequest, "invalid_profile_key", err.Error())
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "store_error", err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handlePersona(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assistantFor(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	p, err := a.Persona(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if !p.Valid() {
		respondError(w, http.StatusNotFound, "persona_not_set", "no persona detected yet")
		return
	}
	respondJSON(w, http.StatusOK, summarize(p))
}

func (s *Server) handleForgetUser(w http.ResponseWriter, r *http.Request) {
	a, ok := s.assistantFor(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	if err := a.Forget(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	out := make([]personaSummary, 0, len(persona.All))
	for _, p := range persona.All {
		out = append(out, summarize(p))
	}
	respondJSON(w, http.StatusOK, map[string]any{"personas": out})
}
