package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	UserID        string            `json:"user_id"`
	VoiceProvider string            `json:"voice_provider"`
	StoreBackend  string            `json:"store_backend"`
	Persona       string            `json:"persona,omitempty"`
	NextStep      string            `json:"next_step"` // persona_quiz|chat
	Checks        []onboardingCheck `json:"checks"`
}

// handleOnboardingStatus reports how far a user is through onboarding. The
// persona quiz gates progression to chat.
func (s *Server) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	a, ok := s.assistantFor(w, userID)
	if !ok {
		return
	}

	voiceProvider := strings.ToLower(strings.TrimSpace(s.cfg.VoiceProvider))
	if voiceProvider == "" {
		voiceProvider = "auto"
	}
	resp := onboardingStatusResponse{
		UserID:        userID,
		VoiceProvider: voiceProvider,
		StoreBackend:  s.cfg.StoreBackend,
		NextStep:      "persona_quiz",
		Checks:        make([]onboardingCheck, 0, 5),
	}

	resp.Checks = append(resp.Checks, onboardingCheck{
		ID:     "voice_provider",
		Status: "ok",
		Label:  "Voice backend",
		Detail: voiceProvider,
	})
	if voiceProvider == "mock" {
		resp.Checks[len(resp.Checks)-1].Status = "warn"
		resp.Checks[len(resp.Checks)-1].Fix = "Set VOICE_PROVIDER=bridge to use the browser's speech engines."
	}

	switch s.cfg.StoreBackend {
	case "memory":
		resp.Checks = append(resp.Checks, onboardingCheck{
			ID:     "store",
			Status: "warn",
			Label:  "Conversation storage",
			Detail: "in-memory only",
			Fix:    "Set STORE_BACKEND=sqlite (or DATABASE_URL / REDIS_ADDR) to keep history across restarts.",
		})
	default:
		resp.Checks = append(resp.Checks, onboardingCheck{
			ID:     "store",
			Status: "ok",
			Label:  "Conversation storage",
			Detail: s.cfg.StoreBackend,
		})
	}

	p, err := a.Persona(r.Context())
	switch {
	case err != nil:
		resp.Checks = append(resp.Checks, onboardingCheck{
			ID:     "persona",
			Status: "error",
			Label:  "Money persona",
			Detail: err.Error(),
		})
	case p.Valid():
		resp.Persona = p.String()
		resp.NextStep = "chat"
		resp.Checks = append(resp.Checks, onboardingCheck{
			ID:     "persona",
			Status: "ok",
			Label:  "Money persona",
			Detail: p.Headline(),
		})
	default:
		resp.Checks = append(resp.Checks, onboardingCheck{
			ID:     "persona",
			Status: "warn",
			Label:  "Money persona",
			Detail: "not detected",
			Fix:    "Take the Money Persona Quiz.",
		})
	}

	if profile, err := a.Profile(r.Context()); err == nil {
		check := onboardingCheck{ID: "profile", Status: "ok", Label: "Profile", Detail: fmt.Sprintf("%d facts", len(profile))}
		if len(profile) == 0 {
			check.Status = "warn"
			check.Fix = "Tell the assistant about your income or goals."
		}
		resp.Checks = append(resp.Checks, check)
	}

	respondJSON(w, http.StatusOK, resp)
}
