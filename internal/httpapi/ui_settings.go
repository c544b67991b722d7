package httpapi

import (
	"net/http"

	"github.com/ent0n29/fundora/internal/voice"
)

// uiSettingsResponse is what the browser needs to run its speech engines.
type uiSettingsResponse struct {
	VoiceProvider        string  `json:"voice_provider"`
	StatusDismissAfterMS int64   `json:"status_dismiss_after_ms"`
	SpeechLanguage       string  `json:"speech_language"`
	SampleRate           int     `json:"sample_rate"`
	MaxAlternatives      int     `json:"max_alternatives"`
	SpeechRate           float64 `json:"speech_rate"`
	SpeechPitch          float64 `json:"speech_pitch"`
	SpeechVolume         float64 `json:"speech_volume"`
}

func (s *Server) handleUISettings(w http.ResponseWriter, _ *http.Request) {
	speech := voice.DefaultSpeechSettings()
	respondJSON(w, http.StatusOK, uiSettingsResponse{
		VoiceProvider:        s.cfg.VoiceProvider,
		StatusDismissAfterMS: s.cfg.StatusDismissAfter.Milliseconds(),
		SpeechLanguage:       s.cfg.SpeechLanguage,
		SampleRate:           s.cfg.STTSampleRate,
		MaxAlternatives:      s.cfg.STTMaxAlternatives,
		SpeechRate:           speech.Rate,
		SpeechPitch:          speech.Pitch,
		SpeechVolume:         speech.Volume,
	})
}
