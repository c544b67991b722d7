package httpapi

import (
	"net/http"

	"github.com/ent0n29/fundora/internal/protocol"
	"github.com/ent0n29/fundora/internal/voice"
)

type selectVoiceRequest struct {
	Voices []protocol.VoiceInfo `json:"voices"`
}

type selectVoiceResponse struct {
	Selected *protocol.VoiceInfo `json:"selected"`
}

// handleSelectVoice applies the synthesis voice preference to a list a
// client reports. A null selection means the engine default.
func (s *Server) handleSelectVoice(w http.ResponseWriter, r *http.Request) {
	var req selectVoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	voices := make([]voice.Voice, 0, len(req.Voices))
	for _, v := range req.Voices {
		voices = append(voices, voice.Voice{Name: v.Name, Lang: v.Lang, Default: v.Default})
	}
	var resp selectVoiceResponse
	if v := voice.SelectVoice(voices); v != nil {
		resp.Selected = &protocol.VoiceInfo{Name: v.Name, Lang: v.Lang, Default: v.Default}
	}
	respondJSON(w, http.StatusOK, resp)
}
