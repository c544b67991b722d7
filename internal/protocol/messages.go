package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MessageType identifies websocket payload variants.
type MessageType string

// Browser -> core.
const (
	TypeClientControl    MessageType = "client_control"
	TypeClientText       MessageType = "client_text"
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientVoices     MessageType = "client_voices"
	TypeSTTResult        MessageType = "stt_result"
	TypeSTTError         MessageType = "stt_error"
	TypeSTTEnd           MessageType = "stt_end"
	TypeTTSEnd           MessageType = "tts_end"
	TypeProfileUpdate    MessageType = "profile_update"
)

// Core -> browser.
const (
	TypeCaptureStart    MessageType = "capture_start"
	TypeCaptureStop     MessageType = "capture_stop"
	TypeSpeak           MessageType = "speak"
	TypeSpeechCancel    MessageType = "speech_cancel"
	TypeStatus          MessageType = "status"
	TypePersonaDetected MessageType = "persona_detected"
	TypeAssistantReply  MessageType = "assistant_reply"
	TypeSystemEvent     MessageType = "system_event"
	TypeErrorEvent      MessageType = "error_event"
)

// Control actions carried by client_control.
const (
	ActionListen       = "listen"
	ActionStopListen   = "stop_listening"
	ActionStartQuiz    = "start_quiz"
	ActionClearHistory = "clear_history"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type ClientText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

type VoiceInfo struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// ClientVoices reports the synthesis voices the browser engine offers.
type ClientVoices struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Voices    []VoiceInfo `json:"voices"`
}

type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// STTResult carries one recognition result, ranked alternatives first-best.
type STTResult struct {
	Type         MessageType   `json:"type"`
	SessionID    string        `json:"session_id"`
	CaptureID    string        `json:"capture_id"`
	IsFinal      bool          `json:"is_final"`
	Alternatives []Alternative `json:"alternatives"`
}

type STTError struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	CaptureID string      `json:"capture_id"`
	Error     string      `json:"error"`
	Message   string      `json:"message,omitempty"`
}

type STTEnd struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	CaptureID string      `json:"capture_id"`
}

type TTSEnd struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
	Error       string      `json:"error,omitempty"`
}

type ProfileUpdate struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Key       string      `json:"key"`
	Value     any         `json:"value"`
}

type CaptureStart struct {
	Type            MessageType `json:"type"`
	SessionID       string      `json:"session_id"`
	CaptureID       string      `json:"capture_id"`
	Lang            string      `json:"lang"`
	Continuous      bool        `json:"continuous"`
	InterimResults  bool        `json:"interim_results"`
	MaxAlternatives int         `json:"max_alternatives"`
}

type CaptureStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	CaptureID string      `json:"capture_id"`
	Abort     bool        `json:"abort,omitempty"`
}

type Speak struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
	Text        string      `json:"text"`
	VoiceName   string      `json:"voice_name,omitempty"`
	VoiceLang   string      `json:"voice_lang,omitempty"`
	Rate        float64     `json:"rate"`
	Pitch       float64     `json:"pitch"`
	Volume      float64     `json:"volume"`
	Lang        string      `json:"lang"`
}

type SpeechCancel struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	UtteranceID string      `json:"utterance_id"`
}

// Status is a transient line of text for the UI; it should be hidden after
// DismissAfterMS of inactivity.
type Status struct {
	Type           MessageType `json:"type"`
	SessionID      string      `json:"session_id"`
	Text           string      `json:"text"`
	DismissAfterMS int64       `json:"dismiss_after_ms"`
}

type PersonaDetected struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Persona     string      `json:"persona"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

type AssistantReply struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	UserInput string      `json:"user_input"`
	Reply     string      `json:"reply"`
	Source    string      `json:"source"`
}

type SystemEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Detail    string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		switch msg.Action {
		case ActionListen, ActionStopListen, ActionStartQuiz, ActionClearHistory:
		default:
			return nil, fmt.Errorf("invalid client_control action %q", msg.Action)
		}
		return msg, nil
	case TypeClientText:
		var msg ClientText
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, errors.New("invalid client_text")
		}
		return msg, nil
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientVoices:
		var msg ClientVoices
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeSTTResult:
		var msg STTResult
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CaptureID == "" {
			return nil, errors.New("invalid stt_result")
		}
		return msg, nil
	case TypeSTTError:
		var msg STTError
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CaptureID == "" {
			return nil, errors.New("invalid stt_error")
		}
		return msg, nil
	case TypeSTTEnd:
		var msg STTEnd
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.CaptureID == "" {
			return nil, errors.New("invalid stt_end")
		}
		return msg, nil
	case TypeTTSEnd:
		var msg TTSEnd
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.UtteranceID == "" {
			return nil, errors.New("invalid tts_end")
		}
		return msg, nil
	case TypeProfileUpdate:
		var msg ProfileUpdate
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Key) == "" {
			return nil, errors.New("invalid profile_update")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf reports the message type of any protocol struct.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientControl:
		return m.Type, true
	case ClientText:
		return m.Type, true
	case ClientAudioChunk:
		return m.Type, true
	case ClientVoices:
		return m.Type, true
	case STTResult:
		return m.Type, true
	case STTError:
		return m.Type, true
	case STTEnd:
		return m.Type, true
	case TTSEnd:
		return m.Type, true
	case ProfileUpdate:
		return m.Type, true
	case CaptureStart:
		return m.Type, true
	case CaptureStop:
		return m.Type, true
	case Speak:
		return m.Type, true
	case SpeechCancel:
		return m.Type, true
	case Status:
		return m.Type, true
	case PersonaDetected:
		return m.Type, true
	case AssistantReply:
		return m.Type, true
	case SystemEvent:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
