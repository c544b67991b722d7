package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageAudioChunk(t *testing.T) {
	raw := []byte(`{"type":"client_audio_chunk","session_id":"s1","seq":1,"pcm16_base64":"AQID","sample_rate":16000,"ts_ms":123}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	audio, ok := msg.(ClientAudioChunk)
	if !ok {
		t.Fatalf("message type = %T, want ClientAudioChunk", msg)
	}
	if audio.SessionID != "s1" || audio.SampleRate != 16000 {
		t.Fatalf("unexpected audio chunk: %+v", audio)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":"start_quiz"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != ActionStartQuiz {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsUnknownAction(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"client_control","action":"dance"}`))
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseClientMessageSTTResult(t *testing.T) {
	raw := []byte(`{"type":"stt_result","capture_id":"c1","is_final":true,"alternatives":[{"transcript":"I save every month","confidence":0.91},{"transcript":"I shave every month","confidence":0.4}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	res := msg.(STTResult)
	if !res.IsFinal || len(res.Alternatives) != 2 {
		t.Fatalf("unexpected stt_result: %+v", res)
	}
	if res.Alternatives[0].Transcript != "I save every month" {
		t.Fatalf("top alternative = %q", res.Alternatives[0].Transcript)
	}
}

func TestParseClientMessageRequiresIDs(t *testing.T) {
	cases := []string{
		`{"type":"stt_result","is_final":true}`,
		`{"type":"stt_error","error":"no-speech"}`,
		`{"type":"stt_end"}`,
		`{"type":"tts_end"}`,
		`{"type":"client_text","text":"   "}`,
		`{"type":"profile_update","key":"","value":1}`,
		`{"type":"client_audio_chunk","pcm16_base64":"","sample_rate":16000}`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) expected error", raw)
		}
	}
}

func TestParseClientMessageProfileUpdateKeepsValueType(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"profile_update","key":"income","value":45000}`))
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	upd := msg.(ProfileUpdate)
	if v, ok := upd.Value.(float64); !ok || v != 45000 {
		t.Fatalf("value = %#v, want float64 45000", upd.Value)
	}
}

func TestServerMessagesEncodeType(t *testing.T) {
	raw, err := json.Marshal(Status{Type: TypeStatus, SessionID: "s1", Text: "Listening...", DismissAfterMS: 5000})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if env.Type != TypeStatus {
		t.Fatalf("type = %q, want %q", env.Type, TypeStatus)
	}

	if got, ok := TypeOf(PersonaDetected{Type: TypePersonaDetected}); !ok || got != TypePersonaDetected {
		t.Fatalf("TypeOf() = %q, %v", got, ok)
	}
	if _, ok := TypeOf(42); ok {
		t.Fatal("TypeOf(42) should not be ok")
	}
}
