package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/fundora/internal/assistant"
	"github.com/ent0n29/fundora/internal/config"
	"github.com/ent0n29/fundora/internal/memory"
	"github.com/ent0n29/fundora/internal/observability"
	"github.com/ent0n29/fundora/internal/persona"
	"github.com/ent0n29/fundora/internal/session"
	"github.com/ent0n29/fundora/internal/voice"
)

type testServer struct {
	*httptest.Server
	store    *memory.Store
	sessions *session.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		VoiceProvider:            "mock",
		StoreBackend:             "memory",
		SpeechLanguage:           "en-IN",
		STTSampleRate:            16000,
		STTMaxAlternatives:       3,
		StatusDismissAfter:       10 * time.Second,
	}
	store := memory.NewStore(memory.NewInMemorySubstrate())
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics("test_httpapi")

	hubCfg := assistant.DefaultHubConfig()
	hubCfg.Assistant = assistant.Config{}
	hub := assistant.NewHub(store, nil, sessions, metrics, zerolog.Nop(), hubCfg)
	hub.SetEngines(assistant.MockEngines(voice.NewMockProvider()))

	srv := New(cfg, sessions, hub, store, metrics, zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: store, sessions: sessions}
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, url, err)
		}
	}
	return res.StatusCode
}

func TestCreateAndEndSession(t *testing.T) {
	ts := newTestServer(t)

	var created map[string]any
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/session", map[string]string{"user_id": "user-1"}, &created); code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", code, http.StatusCreated)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	if created["mode"] != "chat" || created["user_id"] != "user-1" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	var ended map[string]any
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/session/"+sessionID+"/end", nil, &ended); code != http.StatusOK {
		t.Fatalf("end status = %d, want %d", code, http.StatusOK)
	}
	if ended["status"] != "ended" {
		t.Fatalf("ended status = %v, want ended", ended["status"])
	}

	var missing errorResponse
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/session/nope/end", nil, &missing); code != http.StatusNotFound {
		t.Fatalf("end unknown status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestHealthReadyAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]any
	if code := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &health); code != http.StatusOK {
		t.Fatalf("healthz status = %d", code)
	}
	if health["store_backend"] != "memory" {
		t.Fatalf("store_backend = %v, want memory", health["store_backend"])
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, &map[string]any{}); code != http.StatusOK {
		t.Fatalf("readyz status = %d", code)
	}

	doJSON(t, http.MethodPost, ts.URL+"/v1/chat", map[string]string{"user_id": "u1", "text": "hello"}, &chatResponse{})
	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer res.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(res.Body)
	if !strings.Contains(body.String(), "test_httpapi_match_outcomes_total") {
		t.Fatalf("metrics body missing match outcomes series")
	}
}

func TestChatHistoryAndClear(t *testing.T) {
	ts := newTestServer(t)

	var reply chatResponse
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/chat", chatRequest{UserID: "u1", Text: "How do I create a budget?"}, &reply); code != http.StatusOK {
		t.Fatalf("chat status = %d", code)
	}
	if reply.Source != "knowledge" || reply.EntryID != "budget_basics" || !reply.Recorded {
		t.Fatalf("unexpected chat reply: %+v", reply)
	}

	var keyword chatResponse
	doJSON(t, http.MethodPost, ts.URL+"/v1/chat", chatRequest{UserID: "u1", Text: "any debt tips?"}, &keyword)
	if keyword.Source != "keyword" || keyword.Keyword != "debt" {
		t.Fatalf("unexpected keyword reply: %+v", keyword)
	}

	var history historyResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/history", nil, &history)
	if len(history.Entries) != 2 {
		t.Fatalf("history length = %d, want 2", len(history.Entries))
	}
	if history.Entries[0].UserInput != "How do I create a budget?" {
		t.Fatalf("oldest entry = %q", history.Entries[0].UserInput)
	}

	if code := doJSON(t, http.MethodDelete, ts.URL+"/v1/users/u1/history", nil, nil); code != http.StatusNoContent {
		t.Fatalf("clear status = %d, want %d", code, http.StatusNoContent)
	}
	history = historyResponse{}
	doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/history", nil, &history)
	if len(history.Entries) != 0 {
		t.Fatalf("history after clear = %d entries, want 0", len(history.Entries))
	}
}

func TestChatRejectsBlankText(t *testing.T) {
	ts := newTestServer(t)
	var errResp errorResponse
	if code := doJSON(t, http.MethodPost, ts.URL+"/v1/chat", chatRequest{UserID: "u1", Text: "  "}, &errResp); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", code, http.StatusBadRequest)
	}
}

func TestProfileAndPersonaEndpoints(t *testing.T) {
	ts := newTestServer(t)

	var profile map[string]any
	if code := doJSON(t, http.MethodPut, ts.URL+"/v1/users/u1/profile", map[string]any{"income": 50000, "goal": "house"}, &profile); code != http.StatusOK {
		t.Fatalf("put profile status = %d", code)
	}
	doJSON(t, http.MethodPut, ts.URL+"/v1/users/u1/profile", map[string]any{"goal": "car"}, &profile)
	profile = nil
	doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/profile", nil, &profile)
	if profile["goal"] != "car" || profile["income"] != float64(50000) {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	var errResp errorResponse
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/persona", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("persona status = %d, want %d", code, http.StatusNotFound)
	}
	if err := ts.store.SetPersona(context.Background(), "u1", persona.Avoider); err != nil {
		t.Fatalf("SetPersona() error = %v", err)
	}
	var summary personaSummary
	doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/persona", nil, &summary)
	if summary.ID != "avoider" || summary.Title != "Avoider" {
		t.Fatalf("unexpected persona summary: %+v", summary)
	}

	if code := doJSON(t, http.MethodDelete, ts.URL+"/v1/users/u1", nil, nil); code != http.StatusNoContent {
		t.Fatalf("forget status = %d, want %d", code, http.StatusNoContent)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/persona", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("persona after forget status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestListPersonas(t *testing.T) {
	ts := newTestServer(t)
	var payload struct {
		Personas []personaSummary `json:"personas"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/v1/personas", nil, &payload)
	if len(payload.Personas) != len(persona.All) {
		t.Fatalf("personas = %d, want %d", len(payload.Personas), len(persona.All))
	}
	if payload.Personas[0].ID != "guardian" {
		t.Fatalf("first persona = %q, want guardian", payload.Personas[0].ID)
	}
}

func TestOnboardingStatus(t *testing.T) {
	ts := newTestServer(t)

	var status onboardingStatusResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/onboarding", nil, &status)
	if status.NextStep != "persona_quiz" {
		t.Fatalf("next_step = %q, want persona_quiz", status.NextStep)
	}
	if status.VoiceProvider != "mock" || len(status.Checks) == 0 {
		t.Fatalf("unexpected onboarding status: %+v", status)
	}

	if err := ts.store.SetPersona(context.Background(), "u1", persona.Planner); err != nil {
		t.Fatalf("SetPersona() error = %v", err)
	}
	status = onboardingStatusResponse{}
	doJSON(t, http.MethodGet, ts.URL+"/v1/users/u1/onboarding", nil, &status)
	if status.NextStep != "chat" || status.Persona != "planner" {
		t.Fatalf("unexpected onboarding status after quiz: %+v", status)
	}
}

func TestSelectVoiceAndUISettings(t *testing.T) {
	ts := newTestServer(t)

	var selected selectVoiceResponse
	doJSON(t, http.MethodPost, ts.URL+"/v1/voices/select", map[string]any{"voices": []map[string]string{
		{"name": "Google Deutsch", "lang": "de-DE"},
		{"name": "Microsoft David", "lang": "en-US"},
		{"name": "Karen", "lang": "en-AU"},
	}}, &selected)
	if selected.Selected == nil || selected.Selected.Name != "Karen" {
		t.Fatalf("selected = %+v, want Karen", selected.Selected)
	}

	var settings uiSettingsResponse
	doJSON(t, http.MethodGet, ts.URL+"/v1/ui/settings", nil, &settings)
	if settings.StatusDismissAfterMS != 10000 || settings.SpeechLanguage != "en-IN" || settings.SpeechRate != 0.7 {
		t.Fatalf("unexpected ui settings: %+v", settings)
	}
}

func TestSessionWebSocketChatAndQuiz(t *testing.T) {
	ts := newTestServer(t)

	var created map[string]any
	doJSON(t, http.MethodPost, ts.URL+"/v1/session", map[string]string{"user_id": "ws-user"}, &created)
	sessionID, _ := created["session_id"].(string)

	var errResp errorResponse
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/session/"+sessionID+"/quiz", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("quiz before connect status = %d, want %d", code, http.StatusNotFound)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/session/ws?session_id=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	readUntil := func(msgType string) map[string]any {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("waiting for %s: %v", msgType, err)
			}
			if msg["type"] == msgType {
				return msg
			}
		}
	}

	readUntil("system_event")

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"client_unknown"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readUntil("error_event"); got["code"] != "invalid_client_message" {
		t.Fatalf("error code = %v, want invalid_client_message", got["code"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "client_text", "session_id": sessionID, "text": "How do I create a budget?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readUntil("assistant_reply")
	if reply["source"] != "knowledge" {
		t.Fatalf("reply source = %v, want knowledge", reply["source"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "client_control", "session_id": sessionID, "action": "start_quiz"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	detected := readUntil("persona_detected")
	if detected["persona"] != "guardian" {
		t.Fatalf("persona = %v, want guardian for keyword-free answers", detected["persona"])
	}

	var snap map[string]any
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/session/"+sessionID+"/quiz", nil, &snap); code != http.StatusOK {
		t.Fatalf("quiz snapshot status = %d", code)
	}
	if snap["state"] != "complete" {
		t.Fatalf("quiz state = %v, want complete", snap["state"])
	}

	p, err := ts.store.Persona(context.Background(), "ws-user")
	if err != nil || p != persona.Guardian {
		t.Fatalf("stored persona = %q, %v", p, err)
	}
}

func TestSessionWebSocketRequiresKnownSession(t *testing.T) {
	ts := newTestServer(t)

	var errResp errorResponse
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/session/ws", nil, &errResp); code != http.StatusBadRequest {
		t.Fatalf("missing session_id status = %d, want %d", code, http.StatusBadRequest)
	}
	if code := doJSON(t, http.MethodGet, ts.URL+"/v1/session/ws?session_id=nope", nil, &errResp); code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d, want %d", code, http.StatusNotFound)
	}
}

func TestUserRoutesWithoutHub(t *testing.T) {
	cfg := config.Config{SessionInactivityTimeout: 2 * time.Minute, StoreBackend: "memory"}
	store := memory.NewStore(memory.NewInMemorySubstrate())
	srv := New(cfg, session.NewManager(cfg.SessionInactivityTimeout), nil, store, observability.NewMetrics("test_nohub"), zerolog.Nop())
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	routes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/v1/users/u1/history", nil},
		{http.MethodDelete, "/v1/users/u1/history", nil},
		{http.MethodGet, "/v1/users/u1/profile", nil},
		{http.MethodPut, "/v1/users/u1/profile", map[string]any{"goal": "house"}},
		{http.MethodGet, "/v1/users/u1/persona", nil},
		{http.MethodGet, "/v1/users/u1/onboarding", nil},
		{http.MethodDelete, "/v1/users/u1", nil},
		{http.MethodPost, "/v1/chat", chatRequest{UserID: "u1", Text: "hello"}},
	}
	for _, rt := range routes {
		var errResp errorResponse
		if code := doJSON(t, rt.method, ts.URL+rt.path, rt.body, &errResp); code != http.StatusNotImplemented {
			t.Fatalf("%s %s status = %d, want %d", rt.method, rt.path, code, http.StatusNotImplemented)
		}
		if errResp.Code != "unavailable" {
			t.Fatalf("%s %s code = %q, want unavailable", rt.method, rt.path, errResp.Code)
		}
	}
}
