package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/fundora/internal/memory"
	"github.com/ent0n29/fundora/internal/observability"
	"github.com/ent0n29/fundora/internal/persona"
	"github.com/ent0n29/fundora/internal/protocol"
	"github.com/ent0n29/fundora/internal/quiz"
	"github.com/ent0n29/fundora/internal/session"
	"github.com/ent0n29/fundora/internal/voice"
)

type hubHarness struct {
	hub      *Hub
	store    *memory.Store
	sessions *session.Manager
	sess     *session.Session
	inbound  chan any
	outbound chan any
	done     chan error
	cancel   context.CancelFunc
}

func startHub(t *testing.T, engines EngineFactory) *hubHarness {
	t.Helper()
	store := memory.NewStore(memory.NewInMemorySubstrate())
	sessions := session.NewManager(time.Minute)
	cfg := DefaultHubConfig()
	cfg.Assistant = Config{}

	h := NewHub(store, nil, sessions, observability.NewMetrics("fundora_test"), zerolog.Nop(), cfg)
	if engines != nil {
		h.SetEngines(engines)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hh := &hubHarness{
		hub:      h,
		store:    store,
		sessions: sessions,
		sess:     sessions.Create("u1"),
		inbound:  make(chan any, 16),
		outbound: make(chan any, 256),
		done:     make(chan error, 1),
		cancel:   cancel,
	}
	go func() { hh.done <- h.RunConnection(ctx, hh.sess, hh.inbound, hh.outbound) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-hh.done:
		case <-time.After(2 * time.Second):
			t.Error("RunConnection did not return")
		}
	})
	return hh
}

func waitFor[T any](t *testing.T, outbound <-chan any) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-outbound:
			if m, ok := msg.(T); ok {
				return m
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestHubAnswersTypedText(t *testing.T) {
	hh := startHub(t, MockEngines(voice.NewMockProvider()))
	ready := waitFor[protocol.SystemEvent](t, hh.outbound)
	assert.Equal(t, "session_ready", ready.Code)

	hh.inbound <- protocol.ClientText{Type: protocol.TypeClientText, Text: "How do I create a budget?"}
	reply := waitFor[protocol.AssistantReply](t, hh.outbound)
	assert.Equal(t, hh.sess.ID, reply.SessionID)
	assert.Equal(t, "knowledge", reply.Source)
	assert.NotEmpty(t, reply.Reply)

	history, err := hh.store.History(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestHubProfileUpdate(t *testing.T) {
	hh := startHub(t, MockEngines(voice.NewMockProvider()))
	waitFor[protocol.SystemEvent](t, hh.outbound)

	hh.inbound <- protocol.ProfileUpdate{Type: protocol.TypeProfileUpdate, Key: "goal", Value: "house"}
	ev := waitFor[protocol.SystemEvent](t, hh.outbound)
	assert.Equal(t, "profile_updated", ev.Code)
	assert.Equal(t, "goal", ev.Detail)

	profile, err := hh.store.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "house", profile["goal"])
}

func TestHubRunsQuizAndTracksSessionMode(t *testing.T) {
	mock := voice.NewMockProvider()
	for i := 0; i < len(quiz.Questions); i++ {
		mock.QueueTranscript("I like to explore and learn new things")
	}
	hh := startHub(t, MockEngines(mock))
	waitFor[protocol.SystemEvent](t, hh.outbound)

	hh.inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionStartQuiz}
	detected := waitFor[protocol.PersonaDetected](t, hh.outbound)
	assert.Equal(t, "explorer", detected.Persona)
	assert.Equal(t, persona.Explorer.Title(), detected.Title)

	require.Eventually(t, func() bool {
		s, err := hh.sessions.Get(hh.sess.ID)
		return err == nil && s.Mode == session.ModeChat && s.Persona == "explorer"
	}, time.Second, 10*time.Millisecond)

	snap, ok := hh.hub.QuizSnapshot(hh.sess.ID)
	require.True(t, ok)
	assert.Equal(t, persona.Explorer, snap.Result)
}

func TestHubAnnouncesStoredPersonaOnConnect(t *testing.T) {
	store := memory.NewStore(memory.NewInMemorySubstrate())
	require.NoError(t, store.SetPersona(context.Background(), "u1", persona.Maverick))

	sessions := session.NewManager(time.Minute)
	h := NewHub(store, nil, sessions, nil, zerolog.Nop(), DefaultHubConfig())
	h.SetEngines(MockEngines(voice.NewMockProvider()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	outbound := make(chan any, 16)
	go func() { _ = h.RunConnection(ctx, sessions.Create("u1"), make(chan any), outbound) }()

	detected := waitFor[protocol.PersonaDetected](t, outbound)
	assert.Equal(t, "maverick", detected.Persona)
}

func TestHubDrivesBrowserEngines(t *testing.T) {
	hh := startHub(t, nil)
	waitFor[protocol.SystemEvent](t, hh.outbound)

	hh.inbound <- protocol.ClientVoices{Type: protocol.TypeClientVoices, Voices: []protocol.VoiceInfo{
		{Name: "Google US English", Lang: "en-US"},
		{Name: "Microsoft Zira - Female", Lang: "en-US"},
	}}
	hh.inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionListen}

	start := waitFor[protocol.CaptureStart](t, hh.outbound)
	assert.Equal(t, "en-IN", start.Lang)
	assert.True(t, start.InterimResults)
	assert.Equal(t, 3, start.MaxAlternatives)

	hh.inbound <- protocol.STTResult{
		Type:         protocol.TypeSTTResult,
		CaptureID:    start.CaptureID,
		Alternatives: []protocol.Alternative{{Transcript: "how do I", Confidence: 0.4}},
	}
	interim := waitFor[protocol.Status](t, hh.outbound)
	for interim.Text != InterimStatus("how do I") {
		interim = waitFor[protocol.Status](t, hh.outbound)
	}
	assert.Equal(t, int64(10000), interim.DismissAfterMS)

	hh.inbound <- protocol.STTResult{
		Type:         protocol.TypeSTTResult,
		CaptureID:    start.CaptureID,
		IsFinal:      true,
		Alternatives: []protocol.Alternative{{Transcript: "How do I create a budget?", Confidence: 0.92}},
	}
	hh.inbound <- protocol.STTEnd{Type: protocol.TypeSTTEnd, CaptureID: start.CaptureID}

	reply := waitFor[protocol.AssistantReply](t, hh.outbound)
	assert.Equal(t, "How do I create a budget?", reply.UserInput)

	speak := waitFor[protocol.Speak](t, hh.outbound)
	assert.Equal(t, reply.Reply, speak.Text)
	assert.Equal(t, "Microsoft Zira - Female", speak.VoiceName)
	assert.Equal(t, "en-IN", speak.Lang)
	hh.inbound <- protocol.TTSEnd{Type: protocol.TypeTTSEnd, UtteranceID: speak.UtteranceID}
}

func TestHubReportsBrowserCaptureError(t *testing.T) {
	hh := startHub(t, nil)
	waitFor[protocol.SystemEvent](t, hh.outbound)

	hh.inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, Action: protocol.ActionListen}
	start := waitFor[protocol.CaptureStart](t, hh.outbound)
	hh.inbound <- protocol.STTError{Type: protocol.TypeSTTError, CaptureID: start.CaptureID, Error: "audio-capture"}

	for {
		st := waitFor[protocol.Status](t, hh.outbound)
		if st.Text == voice.CodeAudioCapture.UserMessage() {
			break
		}
	}
}

func TestHubConnectedLifecycle(t *testing.T) {
	hh := startHub(t, MockEngines(voice.NewMockProvider()))
	waitFor[protocol.SystemEvent](t, hh.outbound)
	assert.True(t, hh.hub.Connected(hh.sess.ID))

	close(hh.inbound)
	select {
	case err := <-hh.done:
		require.NoError(t, err)
		hh.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("RunConnection did not return after inbound closed")
	}
	assert.False(t, hh.hub.Connected(hh.sess.ID))
}
