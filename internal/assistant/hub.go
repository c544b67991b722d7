package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/fundora/internal/matcher"
	"github.com/ent0n29/fundora/internal/memory"
	"github.com/ent0n29/fundora/internal/observability"
	"github.com/ent0n29/fundora/internal/persona"
	"github.com/ent0n29/fundora/internal/protocol"
	"github.com/ent0n29/fundora/internal/quiz"
	"github.com/ent0n29/fundora/internal/session"
	"github.com/ent0n29/fundora/internal/voice"
)

type HubConfig struct {
	Assistant          Config
	StatusDismissAfter time.Duration
	Recognition        voice.RecognitionOptions
	Speech             voice.SpeechSettings
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		Assistant:          DefaultConfig(),
		StatusDismissAfter: 10 * time.Second,
		Recognition:        voice.DefaultRecognitionOptions(),
		Speech:             voice.DefaultSpeechSettings(),
	}
}

// EngineFactory supplies the speech engines for one connection. The bridge
// is the browser's own engines; a factory may return it or replace either side.
type EngineFactory func(bridge *voice.Bridge) (voice.STTProvider, voice.TTSProvider)

// Hub runs websocket connections, one Assistant per connection, over a
// shared store and matcher.
type Hub struct {
	store    *memory.Store
	matcher  *matcher.Matcher
	sessions *session.Manager
	metrics  *observability.Metrics
	log      zerolog.Logger
	cfg      HubConfig
	engines  EngineFactory

	mu     sync.Mutex
	active map[string]*Assistant
}

func NewHub(store *memory.Store, m *matcher.Matcher, sessions *session.Manager, metrics *observability.Metrics, log zerolog.Logger, cfg HubConfig) *Hub {
	if m == nil {
		m = matcher.New(nil)
	}
	return &Hub{
		store:    store,
		matcher:  m,
		sessions: sessions,
		metrics:  metrics,
		log:      log.With().Str("component", "hub").Logger(),
		cfg:      cfg,
		active:   make(map[string]*Assistant),
	}
}

// SetEngines overrides the browser bridge as the source of speech engines.
func (h *Hub) SetEngines(f EngineFactory) { h.engines = f }

// ServerSTT recognises client audio with stt, falling back to the browser
// engine if stt cannot start a session.
func ServerSTT(stt voice.STTProvider) EngineFactory {
	return func(bridge *voice.Bridge) (voice.STTProvider, voice.TTSProvider) {
		return voice.NewFailoverSTT(stt, bridge), bridge
	}
}

// MockEngines replaces both browser engines with p.
func MockEngines(p *voice.MockProvider) EngineFactory {
	return func(*voice.Bridge) (voice.STTProvider, voice.TTSProvider) { return p, p }
}

// ForUser returns a voiceless assistant for typed requests.
func (h *Hub) ForUser(userID string) *Assistant {
	return New(userID, h.store, h.matcher,
		WithConfig(Config{Quiz: h.cfg.Assistant.Quiz}),
		WithMetrics(h.metrics),
		WithLogger(h.log),
	)
}

// QuizSnapshot reports the quiz of a connected session.
func (h *Hub) QuizSnapshot(sessionID string) (quiz.Snapshot, bool) {
	h.mu.Lock()
	a, ok := h.active[sessionID]
	h.mu.Unlock()
	if !ok {
		return quiz.Snapshot{}, false
	}
	return a.QuizSnapshot()
}

func (h *Hub) Connected(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.active[sessionID]
	return ok
}

// RunConnection serves one websocket session until inbound closes or ctx ends.
func (h *Hub) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	connCtx, cancel := context.WithCancel(ctx)
	log := h.log.With().Str("session_id", s.ID).Str("user_id", s.UserID).Logger()

	bridge := voice.NewBridge(s.ID, func(msg any) error {
		h.send(outbound, msg)
		return nil
	})
	var (
		stt voice.STTProvider = bridge
		tts voice.TTSProvider = bridge
	)
	if h.engines != nil {
		stt, tts = h.engines(bridge)
	}

	n := &connNotifier{hub: h, sessionID: s.ID, outbound: outbound}
	adapter := voice.NewAdapter(stt, tts,
		voice.WithRecognitionOptions(h.cfg.Recognition),
		voice.WithSpeechSettings(h.cfg.Speech),
		voice.WithInterimHandler(func(text string) { n.Status(InterimStatus(text)) }),
		voice.WithMetrics(h.metrics),
		voice.WithLogger(log),
	)
	a := New(s.UserID, h.store, h.matcher,
		WithVoice(adapter),
		WithNotifier(n),
		WithConfig(h.cfg.Assistant),
		WithMetrics(h.metrics),
		WithLogger(log),
		WithQuizHook(func(active bool, result persona.Persona) { h.quizChanged(s.ID, active, result) }),
	)

	h.mu.Lock()
	h.active[s.ID] = a
	h.mu.Unlock()

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}
	defer func() {
		cancel()
		adapter.Close()
		bridge.Close()
		wg.Wait()
		h.mu.Lock()
		delete(h.active, s.ID)
		h.mu.Unlock()
		log.Debug().Msg("connection closed")
	}()

	h.send(outbound, protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: s.ID, Code: "session_ready"})
	if p, err := a.Persona(connCtx); err == nil && p.Valid() {
		h.send(outbound, personaDetected(s.ID, p))
	}

	for {
		select {
		case <-connCtx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if h.sessions != nil {
				_ = h.sessions.Touch(s.ID)
			}
			h.dispatch(connCtx, s.ID, a, adapter, bridge, msg, outbound, spawn, log)
		}
	}
}

func (h *Hub) dispatch(
	ctx context.Context,
	sessionID string,
	a *Assistant,
	adapter *voice.Adapter,
	bridge *voice.Bridge,
	msg any,
	outbound chan<- any,
	spawn func(func()),
	log zerolog.Logger,
) {
	switch m := msg.(type) {
	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionListen:
			if a.QuizActive() {
				h.send(outbound, errorEvent(sessionID, "quiz_active", "quiz", false, ErrQuizActive))
				return
			}
			spawn(func() { _ = a.StartListening(ctx) })
		case protocol.ActionStopListen:
			a.StopListening()
		case protocol.ActionStartQuiz:
			if a.QuizActive() {
				h.send(outbound, errorEvent(sessionID, "quiz_active", "quiz", false, ErrQuizActive))
				return
			}
			spawn(func() {
				_, err := a.StartQuiz(ctx)
				switch {
				case err == nil, ctx.Err() != nil:
				case errors.Is(err, ErrQuizActive):
					h.send(outbound, errorEvent(sessionID, "quiz_active", "quiz", false, err))
				default:
					h.send(outbound, errorEvent(sessionID, "persona_not_saved", "store", true, err))
				}
			})
		case protocol.ActionClearHistory:
			if err := a.ClearHistory(ctx); err != nil {
				h.send(outbound, errorEvent(sessionID, "history_not_cleared", "store", true, err))
			}
		}
	case protocol.ClientText:
		spawn(func() {
			_, err := a.ProcessInput(ctx, m.Text)
			switch {
			case err == nil, ctx.Err() != nil:
			case errors.Is(err, ErrQuizActive):
				h.send(outbound, errorEvent(sessionID, "quiz_active", "quiz", false, err))
			default:
				h.send(outbound, errorEvent(sessionID, "turn_not_saved", "store", true, err))
			}
		})
	case protocol.ClientAudioChunk:
		if err := adapter.FeedAudio(ctx, m.PCM16Base64, m.SampleRate); err != nil {
			log.Debug().Err(err).Int("seq", m.Seq).Msg("audio chunk rejected")
		}
	case protocol.ProfileUpdate:
		if _, err := a.UpdateProfile(ctx, m.Key, m.Value); err != nil {
			h.send(outbound, errorEvent(sessionID, "profile_not_saved", "store", !errors.Is(err, memory.ErrEmptyProfileKey), err))
			return
		}
		h.send(outbound, protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "profile_updated", Detail: m.Key})
	case protocol.STTResult, protocol.STTError, protocol.STTEnd, protocol.TTSEnd, protocol.ClientVoices:
		if !bridge.Handle(m) {
			log.Debug().Msg("engine message for an unknown capture or utterance")
		}
	default:
		h.send(outbound, errorEvent(sessionID, "unsupported_message", "gateway", false, protocol.ErrUnsupportedType))
	}
}

func (h *Hub) quizChanged(sessionID string, active bool, result persona.Persona) {
	if h.sessions == nil {
		return
	}
	mode := session.ModeChat
	if active {
		mode = session.ModeQuiz
	}
	_ = h.sessions.SetMode(sessionID, mode)
	if result.Valid() {
		_ = h.sessions.SetPersona(sessionID, result.String())
	}
}

// send never blocks the caller for long. Critical messages wait briefly for
// queue space; status updates are dropped when the queue is full.
func (h *Hub) send(outbound chan<- any, msg any) {
	if critical(msg) {
		timer := time.NewTimer(600 * time.Millisecond)
		defer timer.Stop()
		select {
		case outbound <- msg:
		case <-timer.C:
			h.metrics.ObserveSessionEvent("outbound_drop")
		}
		return
	}
	select {
	case outbound <- msg:
	default:
		h.metrics.ObserveSessionEvent("outbound_drop")
	}
}

func critical(msg any) bool {
	switch msg.(type) {
	case protocol.Status, protocol.SystemEvent:
		return false
	default:
		return true
	}
}

func errorEvent(sessionID, code, source string, retryable bool, err error) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    source,
		Retryable: retryable,
		Detail:    err.Error(),
	}
}

func personaDetected(sessionID string, p persona.Persona) protocol.PersonaDetected {
	return protocol.PersonaDetected{
		Type:        protocol.TypePersonaDetected,
		SessionID:   sessionID,
		Persona:     p.String(),
		Title:       p.Title(),
		Description: p.Description(),
	}
}

type connNotifier struct {
	hub       *Hub
	sessionID string
	outbound  chan<- any
}

func (n *connNotifier) Status(text string) {
	n.hub.send(n.outbound, protocol.Status{
		Type:           protocol.TypeStatus,
		SessionID:      n.sessionID,
		Text:           text,
		DismissAfterMS: n.hub.cfg.StatusDismissAfter.Milliseconds(),
	})
}

func (n *connNotifier) PersonaDetected(p persona.Persona) {
	n.hub.send(n.outbound, personaDetected(n.sessionID, p))
}

func (n *connNotifier) Reply(userInput string, res matcher.Result) {
	n.hub.send(n.outbound, protocol.AssistantReply{
		Type:      protocol.TypeAssistantReply,
		SessionID: n.sessionID,
		UserInput: userInput,
		Reply:     res.Reply,
		Source:    string(res.Source),
	})
}
