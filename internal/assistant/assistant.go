// Package assistant is the conversation façade: it turns captured or typed
// input into a matched reply, records the turn, and speaks the result. It
// also owns the per-user persona quiz.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/fundora/internal/matcher"
	"github.com/ent0n29/fundora/internal/memory"
	"github.com/ent0n29/fundora/internal/observability"
	"github.com/ent0n29/fundora/internal/persona"
	"github.com/ent0n29/fundora/internal/quiz"
	"github.com/ent0n29/fundora/internal/voice"
)

const (
	ListeningStatus      = "🎙️ Listening... Speak clearly and take your time!"
	HistoryClearedStatus = "Conversation history cleared!"
)

var (
	ErrEmptyInput = errors.New("input is empty")
	ErrQuizActive = errors.New("persona quiz already running")
)

// Notifier receives everything the UI collaborator renders.
type Notifier interface {
	Status(text string)
	PersonaDetected(p persona.Persona)
	Reply(userInput string, res matcher.Result)
}

type nopNotifier struct{}

func (nopNotifier) Status(string) {}
func (nopNotifier) PersonaDetected(persona.Persona) {}
func (nopNotifier) Reply(string, matcher.Result) {}

type Config struct {
	// ResponseDelay separates the "thinking" status from the spoken reply.
	ResponseDelay time.Duration
	Quiz          quiz.Config
}

func DefaultConfig() Config {
	return Config{ResponseDelay: time.Second, Quiz: quiz.DefaultConfig()}
}

// Assistant serves one user. The voice adapter is optional; without it the
// assistant answers typed input only.
type Assistant struct {
	userID   string
	store    *memory.Store
	matcher  *matcher.Matcher
	voice    *voice.Adapter
	notifier Notifier
	cfg      Config
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu         sync.Mutex
	quiz       *quiz.Session
	quizActive bool
	onQuiz     func(active bool, result persona.Persona)
}

type Option func(*Assistant)

func WithVoice(v *voice.Adapter) Option {
	return func(a *Assistant) { a.voice = v }
}

func WithNotifier(n Notifier) Option {
	return func(a *Assistant) {
		if n != nil {
			a.notifier = n
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(a *Assistant) { a.cfg = cfg }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(a *Assistant) { a.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(a *Assistant) { a.log = l }
}

// WithQuizHook is called when a quiz starts and again when it ends.
func WithQuizHook(fn func(active bool, result persona.Persona)) Option {
	return func(a *Assistant) { a.onQuiz = fn }
}

func New(userID string, store *memory.Store, m *matcher.Matcher, opts ...Option) *Assistant {
	if m == nil {
		m = matcher.New(nil)
	}
	a := &Assistant{
		userID:   userID,
		store:    store,
		matcher:  m,
		notifier: nopNotifier{},
		cfg:      DefaultConfig(),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.With().Str("component", "assistant").Str("user_id", userID).Logger()
	return a
}

func (a *Assistant) UserID() string { return a.userID }

// StartListening captures one utterance and answers it. A capture already in
// progress makes this a no-op. While the quiz runs its listener is the only
// consumer of speech, so this returns ErrQuizActive.
func (a *Assistant) StartListening(ctx context.Context) error {
	if a.voice == nil || !a.voice.CanListen() {
		a.notifier.Status(voice.MsgUnsupported)
		return voice.ErrSpeechUnsupported
	}
	if a.QuizActive() {
		return ErrQuizActive
	}
	if a.voice.Listening() {
		return nil
	}

	a.notifier.Status(ListeningStatus)
	text, err := a.voice.ListenOnce(ctx)
	switch {
	case errors.Is(err, voice.ErrCaptureActive):
		return nil
	case err != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if a.QuizActive() {
			// the quiz preempted this capture
			return ErrQuizActive
		}
		a.log.Warn().Err(err).Msg("capture failed")
		a.notifier.Status(voice.UserMessage(err))
		return err
	}
	_, err = a.ProcessInput(ctx, text)
	return err
}

// StopListening ends the active capture with whatever it has heard.
func (a *Assistant) StopListening() {
	if a.voice != nil {
		a.voice.StopListening()
	}
}

// ProcessInput answers text: it shows a thinking status, records the turn,
// waits ResponseDelay, then shows and speaks the reply. Input arriving while
// the quiz runs is refused with ErrQuizActive and not recorded.
func (a *Assistant) ProcessInput(ctx context.Context, text string) (matcher.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return matcher.Result{}, ErrEmptyInput
	}
	if a.QuizActive() {
		return matcher.Result{}, ErrQuizActive
	}

	a.notifier.Status(fmt.Sprintf("You said:\n%q\n\n🤔 Let me think...", text))
	res, recordErr := a.Respond(ctx, text)

	if err := sleep(ctx, a.cfg.ResponseDelay); err != nil {
		return res, err
	}
	a.notifier.Status(fmt.Sprintf("You said:\n%q\n\nFundora says:\n%s", text, res.Reply))
	a.notifier.Reply(text, res)
	a.speak(ctx, res.Reply)
	return res, recordErr
}

// Respond matches text and records the turn. The reply is valid even when
// recording fails.
func (a *Assistant) Respond(ctx context.Context, text string) (matcher.Result, error) {
	started := time.Now()

	hasHistory := false
	if entries, err := a.store.History(ctx, a.userID); err != nil {
		a.storeFailed("history", err)
	} else {
		hasHistory = len(entries) > 0
	}
	p, err := a.store.Persona(ctx, a.userID)
	if err != nil {
		a.storeFailed("persona", err)
	}

	res := a.matcher.Match(text, matcher.Context{HasHistory: hasHistory, Persona: p})
	a.metrics.ObserveMatch(string(res.Source))
	a.metrics.ObserveReplyLatency(time.Since(started))
	a.log.Debug().Str("source", string(res.Source)).Str("entry_id", res.EntryID).Int("score", res.Score).Msg("input matched")

	_, err = a.RecordTurn(ctx, text, res.Reply)
	return res, err
}

func (a *Assistant) RecordTurn(ctx context.Context, userInput, botResponse string) (memory.ConversationEntry, error) {
	entry, err := a.store.RecordTurn(ctx, a.userID, userInput, botResponse)
	if err != nil {
		a.storeFailed("record_turn", err)
		return memory.ConversationEntry{}, fmt.Errorf("record turn: %w", err)
	}
	a.metrics.ObserveTurn()
	return entry, nil
}

func (a *Assistant) UpdateProfile(ctx context.Context, key string, value any) (memory.UserProfile, error) {
	profile, err := a.store.UpdateProfile(ctx, a.userID, key, value)
	if err != nil {
		if !errors.Is(err, memory.ErrEmptyProfileKey) {
			a.storeFailed("update_profile", err)
		}
		return nil, err
	}
	return profile, nil
}

func (a *Assistant) Profile(ctx context.Context) (memory.UserProfile, error) {
	return a.store.Profile(ctx, a.userID)
}

// ClearHistory drops the conversation log. Profile and persona are kept.
func (a *Assistant) ClearHistory(ctx context.Context) error {
	if err := a.store.ClearHistory(ctx, a.userID); err != nil {
		a.storeFailed("clear_history", err)
		return fmt.Errorf("clear history: %w", err)
	}
	a.notifier.Status(HistoryClearedStatus)
	return nil
}

func (a *Assistant) History(ctx context.Context) ([]memory.ConversationEntry, error) {
	return a.store.History(ctx, a.userID)
}

func (a *Assistant) Persona(ctx context.Context) (persona.Persona, error) {
	return a.store.Persona(ctx, a.userID)
}

// Forget removes every record held for the user.
func (a *Assistant) Forget(ctx context.Context) error {
	if err := a.store.Forget(ctx, a.userID); err != nil {
		a.storeFailed("forget", err)
		return fmt.Errorf("forget user: %w", err)
	}
	a.log.Info().Msg("user records removed")
	return nil
}

// StartQuiz runs the persona quiz to completion. Only one quiz may run per
// assistant at a time.
func (a *Assistant) StartQuiz(ctx context.Context) (persona.Persona, error) {
	var (
		speaker  quiz.Speaker
		listener quiz.Listener
	)
	if a.voice != nil {
		if a.voice.CanSpeak() {
			speaker = a.voice
		}
		if a.voice.CanListen() {
			listener = a.voice
		}
	}

	a.mu.Lock()
	if a.quizActive {
		a.mu.Unlock()
		return "", ErrQuizActive
	}
	q := quiz.New(speaker, listener, a.notifier, storeCommitter{store: a.store, userID: a.userID},
		quiz.WithConfig(a.cfg.Quiz),
		quiz.WithMetrics(a.metrics),
		quiz.WithLogger(a.log),
	)
	a.quiz = q
	a.quizActive = true
	hook := a.onQuiz
	a.mu.Unlock()

	if hook != nil {
		hook(true, "")
	}
	result, err := q.Run(ctx)

	a.mu.Lock()
	a.quizActive = false
	a.mu.Unlock()
	if hook != nil {
		hook(false, result)
	}
	if err != nil {
		if ctx.Err() == nil {
			a.storeFailed("set_persona", err)
		}
		return result, err
	}
	return result, nil
}

// QuizSnapshot reports the current or most recent quiz.
func (a *Assistant) QuizSnapshot() (quiz.Snapshot, bool) {
	a.mu.Lock()
	q := a.quiz
	a.mu.Unlock()
	if q == nil {
		return quiz.Snapshot{}, false
	}
	return q.Snapshot(), true
}

func (a *Assistant) QuizActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quizActive
}

func (a *Assistant) speak(ctx context.Context, text string) {
	if a.voice == nil || !a.voice.CanSpeak() {
		return
	}
	if err := a.voice.Speak(ctx, text); err != nil && !errors.Is(err, voice.ErrSpeechInterrupted) {
		a.log.Warn().Err(err).Msg("reply not spoken")
	}
}

func (a *Assistant) storeFailed(op string, err error) {
	a.metrics.ObserveStoreError(op)
	a.log.Error().Err(err).Str("op", op).Msg("store operation failed")
}

type storeCommitter struct {
	store  *memory.Store
	userID string
}

func (c storeCommitter) SetPersona(ctx context.Context, p persona.Persona) error {
	return c.store.SetPersona(ctx, c.userID, p)
}

// InterimStatus renders a live partial transcript.
func InterimStatus(text string) string {
	return fmt.Sprintf("🎙️ I'm hearing: %q", strings.TrimSpace(text))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
