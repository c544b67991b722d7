// Package quiz runs the money persona quiz: ten spoken questions, one
// captured answer each, scored into a persona.Scoreboard.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/fundora/internal/observability"
	"github.com/ent0n29/fundora/internal/persona"
)

type State string

const (
	StateIdle       State = "idle"
	StateAsking     State = "asking_question"
	StateListening  State = "listening"
	StateEvaluating State = "evaluating"
	StateComplete   State = "complete"
	// StateAborted is terminal: the run's context ended before completion.
	StateAborted State = "aborted"
)

var Questions = []string{
	"When you get money, do you prefer planning what to do with it or just going with the flow?",
	"Do you track your monthly expenses or just check your balance now and then?",
	"Would you say you're someone who avoids thinking about finances until absolutely necessary?",
	"If you receive a sudden bonus, do you invest it, spend it, or let it sit in your account?",
	"Do you enjoy researching before buying or investing in something?",
	"How often do you compare yourself financially with friends or peers?",
	"Would you rather buy something on EMI or save up and buy later?",
	"Do you feel anxious when you check your bank account or confident?",
	"When traveling, do you plan every detail or go with the flow?",
	"Do you think of budgeting as empowering or restricting?",
}

const (
	StartStatus = "🧠 Starting your Money Persona Quiz! I'll ask you 10 questions..."
	IntroLine   = "Hi! I'm going to ask you some questions to understand your money personality. Just answer naturally - there are no right or wrong answers."
)

var ErrAlreadyStarted = errors.New("quiz already started")

// Speaker plays a line and returns once playback has ended.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Listener captures one answer. Any active capture is preempted.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

type Notifier interface {
	Status(text string)
	PersonaDetected(p persona.Persona)
}

// Committer persists the winning persona.
type Committer interface {
	SetPersona(ctx context.Context, p persona.Persona) error
}

type Config struct {
	IntroPause   time.Duration
	ListenDelay  time.Duration
	AdvanceDelay time.Duration
	SkipDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{
		IntroPause:   2 * time.Second,
		ListenDelay:  time.Second,
		AdvanceDelay: 1500 * time.Millisecond,
		SkipDelay:    time.Second,
	}
}

type Snapshot struct {
	State    State                   `json:"state"`
	Index    int                     `json:"index"`
	Total    int                     `json:"total"`
	Answered int                     `json:"answered"`
	Skipped  int                     `json:"skipped"`
	Scores   map[persona.Persona]int `json:"scores"`
	Result   persona.Persona         `json:"result,omitempty"`
}

// Session is a single quiz run. It is not reusable once complete.
type Session struct {
	cfg      Config
	speaker  Speaker
	listener Listener
	notifier Notifier
	commit   Committer
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu       sync.Mutex
	state    State
	index    int
	board    *persona.Scoreboard
	answered int
	skipped  int
	result   persona.Persona
}

type Option func(*Session)

func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l.With().Str("component", "quiz").Logger() }
}

// New builds a quiz. A nil listener skips every question; a nil speaker or
// notifier is silent.
func New(speaker Speaker, listener Listener, notifier Notifier, commit Committer, opts ...Option) *Session {
	s := &Session{
		cfg:      DefaultConfig(),
		speaker:  speaker,
		listener: listener,
		notifier: notifier,
		commit:   commit,
		log:      zerolog.Nop(),
		state:    StateIdle,
		board:    persona.NewScoreboard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:    s.state,
		Index:    s.index,
		Total:    len(Questions),
		Answered: s.answered,
		Skipped:  s.skipped,
		Scores:   s.board.Snapshot(),
		Result:   s.result,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	idx := s.index
	s.mu.Unlock()
	s.log.Debug().Str("state", string(st)).Int("question", idx).Msg("quiz transition")
}

// Run drives the quiz to completion and returns the detected persona. Only
// context cancellation stops it early; capture failures skip the question.
func (s *Session) Run(ctx context.Context) (persona.Persona, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return "", ErrAlreadyStarted
	}
	s.board = persona.NewScoreboard()
	s.index = 0
	s.state = StateAsking
	s.mu.Unlock()

	s.status(StartStatus)
	s.speak(ctx, IntroLine)
	if err := sleep(ctx, s.cfg.IntroPause); err != nil {
		return s.abort(err)
	}

	for {
		s.mu.Lock()
		i := s.index
		s.mu.Unlock()
		if i >= len(Questions) {
			break
		}
		if err := s.askQuestion(ctx, i); err != nil {
			return s.abort(err)
		}
	}
	return s.finish(ctx)
}

// abort ends a run cancelled through its context. askQuestion only fails for
// that reason.
func (s *Session) abort(err error) (persona.Persona, error) {
	s.setState(StateAborted)
	s.log.Info().Err(err).Msg("quiz aborted")
	return "", err
}

func (s *Session) askQuestion(ctx context.Context, i int) error {
	q := Questions[i]
	s.setState(StateAsking)
	s.status(fmt.Sprintf("Question %d/%d:\n\n%s\n\n🎙️ Please speak your answer...", i+1, len(Questions), q))
	s.speak(ctx, q)
	if err := sleep(ctx, s.cfg.ListenDelay); err != nil {
		return err
	}

	s.setState(StateListening)
	s.status(fmt.Sprintf("Question %d/%d:\n\n%s\n\n🎙️ Listening for your answer...", i+1, len(Questions), q))
	answer, err := s.listen(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		s.log.Debug().Err(err).Int("question", i).Msg("skipping question")
		s.metrics.ObserveQuizAnswer(false)
		s.mu.Lock()
		s.skipped++
		s.index++
		s.mu.Unlock()
		return sleep(ctx, s.cfg.SkipDelay)
	}

	s.setState(StateEvaluating)
	s.mu.Lock()
	hits := s.board.Evaluate(answer)
	s.answered++
	s.index++
	s.mu.Unlock()
	s.metrics.ObserveQuizAnswer(true)
	s.log.Debug().Int("question", i).Int("hits", hits).Msg("answer evaluated")
	return sleep(ctx, s.cfg.AdvanceDelay)
}

func (s *Session) listen(ctx context.Context) (string, error) {
	if s.listener == nil {
		return "", errors.New("speech capture unavailable")
	}
	return s.listener.Listen(ctx)
}

func (s *Session) finish(ctx context.Context) (persona.Persona, error) {
	s.mu.Lock()
	winner := s.board.Winner()
	s.mu.Unlock()

	var commitErr error
	if s.commit != nil {
		if err := s.commit.SetPersona(ctx, winner); err != nil {
			commitErr = fmt.Errorf("commit persona: %w", err)
			s.log.Error().Err(err).Str("persona", winner.String()).Msg("persona not persisted")
		}
	}

	s.mu.Lock()
	s.result = winner
	s.state = StateComplete
	s.mu.Unlock()
	s.metrics.ObserveQuizCompletion(winner.String())
	s.log.Info().Str("persona", winner.String()).Msg("quiz complete")

	s.status(CompletionStatus(winner))
	if s.notifier != nil {
		s.notifier.PersonaDetected(winner)
	}
	s.speak(ctx, CongratulationLine(winner))
	return winner, commitErr
}

// CompletionStatus is the status text shown when the quiz ends.
func CompletionStatus(p persona.Persona) string {
	return "🎉 Quiz Complete!\n\nYour money persona is:\n" + p.Headline() + "\n\nNow I can give you personalized financial advice!"
}

func CongratulationLine(p persona.Persona) string {
	return fmt.Sprintf("Congratulations! You are a %s. This means I can now provide you with personalized financial guidance that matches your style perfectly.", p)
}

func (s *Session) status(text string) {
	if s.notifier != nil {
		s.notifier.Status(text)
	}
}

func (s *Session) speak(ctx context.Context, text string) {
	if s.speaker == nil {
		return
	}
	if err := s.speaker.Speak(ctx, text); err != nil {
		s.log.Debug().Err(err).Msg("quiz line not spoken")
	}
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
