package voice

import (
	"context"
	"sync"
	"time"
)

const defaultMockTranscript = "simulated voice input"

// MockScript describes how one mock capture session behaves. Events are
// emitted in order; with Hold the session then stays open until stopped.
type MockScript struct {
	Events []STTEvent
	Hold   bool
}

// MockProvider is a scripted STT and TTS engine used by the CLI and tests.
// Sessions consume queued scripts in order; once the queue is empty every
// session hears the default transcript.
type MockProvider struct {
	mu         sync.Mutex
	scripts    []MockScript
	fallback   string
	voices     []Voice
	utterances []Utterance
	sessions   int
	holdSpeech bool
	speakErr   error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{fallback: defaultMockTranscript}
}

func (p *MockProvider) QueueTranscript(text string, partials ...string) {
	events := make([]STTEvent, 0, len(partials)+1)
	for _, partial := range partials {
		events = append(events, STTEvent{Type: STTEventPartial, Text: partial})
	}
	events = append(events, STTEvent{
		Type:         STTEventFinal,
		Text:         text,
		Alternatives: []Alternative{{Transcript: text, Confidence: 0.9}},
		Confidence:   0.9,
	})
	p.QueueScript(MockScript{Events: events})
}

func (p *MockProvider) QueueError(code ErrorCode) {
	p.QueueScript(MockScript{Events: []STTEvent{{Type: STTEventError, Code: code}}})
}

// QueueSilence queues a session that ends without any result.
func (p *MockProvider) QueueSilence() {
	p.QueueScript(MockScript{})
}

// QueueHold queues a session that stays open until it is stopped or aborted.
func (p *MockProvider) QueueHold(events ...STTEvent) {
	p.QueueScript(MockScript{Events: events, Hold: true})
}

func (p *MockProvider) QueueScript(s MockScript) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, s)
}

// SetDefaultTranscript changes what sessions hear once the queue is empty.
// An empty string makes them silent.
func (p *MockProvider) SetDefaultTranscript(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = text
}

func (p *MockProvider) SetVoices(voices []Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voices = append([]Voice(nil), voices...)
}

// HoldSpeech keeps utterances playing until they are cancelled.
func (p *MockProvider) HoldSpeech(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holdSpeech = hold
}

// FailSpeech makes StartUtterance fail with err. Nil restores normal behaviour.
func (p *MockProvider) FailSpeech(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speakErr = err
}

func (p *MockProvider) Utterances() []Utterance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Utterance(nil), p.utterances...)
}

// Spoken returns the text of every utterance started so far.
func (p *MockProvider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.utterances))
	for i, u := range p.utterances {
		out[i] = u.Text
	}
	return out
}

func (p *MockProvider) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

func (p *MockProvider) nextScript() MockScript {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions++
	if len(p.scripts) > 0 {
		s := p.scripts[0]
		p.scripts = p.scripts[1:]
		return s
	}
	if p.fallback == "" {
		return MockScript{}
	}
	return MockScript{Events: []STTEvent{{Type: STTEventFinal, Text: p.fallback, Confidence: 0.7}}}
}

func (p *MockProvider) StartSession(_ context.Context, _ string, _ RecognitionOptions) (STTSession, <-chan STTEvent, error) {
	script := p.nextScript()
	events := make(chan STTEvent, len(script.Events)+1)
	s := &mockSTTSession{done: make(chan struct{})}

	go func() {
		defer close(events)
		for _, ev := range script.Events {
			if ev.Timestamp == 0 {
				ev.Timestamp = time.Now().UnixMilli()
			}
			select {
			case events <- ev:
			case <-s.done:
				return
			}
		}
		if script.Hold {
			<-s.done
		}
	}()
	return s, events, nil
}

type mockSTTSession struct {
	mu     sync.Mutex
	chunks int
	done   chan struct{}
	once   sync.Once
}

func (s *mockSTTSession) SendAudioChunk(_ context.Context, _ string, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
	return nil
}

func (s *mockSTTSession) Stop() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *mockSTTSession) Close() error { return s.Stop() }

func (p *MockProvider) Voices(_ context.Context) ([]Voice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Voice(nil), p.voices...), nil
}

func (p *MockProvider) StartUtterance(_ context.Context, u Utterance) (TTSStream, error) {
	p.mu.Lock()
	if p.speakErr != nil {
		err := p.speakErr
		p.mu.Unlock()
		return nil, err
	}
	p.utterances = append(p.utterances, u)
	hold := p.holdSpeech
	p.mu.Unlock()

	s := &mockTTSStream{events: make(chan TTSEvent, 1), done: make(chan struct{})}
	if !hold {
		s.events <- TTSEvent{Type: TTSEventFinal}
		close(s.events)
		return s, nil
	}
	go func() {
		<-s.done
		close(s.events)
	}()
	return s, nil
}

type mockTTSStream struct {
	events chan TTSEvent
	done   chan struct{}
	once   sync.Once
}

func (s *mockTTSStream) Events() <-chan TTSEvent { return s.events }

func (s *mockTTSStream) Cancel() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
