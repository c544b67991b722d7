package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ent0n29/fundora/internal/protocol"
)

// Bridge drives the browser's own recognition and synthesis engines over a
// websocket connection. Commands go out through send; the connection's read
// loop hands engine results back through Handle.
type Bridge struct {
	sessionID string
	send      func(msg any) error

	mu         sync.Mutex
	captures   map[string]*bridgeCapture
	utterances map[string]*bridgeUtterance
	voices     []Voice
	closed     bool
}

func NewBridge(sessionID string, send func(msg any) error) *Bridge {
	return &Bridge{
		sessionID:  sessionID,
		send:       send,
		captures:   make(map[string]*bridgeCapture),
		utterances: make(map[string]*bridgeUtterance),
	}
}

type bridgeCapture struct {
	bridge *Bridge
	id     string
	events chan STTEvent
}

type bridgeUtterance struct {
	bridge *Bridge
	id     string
	events chan TTSEvent
}

func (b *Bridge) StartSession(_ context.Context, captureID string, opts RecognitionOptions) (STTSession, <-chan STTEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, nil, ErrSpeechUnsupported
	}
	c := &bridgeCapture{bridge: b, id: captureID, events: make(chan STTEvent, 64)}
	b.captures[captureID] = c
	b.mu.Unlock()

	err := b.send(protocol.CaptureStart{
		Type:            protocol.TypeCaptureStart,
		SessionID:       b.sessionID,
		CaptureID:       captureID,
		Lang:            opts.Language,
		Continuous:      opts.Continuous,
		InterimResults:  opts.InterimResults,
		MaxAlternatives: opts.MaxAlternatives,
	})
	if err != nil {
		b.dropCapture(captureID)
		return nil, nil, err
	}
	return c, c.events, nil
}

// SendAudioChunk is a no-op: the browser engine captures the microphone itself.
func (c *bridgeCapture) SendAudioChunk(context.Context, string, int) error { return nil }

func (c *bridgeCapture) Stop() error {
	return c.bridge.send(protocol.CaptureStop{
		Type:      protocol.TypeCaptureStop,
		SessionID: c.bridge.sessionID,
		CaptureID: c.id,
	})
}

func (c *bridgeCapture) Close() error {
	if !c.bridge.dropCapture(c.id) {
		return nil
	}
	return c.bridge.send(protocol.CaptureStop{
		Type:      protocol.TypeCaptureStop,
		SessionID: c.bridge.sessionID,
		CaptureID: c.id,
		Abort:     true,
	})
}

// dropCapture unregisters a capture and closes its event channel. It reports
// whether the capture was still registered.
func (b *Bridge) dropCapture(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.captures[id]
	if !ok {
		return false
	}
	delete(b.captures, id)
	close(c.events)
	return true
}

func (b *Bridge) Voices(context.Context) ([]Voice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Voice(nil), b.voices...), nil
}

func (b *Bridge) StartUtterance(_ context.Context, u Utterance) (TTSStream, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrSynthesisUnsupported
	}
	s := &bridgeUtterance{bridge: b, id: u.ID, events: make(chan TTSEvent, 1)}
	b.utterances[u.ID] = s
	b.mu.Unlock()

	msg := protocol.Speak{
		Type:        protocol.TypeSpeak,
		SessionID:   b.sessionID,
		UtteranceID: u.ID,
		Text:        u.Text,
		Rate:        u.Rate,
		Pitch:       u.Pitch,
		Volume:      u.Volume,
		Lang:        u.Lang,
	}
	if u.Voice != nil {
		msg.VoiceName = u.Voice.Name
		msg.VoiceLang = u.Voice.Lang
	}
	if err := b.send(msg); err != nil {
		b.dropUtterance(u.ID)
		return nil, err
	}
	return s, nil
}

func (s *bridgeUtterance) Events() <-chan TTSEvent { return s.events }

func (s *bridgeUtterance) Cancel() error {
	if !s.bridge.dropUtterance(s.id) {
		return nil
	}
	return s.bridge.send(protocol.SpeechCancel{
		Type:        protocol.TypeSpeechCancel,
		SessionID:   s.bridge.sessionID,
		UtteranceID: s.id,
	})
}

func (b *Bridge) dropUtterance(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.utterances[id]
	if !ok {
		return false
	}
	delete(b.utterances, id)
	close(s.events)
	return true
}

// Handle routes an engine message from the browser. It reports whether msg
// was an engine message.
func (b *Bridge) Handle(msg any) bool {
	switch m := msg.(type) {
	case protocol.ClientVoices:
		voices := make([]Voice, 0, len(m.Voices))
		for _, v := range m.Voices {
			voices = append(voices, Voice{Name: v.Name, Lang: v.Lang, Default: v.Default})
		}
		b.mu.Lock()
		b.voices = voices
		b.mu.Unlock()
	case protocol.STTResult:
		ev := resultEvent(m)
		b.mu.Lock()
		// The last slot stays free for a terminal error. Sends happen only
		// under b.mu, so the length check cannot race another sender.
		if c, ok := b.captures[m.CaptureID]; ok && len(c.events) < cap(c.events)-1 {
			c.events <- ev
		}
		b.mu.Unlock()
	case protocol.STTError:
		b.mu.Lock()
		if c, ok := b.captures[m.CaptureID]; ok {
			c.events <- STTEvent{Type: STTEventError, Code: ParseErrorCode(m.Error), Detail: m.Message, Timestamp: time.Now().UnixMilli()}
			delete(b.captures, m.CaptureID)
			close(c.events)
		}
		b.mu.Unlock()
	case protocol.STTEnd:
		b.dropCapture(m.CaptureID)
	case protocol.TTSEnd:
		b.mu.Lock()
		if s, ok := b.utterances[m.UtteranceID]; ok {
			ev := TTSEvent{Type: TTSEventFinal}
			if strings.TrimSpace(m.Error) != "" {
				ev = TTSEvent{Type: TTSEventError, Code: m.Error}
			}
			s.events <- ev
			delete(b.utterances, m.UtteranceID)
			close(s.events)
		}
		b.mu.Unlock()
	default:
		return false
	}
	return true
}

func resultEvent(m protocol.STTResult) STTEvent {
	ev := STTEvent{Type: STTEventPartial, Timestamp: time.Now().UnixMilli()}
	if m.IsFinal {
		ev.Type = STTEventFinal
	}
	for _, alt := range m.Alternatives {
		ev.Alternatives = append(ev.Alternatives, Alternative{Transcript: alt.Transcript, Confidence: alt.Confidence})
	}
	if len(ev.Alternatives) > 0 {
		ev.Text = ev.Alternatives[0].Transcript
		ev.Confidence = ev.Alternatives[0].Confidence
	}
	return ev
}

// Close ends every pending capture and utterance; the bridge accepts no new
// work afterwards.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, c := range b.captures {
		delete(b.captures, id)
		close(c.events)
	}
	for id, s := range b.utterances {
		delete(b.utterances, id)
		close(s.events)
	}
}
