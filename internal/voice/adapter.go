package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/fundora/internal/observability"
)

// Adapter owns at most one active capture and one active utterance over a
// pair of engines. Either engine may be nil when the capability is missing.
type Adapter struct {
	stt         STTProvider
	tts         TTSProvider
	recognition RecognitionOptions
	speech      SpeechSettings
	onInterim   func(text string)
	metrics     *observability.Metrics
	log         zerolog.Logger

	mu       sync.Mutex
	capture  *captureHandle
	speaking *speechHandle
}

type AdapterOption func(*Adapter)

func WithRecognitionOptions(o RecognitionOptions) AdapterOption {
	return func(a *Adapter) { a.recognition = o }
}

func WithSpeechSettings(s SpeechSettings) AdapterOption {
	return func(a *Adapter) { a.speech = s }
}

// WithInterimHandler receives the text of interim recognition results.
func WithInterimHandler(fn func(text string)) AdapterOption {
	return func(a *Adapter) { a.onInterim = fn }
}

func WithMetrics(m *observability.Metrics) AdapterOption {
	return func(a *Adapter) { a.metrics = m }
}

func WithLogger(l zerolog.Logger) AdapterOption {
	return func(a *Adapter) { a.log = l.With().Str("component", "voice").Logger() }
}

func NewAdapter(stt STTProvider, tts TTSProvider, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		stt:         stt,
		tts:         tts,
		recognition: DefaultRecognitionOptions(),
		speech:      DefaultSpeechSettings(),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type captureHandle struct {
	id            string
	session       STTSession
	stopRequested bool
	done          chan struct{}
	once          sync.Once
}

// stop must be called with Adapter.mu held.
func (h *captureHandle) stop() {
	h.once.Do(func() {
		close(h.done)
		if h.session != nil {
			_ = h.session.Close()
		}
	})
}

type speechHandle struct {
	id     string
	stream TTSStream
	done   chan struct{}
	once   sync.Once
}

// finish must be called with Adapter.mu held.
func (h *speechHandle) finish(cancel bool) {
	h.once.Do(func() {
		close(h.done)
		if cancel && h.stream != nil {
			_ = h.stream.Cancel()
		}
	})
}

func (a *Adapter) CanListen() bool { return a.stt != nil }

func (a *Adapter) CanSpeak() bool { return a.tts != nil }

// Listening reports whether a capture session is active.
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capture != nil
}

// ListenOnce captures one utterance and returns its final transcript. When a
// capture is already active it does nothing and returns ErrCaptureActive.
func (a *Adapter) ListenOnce(ctx context.Context) (string, error) {
	return a.listen(ctx, false)
}

// Listen is ListenOnce, except that an active capture is aborted first.
func (a *Adapter) Listen(ctx context.Context) (string, error) {
	return a.listen(ctx, true)
}

// StopListening asks the active capture to finish with what it has heard.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture == nil {
		return
	}
	a.capture.stopRequested = true
	if a.capture.session != nil {
		_ = a.capture.session.Stop()
	}
}

// FeedAudio forwards client audio to the active capture, if any.
func (a *Adapter) FeedAudio(ctx context.Context, audioBase64 string, sampleRate int) error {
	a.mu.Lock()
	h := a.capture
	var sess STTSession
	if h != nil {
		sess = h.session
	}
	a.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.SendAudioChunk(ctx, audioBase64, sampleRate)
}

func (a *Adapter) listen(ctx context.Context, preempt bool) (string, error) {
	if a.stt == nil {
		return "", ErrSpeechUnsupported
	}

	h := &captureHandle{id: uuid.NewString(), done: make(chan struct{})}
	a.mu.Lock()
	if a.capture != nil {
		if !preempt {
			a.mu.Unlock()
			return "", ErrCaptureActive
		}
		a.log.Debug().Str("capture_id", a.capture.id).Msg("aborting active capture")
		a.capture.stop()
	}
	a.capture = h
	a.mu.Unlock()

	sess, events, err := a.stt.StartSession(ctx, h.id, a.recognition)
	if err != nil {
		a.releaseCapture(h)
		if errors.Is(err, ErrSpeechUnsupported) {
			return "", err
		}
		a.metrics.ObserveCaptureError(string(CodeUnknown))
		return "", &CaptureError{Code: CodeUnknown, Detail: err.Error()}
	}

	a.mu.Lock()
	if a.capture != h {
		a.mu.Unlock()
		_ = sess.Close()
		return "", &CaptureError{Code: CodeAborted}
	}
	h.session = sess
	if h.stopRequested {
		_ = sess.Stop()
	}
	a.mu.Unlock()
	defer a.releaseCapture(h)

	var finals []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-h.done:
			a.metrics.ObserveCaptureError(string(CodeAborted))
			return "", &CaptureError{Code: CodeAborted}
		case ev, ok := <-events:
			if !ok {
				select {
				case <-h.done:
					return "", &CaptureError{Code: CodeAborted}
				default:
				}
				transcript := normalizeTranscript(finals)
				if transcript == "" {
					return "", ErrNoTranscript
				}
				return transcript, nil
			}
			switch ev.Type {
			case STTEventPartial:
				if a.onInterim != nil && strings.TrimSpace(ev.Text) != "" {
					a.onInterim(ev.Text)
				}
			case STTEventFinal:
				finals = append(finals, ev.Text)
			case STTEventError:
				code := ev.Code
				if code == "" {
					code = CodeUnknown
				}
				a.metrics.ObserveCaptureError(string(code))
				a.log.Debug().Str("capture_id", h.id).Str("code", string(code)).Str("detail", ev.Detail).Msg("capture failed")
				return "", &CaptureError{Code: code, Detail: ev.Detail}
			}
		}
	}
}

func (a *Adapter) releaseCapture(h *captureHandle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture == h {
		a.capture = nil
	}
	h.stop()
}

func normalizeTranscript(segments []string) string {
	return strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
}

// Speak synthesises text and blocks until playback ends. Any utterance already
// playing is cancelled first and its caller receives ErrSpeechInterrupted.
func (a *Adapter) Speak(ctx context.Context, text string) error {
	text = sanitizeSpeechText(text)
	if text == "" {
		return nil
	}
	if a.tts == nil {
		return ErrSynthesisUnsupported
	}

	voices, err := a.tts.Voices(ctx)
	if err != nil {
		a.log.Debug().Err(err).Msg("voice list unavailable; using engine default")
	}
	u := Utterance{
		ID:     uuid.NewString(),
		Text:   text,
		Voice:  SelectVoice(voices),
		Rate:   a.speech.Rate,
		Pitch:  a.speech.Pitch,
		Volume: a.speech.Volume,
		Lang:   a.speech.Lang,
	}

	h := &speechHandle{id: u.ID, done: make(chan struct{})}
	a.mu.Lock()
	if a.speaking != nil {
		a.speaking.finish(true)
	}
	a.speaking = h
	a.mu.Unlock()

	stream, err := a.tts.StartUtterance(ctx, u)
	if err != nil {
		a.releaseSpeech(h, false)
		return fmt.Errorf("start utterance: %w", err)
	}

	a.mu.Lock()
	if a.speaking != h {
		a.mu.Unlock()
		_ = stream.Cancel()
		return ErrSpeechInterrupted
	}
	h.stream = stream
	a.mu.Unlock()

	started := time.Now()
	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			a.releaseSpeech(h, true)
			return ctx.Err()
		case <-h.done:
			return ErrSpeechInterrupted
		case ev, ok := <-events:
			if !ok {
				select {
				case <-h.done:
					return ErrSpeechInterrupted
				default:
				}
			}
			if !ok || ev.Type == TTSEventFinal {
				a.releaseSpeech(h, false)
				a.log.Debug().Str("utterance_id", h.id).Dur("took", time.Since(started)).Msg("utterance finished")
				return nil
			}
			if ev.Type == TTSEventError {
				a.releaseSpeech(h, false)
				return fmt.Errorf("speech synthesis failed: %s %s", ev.Code, ev.Detail)
			}
		}
	}
}

// SpeakAsync speaks text in the background and calls onDone exactly once
// with the result.
func (a *Adapter) SpeakAsync(text string, onDone func(error)) {
	go func() {
		err := a.Speak(context.Background(), text)
		if onDone != nil {
			onDone(err)
		}
	}()
}

// Speaking reports whether an utterance is in flight.
func (a *Adapter) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking != nil
}

// CancelSpeech stops the current utterance, if any.
func (a *Adapter) CancelSpeech() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.speaking != nil {
		a.speaking.finish(true)
		a.speaking = nil
	}
}

func (a *Adapter) releaseSpeech(h *speechHandle, cancel bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.speaking == h {
		a.speaking = nil
	}
	h.finish(cancel)
}

// Close aborts any active capture and utterance.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.capture != nil {
		a.capture.stop()
		a.capture = nil
	}
	if a.speaking != nil {
		a.speaking.finish(true)
		a.speaking = nil
	}
}
