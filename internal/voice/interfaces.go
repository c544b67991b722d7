package voice

import "context"

type STTEventType string

const (
	STTEventPartial STTEventType = "partial"
	STTEventFinal   STTEventType = "final"
	STTEventError   STTEventType = "error"
)

type Alternative struct {
	Transcript string
	Confidence float64
}

// STTEvent is one recognition update. Text holds the top ranked alternative.
// Error events carry Code and Detail.
type STTEvent struct {
	Type         STTEventType
	Text         string
	Alternatives []Alternative
	Confidence   float64
	Code         ErrorCode
	Detail       string
	Timestamp    int64
}

type RecognitionOptions struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
	SampleRate      int
}

// STTSession is one capture. The event channel returned alongside it is
// closed when the engine ends the session.
type STTSession interface {
	// SendAudioChunk feeds server-side engines. Engines that capture on
	// their own may ignore it.
	SendAudioChunk(ctx context.Context, audioBase64 string, sampleRate int) error
	// Stop asks the engine to finish; pending results still arrive before
	// the event channel closes.
	Stop() error
	// Close aborts the capture immediately.
	Close() error
}

type STTProvider interface {
	StartSession(ctx context.Context, sessionID string, opts RecognitionOptions) (STTSession, <-chan STTEvent, error)
}

type TTSEventType string

const (
	TTSEventFinal TTSEventType = "final"
	TTSEventError TTSEventType = "error"
)

type TTSEvent struct {
	Type   TTSEventType
	Code   string
	Detail string
}

type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// Utterance is a single request to speak text.
type Utterance struct {
	ID     string
	Text   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
	Lang   string
}

type TTSStream interface {
	Events() <-chan TTSEvent
	Cancel() error
}

type TTSProvider interface {
	Voices(ctx context.Context) ([]Voice, error)
	StartUtterance(ctx context.Context, u Utterance) (TTSStream, error)
}
