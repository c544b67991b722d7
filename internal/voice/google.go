package voice

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// GoogleSTT recognises LINEAR16 audio forwarded from the client with Google
// Cloud Speech streaming recognition. Credentials come from Application
// Default Credentials.
type GoogleSTT struct {
	client *speech.Client
	open   func(ctx context.Context) (recognizeStream, error)
	log    zerolog.Logger
}

func NewGoogleSTT(ctx context.Context, log zerolog.Logger) (*GoogleSTT, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	g := &GoogleSTT{client: client, log: log.With().Str("component", "google_stt").Logger()}
	g.open = func(ctx context.Context) (recognizeStream, error) {
		return client.StreamingRecognize(ctx)
	}
	return g, nil
}

func (g *GoogleSTT) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func (g *GoogleSTT) StartSession(ctx context.Context, sessionID string, opts RecognitionOptions) (STTSession, <-chan STTEvent, error) {
	sctx, cancel := context.WithCancel(ctx)
	stream, err := g.open(sctx)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("could not start streaming recognize: %w", err)
	}

	rate := opts.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(rate),
					LanguageCode:    opts.Language,
					MaxAlternatives: int32(opts.MaxAlternatives),
				},
				InterimResults:  opts.InterimResults,
				SingleUtterance: !opts.Continuous,
			},
		},
	}); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("could not send streaming config: %w", err)
	}

	s := &googleSession{stream: stream, cancel: cancel}
	events := make(chan STTEvent, 64)
	go g.receive(sctx, sessionID, s, events)
	return s, events, nil
}

func (g *GoogleSTT) receive(ctx context.Context, sessionID string, s *googleSession, events chan<- STTEvent) {
	defer close(events)
	emit := func(ev STTEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			g.log.Debug().Err(err).Str("capture_id", sessionID).Msg("recognize stream failed")
			emit(STTEvent{Type: STTEventError, Code: codeFromGRPC(status.Code(err)), Detail: err.Error(), Timestamp: time.Now().UnixMilli()})
			return
		}
		if e := resp.GetError(); e != nil && codes.Code(e.GetCode()) != codes.OK {
			emit(STTEvent{Type: STTEventError, Code: codeFromGRPC(codes.Code(e.GetCode())), Detail: e.GetMessage(), Timestamp: time.Now().UnixMilli()})
			return
		}
		if resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			_ = s.Stop()
		}
		for _, result := range resp.GetResults() {
			if len(result.GetAlternatives()) == 0 {
				continue
			}
			ev := STTEvent{Type: STTEventPartial, Timestamp: time.Now().UnixMilli()}
			if result.GetIsFinal() {
				ev.Type = STTEventFinal
			}
			for _, alt := range result.GetAlternatives() {
				ev.Alternatives = append(ev.Alternatives, Alternative{Transcript: alt.GetTranscript(), Confidence: float64(alt.GetConfidence())})
			}
			ev.Text = ev.Alternatives[0].Transcript
			ev.Confidence = ev.Alternatives[0].Confidence
			if !emit(ev) {
				return
			}
		}
	}
}

func codeFromGRPC(c codes.Code) ErrorCode {
	switch c {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return CodeNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		return CodeNotAllowed
	case codes.Canceled, codes.Aborted:
		return CodeAborted
	case codes.OutOfRange:
		// audio timeout: nothing was said
		return CodeNoSpeech
	default:
		return CodeUnknown
	}
}

type googleSession struct {
	stream recognizeStream
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func (s *googleSession) SendAudioChunk(_ context.Context, audioBase64 string, _ int) error {
	pcm, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return fmt.Errorf("decode audio chunk: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	return s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: pcm},
	})
}

// Stop half-closes the stream; final results arrive before EOF.
func (s *googleSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	return s.stream.CloseSend()
}

func (s *googleSession) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.cancel()
	})
	return nil
}
