package voice

import (
	"context"
	"encoding/base64"
	"io"
	"sync"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeRecognizeStream struct {
	mu        sync.Mutex
	sent      []*speechpb.StreamingRecognizeRequest
	responses chan *speechpb.StreamingRecognizeResponse
	recvErr   error
	closed    bool
}

func newFakeRecognizeStream(resps ...*speechpb.StreamingRecognizeResponse) *fakeRecognizeStream {
	ch := make(chan *speechpb.StreamingRecognizeResponse, len(resps))
	for _, r := range resps {
		ch <- r
	}
	close(ch)
	return &fakeRecognizeStream{responses: ch}
}

func (f *fakeRecognizeStream) Send(req *speechpb.StreamingRecognizeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeRecognizeStream) Recv() (*speechpb.StreamingRecognizeResponse, error) {
	r, ok := <-f.responses
	if !ok {
		if f.recvErr != nil {
			return nil, f.recvErr
		}
		return nil, io.EOF
	}
	return r, nil
}

func (f *fakeRecognizeStream) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestGoogleSTT(stream *fakeRecognizeStream) *GoogleSTT {
	return &GoogleSTT{
		log:  zerolog.Nop(),
		open: func(context.Context) (recognizeStream, error) { return stream, nil },
	}
}

func result(text string, final bool) *speechpb.StreamingRecognizeResponse {
	return &speechpb.StreamingRecognizeResponse{
		Results: []*speechpb.StreamingRecognitionResult{{
			IsFinal:      final,
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: 0.75}},
		}},
	}
}

func TestGoogleSTTStreamsResults(t *testing.T) {
	stream := newFakeRecognizeStream(result("I budget", false), result("I budget every month", true))
	g := newTestGoogleSTT(stream)

	opts := DefaultRecognitionOptions()
	sess, events, err := g.StartSession(context.Background(), "c1", opts)
	require.NoError(t, err)
	defer sess.Close()

	var got []STTEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, STTEventPartial, got[0].Type)
	assert.Equal(t, STTEventFinal, got[1].Type)
	assert.Equal(t, "I budget every month", got[1].Text)
	assert.InDelta(t, 0.75, got[1].Confidence, 0.001)

	cfg := stream.sent[0].GetStreamingConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "en-IN", cfg.GetConfig().GetLanguageCode())
	assert.Equal(t, int32(16000), cfg.GetConfig().GetSampleRateHertz())
	assert.Equal(t, int32(3), cfg.GetConfig().GetMaxAlternatives())
	assert.True(t, cfg.GetInterimResults())
	assert.False(t, cfg.GetSingleUtterance())
}

func TestGoogleSTTForwardsAudioUntilStopped(t *testing.T) {
	stream := newFakeRecognizeStream()
	g := newTestGoogleSTT(stream)

	sess, _, err := g.StartSession(context.Background(), "c1", DefaultRecognitionOptions())
	require.NoError(t, err)

	pcm := []byte{1, 2, 3, 4}
	require.NoError(t, sess.SendAudioChunk(context.Background(), base64.StdEncoding.EncodeToString(pcm), 16000))
	assert.Error(t, sess.SendAudioChunk(context.Background(), "%%%", 16000))

	require.NoError(t, sess.Stop())
	require.NoError(t, sess.SendAudioChunk(context.Background(), base64.StdEncoding.EncodeToString(pcm), 16000))
	require.NoError(t, sess.Close())

	stream.mu.Lock()
	defer stream.mu.Unlock()
	assert.True(t, stream.closed)
	require.Len(t, stream.sent, 2)
	assert.Equal(t, pcm, stream.sent[1].GetAudioContent())
}

func TestGoogleSTTMapsStreamErrors(t *testing.T) {
	stream := newFakeRecognizeStream()
	stream.recvErr = status.Error(codes.Unavailable, "connection reset")
	g := newTestGoogleSTT(stream)

	_, events, err := g.StartSession(context.Background(), "c1", DefaultRecognitionOptions())
	require.NoError(t, err)

	ev, ok := <-events
	require.True(t, ok)
	assert.Equal(t, STTEventError, ev.Type)
	assert.Equal(t, CodeNetwork, ev.Code)
}

func TestGoogleSTTMapsResponseErrors(t *testing.T) {
	stream := newFakeRecognizeStream(&speechpb.StreamingRecognizeResponse{
		Error: &rpcstatus.Status{Code: int32(codes.OutOfRange), Message: "Audio Timeout Error"},
	})
	g := newTestGoogleSTT(stream)

	_, events, err := g.StartSession(context.Background(), "c1", DefaultRecognitionOptions())
	require.NoError(t, err)

	ev := <-events
	assert.Equal(t, CodeNoSpeech, ev.Code)
	assert.Equal(t, "Audio Timeout Error", ev.Detail)
}

func TestCodeFromGRPC(t *testing.T) {
	assert.Equal(t, CodeNotAllowed, codeFromGRPC(codes.PermissionDenied))
	assert.Equal(t, CodeNotAllowed, codeFromGRPC(codes.Unauthenticated))
	assert.Equal(t, CodeAborted, codeFromGRPC(codes.Canceled))
	assert.Equal(t, CodeNetwork, codeFromGRPC(codes.DeadlineExceeded))
	assert.Equal(t, CodeUnknown, codeFromGRPC(codes.Internal))
}

func TestAdapterOverGoogleSTT(t *testing.T) {
	stream := newFakeRecognizeStream(result("track", false), result("I track my expenses", true))
	a := NewAdapter(newTestGoogleSTT(stream), nil)

	got, err := a.ListenOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I track my expenses", got)
}
