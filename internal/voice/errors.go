package voice

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies recognition failures.
type ErrorCode string

const (
	CodeNoSpeech     ErrorCode = "no-speech"
	CodeAudioCapture ErrorCode = "audio-capture"
	CodeNotAllowed   ErrorCode = "not-allowed"
	CodeNetwork      ErrorCode = "network"
	CodeAborted      ErrorCode = "aborted"
	CodeUnknown      ErrorCode = "unknown"
)

const (
	MsgUnsupported  = "Speech recognition not supported. Please try Chrome or Edge browser."
	MsgNoTranscript = "I didn't catch that. Please try again!"
)

var userMessages = map[ErrorCode]string{
	CodeNoSpeech:     "I didn't hear anything. Please try again.",
	CodeAudioCapture: "Microphone not accessible. Please check permissions.",
	CodeNotAllowed:   "Microphone permission denied. Please allow microphone access.",
	CodeNetwork:      "Network error. Please check your connection.",
	CodeAborted:      "Speech recognition was stopped.",
	CodeUnknown:      "Something went wrong. Please try again.",
}

// ParseErrorCode maps an engine error string onto a known code.
func ParseErrorCode(raw string) ErrorCode {
	c := ErrorCode(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := userMessages[c]; ok {
		return c
	}
	return CodeUnknown
}

func (c ErrorCode) UserMessage() string {
	if msg, ok := userMessages[c]; ok {
		return msg
	}
	return userMessages[CodeUnknown]
}

var (
	ErrSpeechUnsupported    = errors.New("speech recognition not supported")
	ErrSynthesisUnsupported = errors.New("speech synthesis not supported")
	ErrCaptureActive        = errors.New("capture session already active")
	ErrNoTranscript         = errors.New("no transcript captured")
	ErrSpeechInterrupted    = errors.New("utterance interrupted")
)

// CaptureError is a recognition failure reported by the engine.
type CaptureError struct {
	Code   ErrorCode
	Detail string
}

func (e *CaptureError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("speech recognition error: %s", e.Code)
	}
	return fmt.Sprintf("speech recognition error: %s: %s", e.Code, e.Detail)
}

// UserMessage renders err as the text shown to the user after a failed capture.
func UserMessage(err error) string {
	var ce *CaptureError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSpeechUnsupported):
		return MsgUnsupported
	case errors.Is(err, ErrNoTranscript):
		return MsgNoTranscript
	case errors.As(err, &ce):
		return ce.Code.UserMessage()
	default:
		return CodeUnknown.UserMessage()
	}
}
