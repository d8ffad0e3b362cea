package llm

import (
	"context"
	"errors"
	"fmt"
)

// Completer runs a single text completion against a text inference service.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Describer runs a vision-capable model over one image.
type Describer interface {
	DescribeImage(ctx context.Context, img Image, instructions string) (string, error)
}

// Transcriber converts speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio, opts TranscribeOptions) (string, error)
}

// Options tune a completion call.
type Options struct {
	Temperature float32
	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Image is either inline bytes or a URL the provider can fetch.
type Image struct {
	Bytes    []byte
	URL      string
	MimeType string
}

// Audio is an audio (or audio-bearing video) payload for transcription.
type Audio struct {
	Bytes    []byte
	FileName string
}

// TranscribeOptions tune a transcription call.
type TranscribeOptions struct {
	Language string
}

// ErrNotConfigured is returned when credentials, model or endpoint are missing.
var ErrNotConfigured = errors.New("inference service not configured")

// StatusError is returned for non-2xx responses from an inference provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: http status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// PlaceholderClient satisfies every inference interface and always reports ErrNotConfigured.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	_ = ctx
	_ = prompt
	_ = opts
	return "", ErrNotConfigured
}

// DescribeImage returns ErrNotConfigured.
func (PlaceholderClient) DescribeImage(ctx context.Context, img Image, instructions string) (string, error) {
	_ = ctx
	_ = img
	_ = instructions
	return "", ErrNotConfigured
}

// Transcribe returns ErrNotConfigured.
func (PlaceholderClient) Transcribe(ctx context.Context, audio Audio, opts TranscribeOptions) (string, error) {
	_ = ctx
	_ = audio
	_ = opts
	return "", ErrNotConfigured
}

var (
	_ Completer   = PlaceholderClient{}
	_ Describer   = PlaceholderClient{}
	_ Transcriber = PlaceholderClient{}
)
