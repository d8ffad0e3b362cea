package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"chart-qa-backend/internal/llm"
)

func withChatServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	oldURL := apiURL
	apiURL = server.URL
	t.Cleanup(func() {
		apiURL = oldURL
		server.Close()
	})
}

func TestNewClientRequiresModelAndKey(t *testing.T) {
	if _, err := NewClient("key", "", ""); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for missing model, got %v", err)
	}
	if _, err := NewClient("", "gpt-4o-mini", ""); !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for missing key, got %v", err)
	}
}

func TestCompleteSendsJSONResponseFormat(t *testing.T) {
	var mu sync.Mutex
	var lastBody map[string]any
	withChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		lastBody = payload
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" {\"qualityScore\":85} "}}]}`))
	})

	client, err := NewClient("test-key", "gpt-4o-mini", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	out, err := client.Complete(context.Background(), "score this", llm.Options{JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"qualityScore":85}` {
		t.Fatalf("Complete = %q", out)
	}

	mu.Lock()
	defer mu.Unlock()
	format, ok := lastBody["response_format"].(map[string]any)
	if !ok || format["type"] != "json_object" {
		t.Fatalf("expected json_object response_format, got %v", lastBody["response_format"])
	}
	if lastBody["model"] != "gpt-4o-mini" {
		t.Fatalf("model = %v", lastBody["model"])
	}
}

func TestCompleteReturnsStatusError(t *testing.T) {
	withChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	})

	client, _ := NewClient("test-key", "gpt-4o-mini", "")
	_, err := client.Complete(context.Background(), "x", llm.Options{})
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable || statusErr.Message != "overloaded" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
	if !llm.Retryable(err) {
		t.Fatalf("expected 503 to be retryable")
	}
}

func TestCompleteUnauthorizedIsConfigurationError(t *testing.T) {
	withChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	})

	client, _ := NewClient("test-key", "gpt-4o-mini", "")
	_, err := client.Complete(context.Background(), "x", llm.Options{})
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDescribeImageSendsDataURL(t *testing.T) {
	var gotURL string
	var gotModel string
	withChatServer(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []struct {
					Type     string `json:"type"`
					ImageURL *struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotModel = payload.Model
		for _, part := range payload.Messages[0].Content {
			if part.Type == "image_url" && part.ImageURL != nil {
				gotURL = part.ImageURL.URL
			}
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Patient Education: wound care"}}]}`))
	})

	client, _ := NewClient("test-key", "gpt-4o-mini", "gpt-4o")
	out, err := client.DescribeImage(context.Background(), llm.Image{Bytes: []byte("png-bytes"), MimeType: "image/png"}, "read the text")
	if err != nil {
		t.Fatalf("DescribeImage: %v", err)
	}
	if out != "Patient Education: wound care" {
		t.Fatalf("DescribeImage = %q", out)
	}
	if gotModel != "gpt-4o" {
		t.Fatalf("model = %q, want vision model", gotModel)
	}
	if !strings.HasPrefix(gotURL, "data:image/png;base64,") {
		t.Fatalf("image url = %q", gotURL)
	}
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "audio-bytes" || header.Filename != "visit.mp4" {
				t.Errorf("unexpected upload %q %q", header.Filename, data)
			}
		}
		_, _ = w.Write([]byte(`{"text":"  Today we review fall precautions.  "}`))
	}))
	defer server.Close()
	oldURL := transcriptionURL
	transcriptionURL = server.URL
	t.Cleanup(func() { transcriptionURL = oldURL })

	client, _ := NewClient("test-key", "gpt-4o-mini", "")
	out, err := client.Transcribe(context.Background(), llm.Audio{Bytes: []byte("audio-bytes"), FileName: "visit.mp4"}, llm.TranscribeOptions{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if out != "Today we review fall precautions." {
		t.Fatalf("Transcribe = %q", out)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	client, _ := NewClient("test-key", "gpt-4o-mini", "")
	out, err := client.Transcribe(context.Background(), llm.Audio{}, llm.TranscribeOptions{})
	if err != nil || out != "" {
		t.Fatalf("Transcribe(empty) = %q, %v", out, err)
	}
}
