package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"chart-qa-backend/internal/llm"
)

var (
	apiURL           = "https://api.openai.com/v1/chat/completions"
	transcriptionURL = "https://api.openai.com/v1/audio/transcriptions"
)

const (
	providerName       = "openai"
	transcriptionModel = "whisper-1"
	maxErrorBodyBytes  = 512
)

// Client implements llm.Completer, llm.Describer and llm.Transcriber against the OpenAI API.
type Client struct {
	apiKey      string
	model       string
	visionModel string
	httpClient  *http.Client
}

// NewClient constructs a new OpenAI client. visionModel defaults to model.
func NewClient(apiKey, model, visionModel string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI: %w", llm.ErrNotConfigured)
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required: %w", llm.ErrNotConfigured)
	}
	if strings.TrimSpace(visionModel) == "" {
		visionModel = model
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete runs a single chat completion with one user message.
func (c *Client) Complete(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	temp := opts.Temperature
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: &temp,
	}
	if opts.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return c.chat(ctx, reqBody)
}

// DescribeImage sends one image plus instructions to the vision model.
func (c *Client) DescribeImage(ctx context.Context, img llm.Image, instructions string) (string, error) {
	url := strings.TrimSpace(img.URL)
	if url == "" {
		if len(img.Bytes) == 0 {
			return "", errors.New("openai: image has neither bytes nor url")
		}
		mimeType := img.MimeType
		if mimeType == "" {
			mimeType = http.DetectContentType(img.Bytes)
		}
		url = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes)
	}
	temp := float32(0)
	reqBody := chatRequest{
		Model: c.visionModel,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: instructions},
				{Type: "image_url", ImageURL: &imageURL{URL: url}},
			},
		}},
		Temperature: &temp,
	}
	return c.chat(ctx, reqBody)
}

func (c *Client) chat(ctx context.Context, reqBody chatRequest) (string, error) {
	if c == nil || strings.TrimSpace(c.apiKey) == "" || strings.TrimSpace(reqBody.Model) == "" {
		return "", llm.ErrNotConfigured
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai response missing choices")
	}
	if parsed.Usage != nil {
		log.Printf("llm response model=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
			reqBody.Model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens, parsed.Usage.TotalTokens)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("openai response empty content")
	}
	return content, nil
}

// Transcribe uploads audio to the transcription endpoint and returns the text.
// Silent audio yields an empty string, not an error.
func (c *Client) Transcribe(ctx context.Context, audio llm.Audio, opts llm.TranscribeOptions) (string, error) {
	if c == nil || strings.TrimSpace(c.apiKey) == "" {
		return "", llm.ErrNotConfigured
	}
	if len(audio.Bytes) == 0 {
		return "", nil
	}
	fileName := strings.TrimSpace(audio.FileName)
	if fileName == "" {
		fileName = "audio.mp4"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model", transcriptionModel); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if lang := strings.TrimSpace(opts.Language); lang != "" {
		if err := mw.WriteField("language", lang); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio.Bytes); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, transcriptionURL, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req)
	if err != nil {
		return "", err
	}
	var parsed struct {
		Text  string    `json:"text"`
		Error *apiError `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("openai transcription parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("openai error: %s (%s)", parsed.Error.Message, parsed.Error.Type)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, fmt.Errorf("openai request timeout: %w", err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, &llm.StatusError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

func errorMessage(body []byte) string {
	var parsed struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodyBytes {
		msg = msg[:maxErrorBodyBytes]
	}
	return msg
}

var (
	_ llm.Completer   = (*Client)(nil)
	_ llm.Describer   = (*Client)(nil)
	_ llm.Transcriber = (*Client)(nil)
)
