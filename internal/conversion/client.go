package conversion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	uploadPath       = "/v1/upload"
	convertTextPath  = "/v1/convert/text"
	officeToPdfPath  = "/v1/convert/office-to-pdf"
	videoFramesPath  = "/v1/convert/video-frames"
	defaultTimeout   = 120 * time.Second
	maxResponseBytes = 64 << 20
)

var (
	// ErrNotConfigured is returned when no OCR/conversion endpoint is configured.
	ErrNotConfigured = errors.New("conversion service not configured")
	// ErrNoContent is returned when a response carries none of the known content shapes.
	ErrNoContent = errors.New("conversion response contained no content")
)

// StatusError is returned for non-2xx responses. FromService is set when the
// request went to the conversion service rather than a third-party download host.
type StatusError struct {
	Endpoint    string
	StatusCode  int
	Body        string
	FromService bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("conversion %s: http status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Is lets rejections of the service API key match ErrNotConfigured. A 401 or
// 403 from any other host is an ordinary failure.
func (e *StatusError) Is(target error) bool {
	if target != ErrNotConfigured || !e.FromService {
		return false
	}
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Input identifies a file either by a reference URL or by inline bytes.
type Input struct {
	Ref      string
	FileName string
	Bytes    []byte
}

// Converted is a conversion output file.
type Converted struct {
	Ref   string
	Bytes []byte
}

// Frame is one rendered video frame.
type Frame struct {
	Timestamp string
	Ref       string
	Bytes     []byte
}

// Client talks to the external OCR/conversion service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for baseURL. An empty baseURL yields ErrNotConfigured.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("OCR_API_URL is required: %w", ErrNotConfigured)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// UploadFile stores bytes on the service and returns a reference URL.
func (c *Client) UploadFile(ctx context.Context, fileName string, data []byte) (string, error) {
	payload, err := c.postMultipart(ctx, uploadPath, fileName, data, nil)
	if err != nil {
		return "", err
	}
	for _, ex := range refExtractors {
		if ref := ex(payload); ref != "" {
			return ref, nil
		}
	}
	return "", fmt.Errorf("upload: %w", ErrNoContent)
}

// ConvertToText converts a referenced or inline file into plain text.
func (c *Client) ConvertToText(ctx context.Context, in Input) (string, error) {
	payload, err := c.postJSON(ctx, convertTextPath, inputBody(in))
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, payload)
}

// ConvertToTextMultipart converts inline bytes by uploading them as a multipart form.
func (c *Client) ConvertToTextMultipart(ctx context.Context, fileName string, data []byte) (string, error) {
	payload, err := c.postMultipart(ctx, convertTextPath, fileName, data, map[string]string{"output": "text"})
	if err != nil {
		return "", err
	}
	return c.extractText(ctx, payload)
}

// ConvertOfficeToPdf converts an office document into a PDF.
func (c *Client) ConvertOfficeToPdf(ctx context.Context, in Input) (Converted, error) {
	payload, err := c.postJSON(ctx, officeToPdfPath, inputBody(in))
	if err != nil {
		return Converted{}, err
	}
	out := Converted{}
	for _, ex := range refExtractors {
		if ref := ex(payload); ref != "" {
			out.Ref = ref
			break
		}
	}
	if data := fileData(payload); len(data) > 0 {
		out.Bytes = data
	}
	if out.Ref == "" && len(out.Bytes) == 0 {
		return Converted{}, fmt.Errorf("office-to-pdf: %w", ErrNoContent)
	}
	if len(out.Bytes) == 0 {
		data, err := c.Download(ctx, out.Ref)
		if err != nil {
			return Converted{}, fmt.Errorf("office-to-pdf download: %w", err)
		}
		out.Bytes = data
	}
	return out, nil
}

// VideoToFrames asks the service to render frameCount still frames from a video.
func (c *Client) VideoToFrames(ctx context.Context, in Input, frameCount int) ([]Frame, error) {
	body := inputBody(in)
	body["frameCount"] = frameCount
	payload, err := c.postJSON(ctx, videoFramesPath, body)
	if err != nil {
		return nil, err
	}
	frames := parseFrames(payload)
	if len(frames) == 0 {
		return nil, fmt.Errorf("video-frames: %w", ErrNoContent)
	}
	for i := range frames {
		if len(frames[i].Bytes) > 0 || frames[i].Ref == "" {
			continue
		}
		data, err := c.Download(ctx, frames[i].Ref)
		if err != nil {
			return nil, fmt.Errorf("video-frames download: %w", err)
		}
		frames[i].Bytes = data
	}
	return frames, nil
}

// Download fetches a file the service returned by URL.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.ownsURL(url) {
		c.authorize(req)
	}
	return c.do(req, "download")
}

// ownsURL reports whether url points at the conversion service itself.
func (c *Client) ownsURL(url string) bool {
	return url == c.baseURL || strings.HasPrefix(url, c.baseURL+"/") || strings.HasPrefix(url, c.baseURL+"?")
}

func (c *Client) extractText(ctx context.Context, payload map[string]any) (string, error) {
	for _, ex := range textExtractors {
		text, err := ex.extract(ctx, c, payload)
		if err != nil {
			return "", fmt.Errorf("%s: %w", ex.name, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			return text, nil
		}
	}
	return "", ErrNoContent
}

func inputBody(in Input) map[string]any {
	body := map[string]any{}
	if strings.TrimSpace(in.FileName) != "" {
		body["fileName"] = in.FileName
	}
	if strings.TrimSpace(in.Ref) != "" {
		body["url"] = in.Ref
		return body
	}
	body["fileData"] = base64.StdEncoding.EncodeToString(in.Bytes)
	return body
}

func (c *Client) postJSON(ctx context.Context, path string, body map[string]any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	raw, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	return decodePayload(raw), nil
}

func (c *Client) postMultipart(ctx context.Context, path, fileName string, data []byte, fields map[string]string) (map[string]any, error) {
	if strings.TrimSpace(fileName) == "" {
		fileName = "upload.bin"
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)
	raw, err := c.do(req, path)
	if err != nil {
		return nil, err
	}
	return decodePayload(raw), nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) do(req *http.Request, endpoint string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversion %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("conversion %s read: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: snippet, FromService: c.ownsURL(req.URL.String())}
	}
	return body, nil
}

// decodePayload accepts JSON objects and treats anything else as a plain-text body.
func decodePayload(raw []byte) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err == nil && payload != nil {
		return payload
	}
	return map[string]any{"body": string(raw)}
}
