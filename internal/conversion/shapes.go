package conversion

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// textExtractor pulls text out of one known response shape.
// An empty string means the shape is absent and the next extractor is tried.
type textExtractor struct {
	name    string
	extract func(ctx context.Context, c *Client, payload map[string]any) (string, error)
}

// textExtractors are tried in order; the first non-empty result wins.
// New service response shapes are added here.
var textExtractors = []textExtractor{
	{name: "body", extract: stringField("body")},
	{name: "text", extract: stringField("text")},
	{name: "content", extract: stringField("content")},
	{name: "result", extract: stringField("result")},
	{name: "url", extract: downloadField("url")},
	{name: "files.data", extract: firstFileData},
	{name: "files.url", extract: firstFileURL},
}

// refExtractors locate a file reference in upload and conversion responses.
var refExtractors = []func(payload map[string]any) string{
	func(p map[string]any) string { return str(p["url"]) },
	func(p map[string]any) string { return str(p["fileUrl"]) },
	func(p map[string]any) string { return str(p["ref"]) },
	func(p map[string]any) string {
		if f := firstFile(p); f != nil {
			return str(f["Url"])
		}
		return ""
	},
}

func stringField(key string) func(context.Context, *Client, map[string]any) (string, error) {
	return func(_ context.Context, _ *Client, payload map[string]any) (string, error) {
		return str(payload[key]), nil
	}
}

func downloadField(key string) func(context.Context, *Client, map[string]any) (string, error) {
	return func(ctx context.Context, c *Client, payload map[string]any) (string, error) {
		url := str(payload[key])
		if url == "" {
			return "", nil
		}
		data, err := c.Download(ctx, url)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func firstFileData(_ context.Context, _ *Client, payload map[string]any) (string, error) {
	f := firstFile(payload)
	if f == nil {
		return "", nil
	}
	raw := str(f["FileData"])
	if raw == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode FileData: %w", err)
	}
	return string(data), nil
}

func firstFileURL(ctx context.Context, c *Client, payload map[string]any) (string, error) {
	f := firstFile(payload)
	if f == nil {
		return "", nil
	}
	url := str(f["Url"])
	if url == "" {
		return "", nil
	}
	data, err := c.Download(ctx, url)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fileData(payload map[string]any) []byte {
	f := firstFile(payload)
	if f == nil {
		return nil
	}
	raw := str(f["FileData"])
	if raw == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	return data
}

func firstFile(payload map[string]any) map[string]any {
	files, ok := payload["Files"].([]any)
	if !ok || len(files) == 0 {
		return nil
	}
	f, _ := files[0].(map[string]any)
	return f
}

// parseFrames reads either {"frames":[{"timestamp","url"|"data"}]} or {"Files":[{"FileName","Url"|"FileData"}]}.
func parseFrames(payload map[string]any) []Frame {
	var out []Frame
	if frames, ok := payload["frames"].([]any); ok {
		for i, raw := range frames {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			frame := Frame{Timestamp: str(m["timestamp"]), Ref: str(m["url"])}
			if data := str(m["data"]); data != "" {
				if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
					frame.Bytes = decoded
				}
			}
			if frame.Timestamp == "" {
				frame.Timestamp = fmt.Sprintf("frame %d", i+1)
			}
			if frame.Ref != "" || len(frame.Bytes) > 0 {
				out = append(out, frame)
			}
		}
		return out
	}
	if files, ok := payload["Files"].([]any); ok {
		for i, raw := range files {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			frame := Frame{Timestamp: fmt.Sprintf("frame %d", i+1), Ref: str(m["Url"])}
			if data := str(m["FileData"]); data != "" {
				if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
					frame.Bytes = decoded
				}
			}
			if frame.Ref != "" || len(frame.Bytes) > 0 {
				out = append(out, frame)
			}
		}
	}
	return out
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}
