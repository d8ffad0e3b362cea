package conversion

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "ocr-key", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient("  ", "key", 0); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestConvertToTextResponseShapes(t *testing.T) {
	long := strings.Repeat("Skilled nursing visit documented. ", 5)
	encoded := base64.StdEncoding.EncodeToString([]byte(long))

	tests := []struct {
		name     string
		response func(serverURL string) string
	}{
		{name: "body", response: func(string) string { return `{"body":"` + long + `"}` }},
		{name: "text", response: func(string) string { return `{"text":"` + long + `"}` }},
		{name: "content", response: func(string) string { return `{"content":"` + long + `"}` }},
		{name: "result", response: func(string) string { return `{"result":"` + long + `"}` }},
		{name: "url", response: func(u string) string { return `{"url":"` + u + `/files/out.txt"}` }},
		{name: "files data", response: func(string) string { return `{"Files":[{"FileData":"` + encoded + `"}]}` }},
		{name: "files url", response: func(u string) string { return `{"Files":[{"Url":"` + u + `/files/out.txt"}]}` }},
		{name: "plain text", response: func(string) string { return long }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var srvURL string
			client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/files/out.txt" {
					if r.Header.Get("Authorization") != "Bearer ocr-key" {
						t.Errorf("download missing auth header")
					}
					_, _ = w.Write([]byte(long))
					return
				}
				_, _ = w.Write([]byte(tt.response(srvURL)))
			})
			srvURL = server.URL

			got, err := client.ConvertToText(context.Background(), Input{Ref: "https://files.example/doc.pdf"})
			if err != nil {
				t.Fatalf("ConvertToText: %v", err)
			}
			if got != strings.TrimSpace(long) {
				t.Fatalf("ConvertToText = %q", got)
			}
		})
	}
}

func TestConvertToTextPriorityOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"from result","text":"from text","body":"  "}`))
	})
	got, err := client.ConvertToText(context.Background(), Input{Bytes: []byte("%PDF")})
	if err != nil {
		t.Fatalf("ConvertToText: %v", err)
	}
	if got != "from text" {
		t.Fatalf("ConvertToText = %q, want text to win over result", got)
	}
}

func TestConvertToTextSendsInlineBytes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if _, ok := body["url"]; ok {
			t.Errorf("unexpected url for inline input")
		}
		data, _ := base64.StdEncoding.DecodeString(body["fileData"].(string))
		if string(data) != "%PDF-1.7" {
			t.Errorf("fileData = %q", data)
		}
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	})
	if _, err := client.ConvertToText(context.Background(), Input{FileName: "a.pdf", Bytes: []byte("%PDF-1.7")}); err != nil {
		t.Fatalf("ConvertToText: %v", err)
	}
}

func TestConvertToTextNoContent(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"done"}`))
	})
	_, err := client.ConvertToText(context.Background(), Input{Ref: "x"})
	if !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestStatusError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	_, err := client.ConvertToText(context.Background(), Input{Ref: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 StatusError, got %v", err)
	}
}

func TestUploadFileAndMultipart(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		switch r.URL.Path {
		case uploadPath:
			_, _ = w.Write([]byte(`{"Files":[{"Url":"https://ocr.example/` + header.Filename + `"}]}`))
		case convertTextPath:
			if r.FormValue("output") != "text" {
				t.Errorf("missing output field")
			}
			_, _ = w.Write([]byte(`{"content":"` + string(data) + `"}`))
		}
	})

	ref, err := client.UploadFile(context.Background(), "scan.pdf", []byte("pdf"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if ref != "https://ocr.example/scan.pdf" {
		t.Fatalf("ref = %q", ref)
	}

	text, err := client.ConvertToTextMultipart(context.Background(), "scan.pdf", []byte("converted text"))
	if err != nil {
		t.Fatalf("ConvertToTextMultipart: %v", err)
	}
	if text != "converted text" {
		t.Fatalf("text = %q", text)
	}
}

func TestConvertOfficeToPdfDownloadsResult(t *testing.T) {
	var srvURL string
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case officeToPdfPath:
			_, _ = w.Write([]byte(`{"url":"` + srvURL + `/files/deck.pdf"}`))
		case "/files/deck.pdf":
			_, _ = w.Write([]byte("%PDF-1.4 deck"))
		}
	})
	srvURL = server.URL

	out, err := client.ConvertOfficeToPdf(context.Background(), Input{FileName: "deck.pptx", Bytes: []byte("pk")})
	if err != nil {
		t.Fatalf("ConvertOfficeToPdf: %v", err)
	}
	if string(out.Bytes) != "%PDF-1.4 deck" || !strings.HasSuffix(out.Ref, "/files/deck.pdf") {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestVideoToFrames(t *testing.T) {
	frameData := base64.StdEncoding.EncodeToString([]byte("jpeg-1"))
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["frameCount"] != float64(4) {
			t.Errorf("frameCount = %v", body["frameCount"])
		}
		_, _ = w.Write([]byte(`{"frames":[{"timestamp":"00:05","data":"` + frameData + `"},{"timestamp":"00:10"}]}`))
	})
	frames, err := client.VideoToFrames(context.Background(), Input{Ref: "https://files.example/v.mp4"}, 4)
	if err != nil {
		t.Fatalf("VideoToFrames: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 usable frame, got %d", len(frames))
	}
	if frames[0].Timestamp != "00:05" || string(frames[0].Bytes) != "jpeg-1" {
		t.Fatalf("unexpected frame %+v", frames[0])
	}
}

func TestDownloadRejectionFromOtherHostIsNotConfiguration(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("service key leaked to download host")
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(files.Close)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"` + files.URL + `/out.txt"}`))
	})

	_, err := client.ConvertToText(context.Background(), Input{Ref: "x"})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if errors.Is(err, ErrNotConfigured) {
		t.Fatalf("download host rejection must not read as a configuration error: %v", err)
	}
}

func TestServiceCredentialRejectionIsConfigurationError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		path   string
	}{
		{name: "convert unauthorized", status: http.StatusUnauthorized},
		{name: "convert forbidden", status: http.StatusForbidden},
		{name: "own download forbidden", status: http.StatusForbidden, path: "/files/out.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var srvURL string
			client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.path != "" && r.URL.Path == convertTextPath {
					_, _ = w.Write([]byte(`{"url":"` + srvURL + tt.path + `"}`))
					return
				}
				w.WriteHeader(tt.status)
			})
			srvURL = server.URL

			_, err := client.ConvertToText(context.Background(), Input{Ref: "x"})
			if !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestOwnsURLRequiresPathBoundary(t *testing.T) {
	client, err := NewClient("http://ocr.internal", "", 0)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !client.ownsURL("http://ocr.internal/files/a.txt") {
		t.Fatalf("expected service URL to be owned")
	}
	if client.ownsURL("http://ocr.internal.example.com/files/a.txt") {
		t.Fatalf("lookalike host must not be owned")
	}
}
