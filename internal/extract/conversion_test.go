package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chart-qa-backend/internal/conversion"
)

func TestDownloadHostRejectionMovesToNextMethod(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(files.Close)

	ocr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") && r.URL.Path == "/v1/upload":
			w.WriteHeader(http.StatusBadGateway)
		case strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/"):
			_, _ = w.Write([]byte(`{"content":"` + longText + `"}`))
		default:
			_, _ = w.Write([]byte(`{"url":"` + files.URL + `/expired/out.txt"}`))
		}
	}))
	t.Cleanup(ocr.Close)

	client, err := conversion.NewClient(ocr.URL, "ocr-key", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	o := newTestOrchestrator(client)

	res, err := o.Extract(context.Background(), Source{Bytes: []byte("%PDF-1.7 visit"), FileName: "visit.pdf"})
	if err != nil {
		t.Fatalf("Extract returned %v; a download host 403 must not be fatal", err)
	}
	if !res.Succeeded || res.Method != "multipart-convert" {
		t.Fatalf("expected multipart-convert success, got %+v", res)
	}
}

func TestServiceCredentialRejectionStopsExtraction(t *testing.T) {
	ocr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(ocr.Close)

	client, err := conversion.NewClient(ocr.URL, "stale-key", 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	o := newTestOrchestrator(client)

	_, err = o.Extract(context.Background(), Source{Bytes: []byte("%PDF-1.7 visit"), FileName: "visit.pdf"})
	if !errors.Is(err, conversion.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestChainSummarySkipsUnavailableMethods(t *testing.T) {
	chainErr := &ChainError{Chain: "pdf", Attempts: []attemptError{
		{Method: "convert", Err: ErrMethodUnavailable},
		{Method: "text-layer", Err: errors.New(strings.Repeat("x", 300))},
	}}
	got := withAttempts("no text", chainErr)
	if strings.Contains(got, "convert:") {
		t.Fatalf("unavailable method should be omitted: %q", got)
	}
	if !strings.HasPrefix(got, "no text (tried text-layer: ") || !strings.HasSuffix(got, "...)") {
		t.Fatalf("unexpected diagnostic %q", got)
	}
	if withAttempts("no text", &ChainError{}) != "no text" {
		t.Fatalf("empty chain should leave diagnostic unchanged")
	}
}

func TestFetchAllowHosts(t *testing.T) {
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "http://metadata.internal/latest", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte(longText))
	}))
	t.Cleanup(files.Close)

	tests := []struct {
		name    string
		allow   []string
		path    string
		success bool
		diag    string
	}{
		{name: "unrestricted", path: "/note.txt", success: true},
		{name: "listed host", allow: []string{"127.0.0.1"}, path: "/note.txt", success: true},
		{name: "unlisted host", allow: []string{"files.example.com"}, path: "/note.txt", diag: "not allowed"},
		{name: "redirect off list", allow: []string{"127.0.0.1"}, path: "/redirect", diag: "not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrchestrator(nil)
			o.Config.FetchAllowHosts = tt.allow

			res, err := o.Extract(context.Background(), Source{Ref: files.URL + tt.path, FileName: "note.txt"})
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if res.Succeeded != tt.success {
				t.Fatalf("succeeded=%v, want %v (%s)", res.Succeeded, tt.success, res.Diagnostic)
			}
			if tt.diag != "" && !strings.Contains(res.Diagnostic, tt.diag) {
				t.Fatalf("diagnostic %q missing %q", res.Diagnostic, tt.diag)
			}
		})
	}
}

func TestHostAllowed(t *testing.T) {
	allow := []string{"files.example.com", ".cdn.example.com"}
	cases := map[string]bool{
		"files.example.com":         true,
		"FILES.example.com.":        true,
		"cdn.example.com":           true,
		"eu.cdn.example.com":        true,
		"evilcdn.example.com":       false,
		"files.example.com.evil.io": false,
		"":                          false,
	}
	for host, want := range cases {
		if got := hostAllowed(host, allow); got != want {
			t.Fatalf("hostAllowed(%q) = %v, want %v", host, got, want)
		}
	}
}
