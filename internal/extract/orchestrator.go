package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"chart-qa-backend/internal/conversion"
	"chart-qa-backend/internal/llm"
	"chart-qa-backend/internal/shared/metrics"
	"chart-qa-backend/internal/shared/storage/object"
	"chart-qa-backend/internal/shared/telemetry"
)

// Converter is the OCR/conversion service contract the chains depend on.
type Converter interface {
	UploadFile(ctx context.Context, fileName string, data []byte) (string, error)
	ConvertToText(ctx context.Context, in conversion.Input) (string, error)
	ConvertToTextMultipart(ctx context.Context, fileName string, data []byte) (string, error)
	ConvertOfficeToPdf(ctx context.Context, in conversion.Input) (conversion.Converted, error)
	VideoToFrames(ctx context.Context, in conversion.Input, frameCount int) ([]conversion.Frame, error)
}

// Frame is a video frame rendered by the caller.
type Frame struct {
	Timestamp string `json:"timestamp"`
	Image     []byte `json:"image,omitempty"`
	URL       string `json:"url,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
}

// Source identifies one file to extract.
type Source struct {
	// Ref is an http(s) URL or an object store key.
	Ref          string
	Bytes        []byte
	DeclaredKind string
	FileName     string
	MimeType     string
	// Size is the original file size; zero means len(Bytes).
	Size   int64
	Frames []Frame
}

// SourceBreakdown reports how much text each video sub-extraction produced.
type SourceBreakdown struct {
	AudioChars  int `json:"audioChars"`
	VisualChars int `json:"visualChars"`
}

// Result is the outcome of one extraction.
type Result struct {
	Text            string          `json:"content"`
	Succeeded       bool            `json:"extracted"`
	Diagnostic      string          `json:"diagnostic,omitempty"`
	Method          string          `json:"method,omitempty"`
	Kind            Kind            `json:"kind"`
	SourceBreakdown SourceBreakdown `json:"sourceBreakdown"`
}

// Orchestrator dispatches sources to the chain for their kind.
type Orchestrator struct {
	Config Config
	// Converter may be nil; methods needing it are then skipped.
	Converter  Converter
	Vision     llm.Describer
	Speech     llm.Transcriber
	Invoker    *llm.Invoker
	Store      object.ObjectStore
	HTTPClient *http.Client
}

// Extract turns a source into text. Extraction failures are reported in the Result;
// the error is non-nil only for configuration errors and cancellation.
func (o *Orchestrator) Extract(ctx context.Context, src Source) (Result, error) {
	cfg := o.Config.withDefaults()

	data, err := o.resolve(ctx, src, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		// The conversion service can still fetch a URL we could not.
		if remoteRef(src.Ref) == "" || o.Converter == nil || errors.Is(err, ErrFetchNotAllowed) {
			kind := Sniff(src.DeclaredKind, src.MimeType, src.FileName, nil)
			return o.finish(Result{Kind: kind, Diagnostic: "could not read source file: " + err.Error()}), nil
		}
		telemetry.Warn("extraction_fetch_failed", map[string]any{
			"file_name": src.FileName,
			"error":     err.Error(),
		})
		data = nil
	}

	kind := Sniff(src.DeclaredKind, src.MimeType, src.FileName, data)
	size := src.Size
	if size <= 0 {
		size = int64(len(data))
	}
	in := input{
		ref:      remoteRef(src.Ref),
		data:     data,
		fileName: src.FileName,
		size:     size,
		frames:   src.Frames,
	}

	var res Result
	switch kind {
	case KindPDF:
		res, err = o.extractPDF(ctx, cfg, in)
	case KindSlides:
		res, err = o.extractSlides(ctx, cfg, in)
	case KindVideo:
		res, err = o.extractVideo(ctx, cfg, in)
	case KindText, KindDOCX:
		res, err = o.extractText(ctx, cfg, kind, in)
	default:
		res = Result{Diagnostic: fmt.Sprintf("%v: %q (mime %q)", ErrUnsupportedKind, src.FileName, src.MimeType)}
	}
	if err != nil {
		return Result{}, err
	}
	res.Kind = kind
	return o.finish(res), nil
}

func (o *Orchestrator) finish(res Result) Result {
	res.Text = strings.TrimSpace(res.Text)
	res.Succeeded = res.Succeeded && res.Text != ""
	if res.Succeeded {
		res.Diagnostic = ""
	} else if res.Diagnostic == "" {
		res.Diagnostic = "no content extracted"
	}
	metrics.IncExtraction(res.Succeeded)
	return res
}

// input is a resolved source handed to a chain.
type input struct {
	ref      string
	data     []byte
	fileName string
	size     int64
	frames   []Frame
}

func (in input) conversionInput() conversion.Input {
	if in.ref != "" {
		return conversion.Input{Ref: in.ref, FileName: in.fileName}
	}
	return conversion.Input{Bytes: in.data, FileName: in.fileName}
}

// resolve loads source bytes from inline data, an http(s) URL, or the object store.
func (o *Orchestrator) resolve(ctx context.Context, src Source, cfg Config) ([]byte, error) {
	if len(src.Bytes) > 0 {
		return src.Bytes, nil
	}
	ref := strings.TrimSpace(src.Ref)
	if ref == "" {
		return nil, ErrNoSource
	}
	if remoteRef(ref) != "" {
		return o.fetch(ctx, ref, cfg)
	}
	if o.Store == nil {
		return nil, fmt.Errorf("storage key %q given but no object store configured", ref)
	}
	body, err := o.Store.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	defer body.Close()
	return readLimited(body, cfg.MaxSourceBytes)
}

func (o *Orchestrator) fetch(ctx context.Context, url string, cfg Config) ([]byte, error) {
	client := http.DefaultClient
	if o.HTTPClient != nil {
		client = o.HTTPClient
	}
	fetchCtx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if len(cfg.FetchAllowHosts) > 0 {
		if !hostAllowed(req.URL.Hostname(), cfg.FetchAllowHosts) {
			return nil, fmt.Errorf("%w: %s", ErrFetchNotAllowed, req.URL.Hostname())
		}
		restricted := *client
		restricted.CheckRedirect = func(next *http.Request, via []*http.Request) error {
			if !hostAllowed(next.URL.Hostname(), cfg.FetchAllowHosts) {
				return fmt.Errorf("%w: redirect to %s", ErrFetchNotAllowed, next.URL.Hostname())
			}
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		}
		client = &restricted
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: http status %d", url, resp.StatusCode)
	}
	return readLimited(resp.Body, cfg.MaxSourceBytes)
}

func hostAllowed(host string, allow []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, entry := range allow {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case strings.HasPrefix(entry, "."):
			if host == entry[1:] || strings.HasSuffix(host, entry) {
				return true
			}
		case host == entry:
			return true
		}
	}
	return false
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("source exceeds %d bytes", limit)
	}
	return data, nil
}

func remoteRef(ref string) string {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref
	}
	return ""
}

// method is one strategy of a chain.
type method struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// runChain tries methods in order and returns the first text longer than minChars.
// Configuration errors and cancellation stop the chain immediately.
func runChain(ctx context.Context, chain string, minChars int, methods []method) (string, string, error) {
	chainErr := &ChainError{Chain: chain}
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		text, err := m.run(ctx)
		if err == nil {
			text = strings.TrimSpace(text)
			if n := utf8.RuneCountInString(text); n <= minChars {
				err = fmt.Errorf("%w: %d characters", ErrInsufficientContent, n)
			}
		}
		if err == nil {
			return text, m.name, nil
		}
		if IsConfigurationError(err) {
			return "", "", err
		}
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		if !errors.Is(err, ErrMethodUnavailable) {
			telemetry.Warn("extraction_method_failed", map[string]any{
				"chain":  chain,
				"method": m.name,
				"error":  err.Error(),
			})
		}
		chainErr.Attempts = append(chainErr.Attempts, attemptError{Method: m.name, Err: err})
	}
	return "", "", chainErr
}
