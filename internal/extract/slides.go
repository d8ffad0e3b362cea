package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"chart-qa-backend/internal/shared/telemetry"
)

func (o *Orchestrator) extractSlides(ctx context.Context, cfg Config, in input) (Result, error) {
	text, used, err := runChain(ctx, "slides", cfg.MinTextChars, []method{
		{name: "office-to-pdf", run: func(ctx context.Context) (string, error) {
			if o.Converter == nil {
				return "", ErrMethodUnavailable
			}
			converted, err := o.Converter.ConvertOfficeToPdf(ctx, in.conversionInput())
			if err != nil {
				return "", err
			}
			text, _, err := o.runPDFChain(ctx, cfg, input{
				ref:      converted.Ref,
				data:     converted.Bytes,
				fileName: pdfNameFor(in.fileName),
			})
			return text, err
		}},
		{name: "direct-convert", run: func(ctx context.Context) (string, error) {
			if o.Converter == nil {
				return "", ErrMethodUnavailable
			}
			return o.Converter.ConvertToText(ctx, in.conversionInput())
		}},
		{name: "slide-xml", run: func(ctx context.Context) (string, error) {
			if len(in.data) == 0 {
				return "", ErrMethodUnavailable
			}
			return pptxText(in.data)
		}},
	})
	if err != nil {
		var chainErr *ChainError
		if !errors.As(err, &chainErr) {
			return Result{}, err
		}
		telemetry.Warn("slides_extraction_failed", map[string]any{
			"file_name": in.fileName,
			"error":     chainErr.Error(),
		})
		return Result{Diagnostic: withAttempts(fmt.Sprintf("slide deck could not be converted and yielded no more than %d characters of text; it may contain only images", cfg.MinTextChars), chainErr)}, nil
	}
	return Result{Text: text, Succeeded: true, Method: used}, nil
}

func pdfNameFor(name string) string {
	if name == "" {
		return "slides.pdf"
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".pdf"
}
