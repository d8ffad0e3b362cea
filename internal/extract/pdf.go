package extract

import (
	"context"
	"errors"
	"fmt"

	"chart-qa-backend/internal/conversion"
	"chart-qa-backend/internal/shared/telemetry"
)

// extractPDF never substitutes placeholder text: a failed chain yields an empty, failed Result.
func (o *Orchestrator) extractPDF(ctx context.Context, cfg Config, in input) (Result, error) {
	text, used, err := o.runPDFChain(ctx, cfg, in)
	if err != nil {
		var chainErr *ChainError
		if !errors.As(err, &chainErr) {
			return Result{}, err
		}
		telemetry.Warn("pdf_extraction_failed", map[string]any{
			"file_name": in.fileName,
			"error":     chainErr.Error(),
		})
		return Result{Diagnostic: withAttempts(pdfDiagnostic(inspectPDF(in.data), cfg.MinTextChars), chainErr)}, nil
	}
	return Result{Text: text, Succeeded: true, Method: used}, nil
}

// runPDFChain returns the accepted text or an error; it is also the tail of the slide chain.
func (o *Orchestrator) runPDFChain(ctx context.Context, cfg Config, in input) (string, string, error) {
	return runChain(ctx, "pdf", cfg.MinTextChars, []method{
		{name: "convert", run: func(ctx context.Context) (string, error) {
			if o.Converter == nil {
				return "", ErrMethodUnavailable
			}
			return o.convertPDF(ctx, in)
		}},
		{name: "multipart-convert", run: func(ctx context.Context) (string, error) {
			if o.Converter == nil || len(in.data) == 0 {
				return "", ErrMethodUnavailable
			}
			return o.Converter.ConvertToTextMultipart(ctx, pdfFileName(in.fileName), in.data)
		}},
		{name: "text-layer", run: func(ctx context.Context) (string, error) {
			if len(in.data) == 0 {
				return "", ErrMethodUnavailable
			}
			return pdfTextLayer(in.data)
		}},
	})
}

// convertPDF uploads inline bytes first when possible; an upload failure falls back to sending bytes inline.
func (o *Orchestrator) convertPDF(ctx context.Context, in input) (string, error) {
	conv := in.conversionInput()
	if in.ref == "" && len(in.data) > 0 {
		ref, err := o.Converter.UploadFile(ctx, pdfFileName(in.fileName), in.data)
		switch {
		case err == nil:
			conv = conversion.Input{Ref: ref, FileName: in.fileName}
		case IsConfigurationError(err) || ctx.Err() != nil:
			return "", err
		default:
			telemetry.Warn("pdf_upload_failed", map[string]any{
				"file_name": in.fileName,
				"error":     err.Error(),
			})
		}
	}
	if conv.Ref == "" && len(conv.Bytes) == 0 {
		return "", fmt.Errorf("%w: no bytes or reference to convert", ErrMethodUnavailable)
	}
	return o.Converter.ConvertToText(ctx, conv)
}

func pdfFileName(name string) string {
	if name == "" {
		return "document.pdf"
	}
	return name
}
