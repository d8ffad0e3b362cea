package extract

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

func (o *Orchestrator) extractText(ctx context.Context, cfg Config, kind Kind, in input) (Result, error) {
	text, used, err := runChain(ctx, string(kind), cfg.MinTextChars, []method{
		{name: "local", run: func(ctx context.Context) (string, error) {
			if len(in.data) == 0 {
				return "", ErrMethodUnavailable
			}
			if kind == KindDOCX {
				return docxText(in.data)
			}
			if !utf8.Valid(in.data) {
				return "", errors.New("text file is not valid UTF-8")
			}
			return string(in.data), nil
		}},
		{name: "direct-convert", run: func(ctx context.Context) (string, error) {
			if o.Converter == nil || kind != KindDOCX {
				return "", ErrMethodUnavailable
			}
			return o.Converter.ConvertToText(ctx, in.conversionInput())
		}},
	})
	if err != nil {
		var chainErr *ChainError
		if !errors.As(err, &chainErr) {
			return Result{}, err
		}
		return Result{Diagnostic: withAttempts(fmt.Sprintf("document contains no more than %d characters of readable text", cfg.MinTextChars), chainErr)}, nil
	}
	return Result{Text: text, Succeeded: true, Method: used}, nil
}
