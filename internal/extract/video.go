package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chart-qa-backend/internal/llm"
	"chart-qa-backend/internal/shared/telemetry"
)

const (
	frameInstructions = "Transcribe all readable text visible in this video frame (slides, captions, forms, labels). " +
		"Return only the text. If there is no readable text, reply exactly NO_TEXT."
	noTextSentinel = "NO_TEXT"
)

var refusalPhrases = []string{
	"no_text",
	"i can't",
	"i cannot",
	"i am unable to",
	"i'm unable to",
	"i'm sorry",
	"i am sorry",
	"as an ai",
	"no text found",
	"no visible text",
	"no readable text",
	"no text is visible",
	"there is no text",
	"does not contain any text",
	"doesn't contain any text",
}

// isRefusal reports whether frame OCR output means "no text here" rather than content.
func isRefusal(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.EqualFold(trimmed, noTextSentinel) {
		return true
	}
	lower := strings.ToLower(trimmed)
	head := lower
	if len(head) > 80 {
		head = head[:80]
	}
	for _, phrase := range refusalPhrases {
		if strings.Contains(head, phrase) {
			return true
		}
	}
	return false
}

// extractVideo runs audio transcription and frame OCR independently and unions the results.
func (o *Orchestrator) extractVideo(ctx context.Context, cfg Config, in input) (Result, error) {
	var reasons []string

	audio, audioReason, err := o.videoAudio(ctx, cfg, in)
	if err != nil {
		return Result{}, err
	}
	if audioReason != "" {
		reasons = append(reasons, audioReason)
	}

	visual, visualReason, err := o.videoVisual(ctx, cfg, in)
	if err != nil {
		return Result{}, err
	}
	if visualReason != "" {
		reasons = append(reasons, visualReason)
	}

	res := Result{SourceBreakdown: SourceBreakdown{AudioChars: len([]rune(audio)), VisualChars: len([]rune(visual))}}
	switch {
	case audio != "" && visual != "":
		res.Text = "AUDIO TRANSCRIPT:\n" + audio + "\n\nVISUAL CONTENT:\n" + visual
		res.Method = "audio+visual"
	case audio != "":
		res.Text = audio
		res.Method = "audio"
	case visual != "":
		res.Text = visual
		res.Method = "visual"
	default:
		res.Diagnostic = strings.Join(reasons, ", ")
		if res.Diagnostic == "" {
			res.Diagnostic = "no speech or readable on-screen text found in video"
		}
		return res, nil
	}
	res.Succeeded = true
	return res, nil
}

func (o *Orchestrator) videoAudio(ctx context.Context, cfg Config, in input) (string, string, error) {
	if in.size > cfg.AudioMaxBytes {
		return "", fmt.Sprintf("file exceeds audio size limit (%s > %s)", formatMB(in.size), formatMB(cfg.AudioMaxBytes)), nil
	}
	if o.Speech == nil {
		return "", "speech-to-text service unavailable", nil
	}
	if len(in.data) == 0 {
		return "", "video bytes unavailable for transcription", nil
	}
	// Container bytes cannot be cut into a playable segment, so oversized tracks are skipped.
	if n := int64(len(in.data)); n > cfg.AudioSegmentBytes {
		return "", fmt.Sprintf("file exceeds audio segment limit (%s > %s), audio not transcribed", formatMB(n), formatMB(cfg.AudioSegmentBytes)), nil
	}
	segment := in.data

	transcript, err := o.Invoker.Invoke(ctx, "transcribe", func(ctx context.Context) (string, error) {
		return o.Speech.Transcribe(ctx, llm.Audio{Bytes: segment, FileName: in.fileName}, llm.TranscribeOptions{Language: cfg.TranscribeLang})
	}, nil)
	if err != nil {
		if IsConfigurationError(err) || ctx.Err() != nil {
			return "", "", err
		}
		telemetry.Warn("video_transcription_failed", map[string]any{
			"file_name": in.fileName,
			"error":     err.Error(),
		})
		return "", "audio transcription failed", nil
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", "no speech detected in audio track", nil
	}
	return transcript, "", nil
}

func (o *Orchestrator) videoVisual(ctx context.Context, cfg Config, in input) (string, string, error) {
	frames := in.frames
	if len(frames) == 0 {
		rendered, err := o.renderFrames(ctx, cfg, in)
		if err != nil {
			if IsConfigurationError(err) || ctx.Err() != nil {
				return "", "", err
			}
			// Server-side frame rendering is optional infrastructure.
			telemetry.Info("video_frames_unavailable", map[string]any{
				"file_name": in.fileName,
				"error":     err.Error(),
			})
			return "", "no visual frames available", nil
		}
		frames = rendered
	}
	if o.Vision == nil {
		return "", "vision inference service unavailable", nil
	}

	var parts []string
	for i, frame := range frames {
		img := llm.Image{Bytes: frame.Image, MimeType: frame.MimeType}
		if len(img.Bytes) == 0 {
			img.URL = frame.URL
		}
		text, err := o.Invoker.Invoke(ctx, "frame-ocr", func(ctx context.Context) (string, error) {
			return o.Vision.DescribeImage(ctx, img, frameInstructions)
		}, nil)
		if err != nil {
			if IsConfigurationError(err) || ctx.Err() != nil {
				return "", "", err
			}
			telemetry.Warn("frame_ocr_failed", map[string]any{
				"file_name": in.fileName,
				"frame":     i,
				"error":     err.Error(),
			})
			continue
		}
		text = strings.TrimSpace(text)
		if isRefusal(text) || len([]rune(text)) <= cfg.MinFrameChars {
			continue
		}
		label := strings.TrimSpace(frame.Timestamp)
		if label == "" {
			label = fmt.Sprintf("frame %d", i+1)
		}
		parts = append(parts, fmt.Sprintf("[%s]: %s", label, text))
	}
	if len(parts) == 0 {
		return "", fmt.Sprintf("no readable text in %d video frames", len(frames)), nil
	}
	return strings.Join(parts, "\n\n"), "", nil
}

func (o *Orchestrator) renderFrames(ctx context.Context, cfg Config, in input) ([]Frame, error) {
	if o.Converter == nil {
		return nil, ErrMethodUnavailable
	}
	if in.ref == "" && len(in.data) == 0 {
		return nil, errors.New("no video bytes or reference")
	}
	rendered, err := o.Converter.VideoToFrames(ctx, in.conversionInput(), cfg.FrameCount)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, len(rendered))
	for _, f := range rendered {
		frames = append(frames, Frame{Timestamp: f.Timestamp, Image: f.Bytes, URL: f.Ref})
	}
	return frames, nil
}

func formatMB(n int64) string {
	return fmt.Sprintf("%.1fMB", float64(n)/float64(mib))
}
