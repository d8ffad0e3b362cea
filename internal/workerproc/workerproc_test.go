package workerproc

import (
	"context"
	"errors"
	"testing"

	"chart-qa-backend/internal/queue"
)

type recordingProcessor struct {
	got []queue.Message
	err error
}

func (r *recordingProcessor) RunJob(ctx context.Context, msg queue.Message) error {
	_ = ctx
	r.got = append(r.got, msg)
	return r.err
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(body)
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
		unrec   bool
	}{
		{name: "valid", body: `{"jobId":"j1","chartId":"c1"}`},
		{name: "patient only", body: `{"jobId":"j1","patientId":"p1"}`},
		{name: "empty", body: "  ", wantErr: true, unrec: true},
		{name: "bad json", body: "{", wantErr: true, unrec: true},
		{name: "missing chart", body: `{"jobId":"j1"}`, wantErr: true, unrec: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, meta, err := ParseMessage(tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessage err=%v wantErr=%v", err, tt.wantErr)
			}
			if Unrecoverable(err) != tt.unrec {
				t.Fatalf("Unrecoverable=%v want %v", Unrecoverable(err), tt.unrec)
			}
			if tt.body != "" && meta.BodyLen != len(tt.body) {
				t.Fatalf("expected body len %d, got %d", len(tt.body), meta.BodyLen)
			}
		})
	}
}

func TestHandleMessageRunsJob(t *testing.T) {
	proc := &recordingProcessor{}
	body := encode(t, queue.Message{JobID: "j1", ChartID: "c1", IncludeAIAnalysis: true, RequestID: "r1"})

	if err := HandleMessage(context.Background(), proc, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(proc.got) != 1 || proc.got[0].ChartID != "c1" || !proc.got[0].IncludeAIAnalysis {
		t.Fatalf("unexpected jobs %+v", proc.got)
	}
}

func TestHandleMessageUsesParsedMessage(t *testing.T) {
	proc := &recordingProcessor{}
	ctx := WithParsedMessage(context.Background(), queue.Message{JobID: "from-ctx", ChartID: "c2"})

	if err := HandleMessage(ctx, proc, "ignored"); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proc.got[0].JobID != "from-ctx" {
		t.Fatalf("expected parsed message from context, got %+v", proc.got[0])
	}
}

func TestHandleMessageWrapsProcessError(t *testing.T) {
	boom := errors.New("boom")
	proc := &recordingProcessor{err: boom}
	err := HandleMessage(context.Background(), proc, encode(t, queue.Message{JobID: "j3", ChartID: "c3"}))

	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if procErr.JobID != "j3" || !errors.Is(err, boom) {
		t.Fatalf("unexpected process error %+v", procErr)
	}
	if Unrecoverable(err) {
		t.Fatalf("processing failures must stay retryable")
	}
}

func TestHandleMessageWithoutProcessor(t *testing.T) {
	if err := HandleMessage(context.Background(), nil, `{"chartId":"c"}`); err == nil {
		t.Fatalf("expected error without processor")
	}
}
