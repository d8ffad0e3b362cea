package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"chart-qa-backend/internal/queue"
)

type fakeSQS struct {
	deleted []string
	err     error
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeProcessor struct {
	err  error
	jobs []queue.Message
}

func (f *fakeProcessor) RunJob(ctx context.Context, msg queue.Message) error {
	_ = ctx
	f.jobs = append(f.jobs, msg)
	return f.err
}

func sqsMessage(t *testing.T, id string, msg queue.Message) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String("r-" + id),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{}
	msg := sqsMessage(t, "m1", queue.Message{JobID: "job-1", ChartID: "chart-1", RequestID: "req-1", IncludeAIAnalysis: true})

	handleMessage(context.Background(), client, "queue", proc, msg)

	if len(client.deleted) != 1 || client.deleted[0] != "r-m1" {
		t.Fatalf("expected delete of r-m1, got %v", client.deleted)
	}
	if len(proc.jobs) != 1 || proc.jobs[0].ChartID != "chart-1" || !proc.jobs[0].IncludeAIAnalysis {
		t.Fatalf("unexpected jobs %+v", proc.jobs)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{err: errors.New("boom")}
	msg := sqsMessage(t, "m2", queue.Message{JobID: "job-2", ChartID: "chart-2"})

	handleMessage(context.Background(), client, "queue", proc, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesUnprocessableMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{bad-json"},
		{name: "empty body", body: "   "},
		{name: "missing chart", body: `{"jobId":"job-3","requestId":"req-3"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeSQS{}
			proc := &fakeProcessor{}
			msg := sqstypes.Message{
				MessageId:     aws.String("m3"),
				ReceiptHandle: aws.String("r3"),
				Body:          aws.String(tt.body),
			}

			handleMessage(context.Background(), client, "queue", proc, msg)

			if len(client.deleted) != 1 {
				t.Fatalf("expected delete, got %d", len(client.deleted))
			}
			if len(proc.jobs) != 0 {
				t.Fatalf("expected no processing, got %d jobs", len(proc.jobs))
			}
		})
	}
}

func TestWorkerDeletesAfterCancellation(t *testing.T) {
	client := &fakeSQS{}
	proc := &fakeProcessor{}
	msg := sqsMessage(t, "m4", queue.Message{JobID: "job-4", ChartID: "chart-4"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	handleMessage(ctx, client, "queue", proc, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete after shutdown began, got %d", len(client.deleted))
	}
}

func TestReceiveCountAndEnvInt(t *testing.T) {
	if got := receiveCount(sqstypes.Message{Attributes: map[string]string{"ApproximateReceiveCount": "3"}}); got != 3 {
		t.Fatalf("receiveCount = %d", got)
	}
	if got := receiveCount(sqstypes.Message{}); got != 0 {
		t.Fatalf("receiveCount without attributes = %d", got)
	}
	t.Setenv("QA_TEST_INT", "-1")
	if got := envInt("QA_TEST_INT", 7); got != 7 {
		t.Fatalf("envInt negative = %d", got)
	}
	t.Setenv("QA_TEST_INT", "5")
	if got := envInt("QA_TEST_INT", 7); got != 5 {
		t.Fatalf("envInt = %d", got)
	}
}
