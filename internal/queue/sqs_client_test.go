package queue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSender struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("m-1")}, nil
}

func TestSQSClientSendEncodesBody(t *testing.T) {
	fake := &fakeSender{}
	client := &SQSClient{client: fake, queueURL: "https://sqs.us-east-1.amazonaws.com/123/chart-qa"}

	if err := client.Send(context.Background(), Message{JobID: "job-1", ChartID: "chart-1", Version: MessageVersion}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected one send, got %d", len(fake.inputs))
	}
	in := fake.inputs[0]
	got, err := DecodeMessage([]byte(aws.ToString(in.MessageBody)))
	if err != nil {
		t.Fatalf("decode sent body: %v", err)
	}
	if got.JobID != "job-1" || got.ChartID != "chart-1" {
		t.Fatalf("unexpected body: %+v", got)
	}
	if in.MessageGroupId != nil {
		t.Fatalf("expected no group id on a standard queue")
	}
}

func TestSQSClientSendFIFOGroupsByChart(t *testing.T) {
	fake := &fakeSender{}
	client := &SQSClient{client: fake, queueURL: "https://sqs.us-east-1.amazonaws.com/123/chart-qa.fifo"}

	if err := client.Send(context.Background(), Message{JobID: "job-2", ChartID: "chart-2"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	in := fake.inputs[0]
	if aws.ToString(in.MessageGroupId) != "chart-2" || aws.ToString(in.MessageDeduplicationId) != "job-2" {
		t.Fatalf("unexpected fifo attributes: group=%q dedup=%q", aws.ToString(in.MessageGroupId), aws.ToString(in.MessageDeduplicationId))
	}
}

func TestSQSClientSendWrapsError(t *testing.T) {
	client := &SQSClient{client: &fakeSender{err: errors.New("throttled")}, queueURL: "q"}
	err := client.Send(context.Background(), Message{JobID: "job-3"})
	if err == nil || !strings.Contains(err.Error(), "sqs send message") {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestNewSQSClientRequiresQueueURL(t *testing.T) {
	if _, err := NewSQSClient(context.Background(), " ", ""); err == nil {
		t.Fatalf("expected error for empty queue url")
	}
}

func TestMemoryClientRecords(t *testing.T) {
	client := &MemoryClient{}
	if err := client.Send(context.Background(), Message{JobID: "a"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.Send(ctx, Message{JobID: "b"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if sent := client.Sent(); len(sent) != 1 || sent[0].JobID != "a" {
		t.Fatalf("unexpected recorded messages: %+v", sent)
	}
}
