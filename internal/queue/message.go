package queue

import "encoding/json"

// MessageVersion is the current chart QA job payload version.
const MessageVersion = 1

// Message is a queued chart QA job.
type Message struct {
	JobID             string `json:"jobId"`
	ChartID           string `json:"chartId"`
	PatientID         string `json:"patientId,omitempty"`
	IncludeAIAnalysis bool   `json:"includeAIAnalysis"`
	ForceReExtract    bool   `json:"forceReExtract"`
	RequestID         string `json:"requestId"`
	EnqueuedAt        string `json:"enqueuedAt"`
	Version           int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message. Payloads without
// includeAIAnalysis default to running the model.
func DecodeMessage(payload []byte) (Message, error) {
	msg := Message{IncludeAIAnalysis: true}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
