package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the trigger payload version produced by this build.
const MessageVersion = 1

// Message asks a worker to run one janitor job.
type Message struct {
	Job        string `json:"job"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a trigger for job stamped with the enqueue time.
func NewMessage(job, requestID string, now time.Time) Message {
	return Message{
		Job:        job,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
