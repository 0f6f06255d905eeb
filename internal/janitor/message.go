package janitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"carelog-backend/internal/queue"
)

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ParseMessage validates and decodes a trigger payload.
// Messages that can never succeed return ErrEmptyBody, ErrDecode or ErrUnknownJob.
func ParseMessage(body string) (queue.Message, Job, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, "", meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, "", meta, ErrDecode{Meta: meta, Err: err}
	}
	job, err := ParseJob(msg.Job)
	if err != nil {
		return msg, "", meta, err
	}
	return msg, job, meta, nil
}

// IsUnrecoverable reports whether retrying a trigger can never succeed.
func IsUnrecoverable(err error) bool {
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrUnknownJob:
		return true
	default:
		return false
	}
}

// HandleMessage parses a trigger payload and runs the job it names.
func HandleMessage(ctx context.Context, apps AppProvider, body string) (Report, error) {
	msg, job, _, err := ParseMessage(body)
	if err != nil {
		return Report{}, err
	}
	return Execute(withRequestID(ctx, msg.RequestID), apps, job)
}
