package attachments

import (
	"fmt"
	"strings"
)

// Type classifies an attachment by the medium holding its bytes.
type Type string

const (
	TypeImage    Type = "image"
	TypeVideo    Type = "video"
	TypeAudio    Type = "audio"
	TypeDocument Type = "document"
	TypeText     Type = "text"
)

// MetadataOriginalFilename is the metadata key carrying the uploaded file name.
const MetadataOriginalFilename = "originalFilename"

// Attachment is a file accepted for an update, persisted before the update is committed.
type Attachment struct {
	ID          int64
	UpdateID    string
	EncounterID int64
	PatientID   int64
	Type        Type
	Metadata    map[string]any
}

// OriginalFilename returns the uploaded file name recorded in metadata.
func (a Attachment) OriginalFilename() string {
	if a.Metadata == nil {
		return ""
	}
	switch v := a.Metadata[MetadataOriginalFilename].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// RemovalRequest identifies the backing data a strategy must delete.
type RemovalRequest struct {
	ID               int64
	EncounterID      int64
	UpdateID         string
	OriginalFilename string
}

// Removal extracts the fields a removal strategy needs.
func (a Attachment) Removal() RemovalRequest {
	return RemovalRequest{
		ID:               a.ID,
		EncounterID:      a.EncounterID,
		UpdateID:         a.UpdateID,
		OriginalFilename: a.OriginalFilename(),
	}
}

// ParseType normalizes a stored type string.
func ParseType(raw string) Type {
	return Type(strings.ToLower(strings.TrimSpace(raw)))
}
