package attachments

import (
	"context"
	"fmt"
	"strings"

	"carelog-backend/internal/shared/storage/blob"
	"carelog-backend/internal/shared/util"
)

// RowDeleter removes attachment rows from the durable store.
type RowDeleter interface {
	Delete(ctx context.Context, id int64, updateID string) error
}

// MediaBlobName derives the blob path of a media attachment: <encounter>/<update>/<id>_<filename>.
func MediaBlobName(req RemovalRequest) (string, error) {
	if strings.TrimSpace(req.UpdateID) == "" {
		return "", fmt.Errorf("%w: missing update id", ErrInvalidRequest)
	}
	fileName, err := util.SanitizeFileName(req.OriginalFilename)
	if err != nil {
		return "", fmt.Errorf("%w: original filename %q: %v", ErrInvalidRequest, req.OriginalFilename, err)
	}
	updateSegment, err := util.SanitizeFileName(req.UpdateID)
	if err != nil {
		return "", fmt.Errorf("%w: update id %q: %v", ErrInvalidRequest, req.UpdateID, err)
	}
	return fmt.Sprintf("%d/%s/%d_%s", req.EncounterID, updateSegment, req.ID, fileName), nil
}

// BlobRemoval deletes a media attachment's bytes from the blob store, then its row.
// The row must outlive the blob so a failed run leaves the attachment as a candidate.
type BlobRemoval struct {
	Blobs     blob.Store
	Container string
	Rows      RowDeleter
}

// Remove implements RemovalStrategy.
func (s BlobRemoval) Remove(ctx context.Context, req RemovalRequest) error {
	name, err := MediaBlobName(req)
	if err != nil {
		return err
	}
	if err := s.Blobs.Delete(ctx, s.Container, name); err != nil {
		return fmt.Errorf("delete blob %s/%s: %w", s.Container, name, err)
	}
	if s.Rows == nil {
		return nil
	}
	if err := s.Rows.Delete(ctx, req.ID, req.UpdateID); err != nil {
		return fmt.Errorf("delete attachment row %d: %w", req.ID, err)
	}
	return nil
}

// RowRemoval deletes attachments that live entirely in the durable store.
type RowRemoval struct {
	Rows RowDeleter
}

// Remove implements RemovalStrategy.
func (s RowRemoval) Remove(ctx context.Context, req RemovalRequest) error {
	if strings.TrimSpace(req.UpdateID) == "" {
		return fmt.Errorf("%w: missing update id", ErrInvalidRequest)
	}
	if err := s.Rows.Delete(ctx, req.ID, req.UpdateID); err != nil {
		return fmt.Errorf("delete attachment row %d: %w", req.ID, err)
	}
	return nil
}

// DefaultRegistry binds media types to blob removal in container and text to row removal.
func DefaultRegistry(blobs blob.Store, container string, rows RowDeleter) *Registry {
	reg := NewRegistry()
	media := BlobRemoval{Blobs: blobs, Container: container, Rows: rows}
	for _, t := range []Type{TypeImage, TypeVideo, TypeAudio, TypeDocument} {
		reg.MustRegister(t, media)
	}
	reg.MustRegister(TypeText, RowRemoval{Rows: rows})
	return reg
}
