package attachments

import "context"

// Repo is the durable-store query surface the sweeper depends on.
type Repo interface {
	// ListUncommitted returns attachments whose update id matches no committed update.
	ListUncommitted(ctx context.Context) ([]Attachment, error)
	// Delete removes the attachment row. Deleting a missing row is not an error.
	Delete(ctx context.Context, id int64, updateID string) error
}
