package auditreports

import "context"

// Repo lists the audit report assets that must be retained.
type Repo interface {
	ListAssets(ctx context.Context) ([]Asset, error)
}
