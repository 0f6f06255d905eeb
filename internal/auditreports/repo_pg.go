package auditreports

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// ListAssets returns every live audit report asset.
func (r *PGRepo) ListAssets(ctx context.Context) ([]Asset, error) {
	const query = `
SELECT user_id, tenant_id, start_date, end_date, name, metadata
FROM audit_report_assets
WHERE deleted_at IS NULL`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		var rawMeta []byte
		if err := rows.Scan(&a.UserID, &a.TenantID, &a.StartDate, &a.EndDate, &a.Name, &rawMeta); err != nil {
			return nil, err
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for audit asset %q: %w", a.Name, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
