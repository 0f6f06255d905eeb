package attachments

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

// ListUncommitted anti-joins attachments against committed updates in one query.
func (r *PGRepo) ListUncommitted(ctx context.Context) ([]Attachment, error) {
	const query = `
SELECT a.id, a.update_id, a.encounter_id, a.patient_id, a.type, a.metadata
FROM attachments a
LEFT JOIN updates u ON u.id = a.update_id
WHERE u.id IS NULL
ORDER BY a.created_at ASC`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		var a Attachment
		var rawType string
		var rawMeta []byte
		if err := rows.Scan(&a.ID, &a.UpdateID, &a.EncounterID, &a.PatientID, &rawType, &rawMeta); err != nil {
			return nil, err
		}
		a.Type = ParseType(rawType)
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &a.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for attachment %d: %w", a.ID, err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes one attachment row.
func (r *PGRepo) Delete(ctx context.Context, id int64, updateID string) error {
	const query = `DELETE FROM attachments WHERE id = $1 AND update_id = $2`
	_, err := r.DB.ExecContext(ctx, query, id, updateID)
	return err
}

var _ Repo = (*PGRepo)(nil)
