package staging

import "errors"

// ErrNotFound indicates no live entry exists for a key. Expired entries are reported the same way.
var ErrNotFound = errors.New("staging entry not found")

// Entry marks an update as being authored. Its key is the provisional update id.
type Entry struct {
	UpdateID    string `json:"-"`
	EncounterID int64  `json:"encounterId"`
	UserID      string `json:"userId"`
}
