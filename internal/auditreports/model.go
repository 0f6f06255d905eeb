package auditreports

import "time"

// File is one physical output of a generated report.
type File struct {
	URL      string `json:"url"`
	FilePath string `json:"filePath"`
	Filename string `json:"filename"`
}

// Asset is a generated audit report whose files must stay in the blob store.
type Asset struct {
	UserID    string
	TenantID  string
	StartDate time.Time
	EndDate   time.Time
	Name      string
	Metadata  []File
}

// RetainedNames collects every blob name referenced by asset metadata.
// Both the file path and the bare filename are kept when they differ.
func RetainedNames(assets []Asset) map[string]struct{} {
	out := make(map[string]struct{})
	for _, asset := range assets {
		for _, f := range asset.Metadata {
			if f.Filename != "" {
				out[f.Filename] = struct{}{}
			}
			if f.FilePath != "" {
				out[f.FilePath] = struct{}{}
			}
		}
	}
	return out
}
