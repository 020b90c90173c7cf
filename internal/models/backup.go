package models

import "time"

// BackupEntry is one archive in a server's backup manifest. Entries are
// immutable once written; deletion removes the row and, best-effort, the
// archive file.
type BackupEntry struct {
	ID        string    `json:"id"` // yyyyMMdd_HHmmss
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
	Path      string    `json:"path"`
	Reason    string    `json:"reason,omitempty"` // "manual", "scheduled", ...
}

// BackupManifest is the durable list of backups for one server. The manifest
// file is the single source of truth for what backups exist.
type BackupManifest struct {
	Entries []BackupEntry `json:"entries"`
}

// CreateBackupRequest represents a backup creation request
type CreateBackupRequest struct {
	IncludeSecondary bool   `json:"include_secondary"`
	Reason           string `json:"reason,omitempty"`
}

// WorldValidationResult describes a validated world import source.
type WorldValidationResult struct {
	Valid     bool   `json:"valid"`
	WorldRoot string `json:"world_root,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	StagedDir string `json:"staged_dir,omitempty"`
	Message   string `json:"message,omitempty"`
}
