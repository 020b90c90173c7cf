package backup

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

const manifestFile = "manifest.json"

// ManifestStore reads and writes per-server backup manifests under
// <root>/<serverID>/manifest.json. The manifest file is the single source of
// truth for which backups exist; archive files without a manifest row are
// invisible to the application.
type ManifestStore struct {
	root string
}

// NewManifestStore creates a store rooted at the backups directory.
func NewManifestStore(root string) *ManifestStore {
	return &ManifestStore{root: root}
}

// ServerDir returns the directory holding a server's archives and manifest.
func (ms *ManifestStore) ServerDir(serverID string) string {
	return filepath.Join(ms.root, serverID)
}

// Load reads a server's manifest. A missing file yields an empty manifest.
func (ms *ManifestStore) Load(serverID string) (models.BackupManifest, error) {
	var manifest models.BackupManifest

	data, err := os.ReadFile(filepath.Join(ms.ServerDir(serverID), manifestFile))
	if os.IsNotExist(err) {
		return manifest, nil
	}
	if err != nil {
		return manifest, apperr.Wrap(apperr.KindIOFailure, err, "failed to read backup manifest")
	}

	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, apperr.Wrap(apperr.KindIOFailure, err, "failed to parse backup manifest")
	}
	return manifest, nil
}

// Save writes a server's manifest, creating the server directory if needed.
func (ms *ManifestStore) Save(serverID string, manifest models.BackupManifest) error {
	dir := ms.ServerDir(serverID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create backup directory")
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to encode backup manifest")
	}

	if err := os.WriteFile(filepath.Join(dir, manifestFile), data, 0644); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to write backup manifest")
	}
	return nil
}

// Append loads the manifest, adds an entry, and saves it back.
func (ms *ManifestStore) Append(serverID string, entry models.BackupEntry) error {
	manifest, err := ms.Load(serverID)
	if err != nil {
		return err
	}
	manifest.Entries = append(manifest.Entries, entry)
	return ms.Save(serverID, manifest)
}

// Get returns the entry with the given id.
func (ms *ManifestStore) Get(serverID, backupID string) (models.BackupEntry, error) {
	manifest, err := ms.Load(serverID)
	if err != nil {
		return models.BackupEntry{}, err
	}
	for _, entry := range manifest.Entries {
		if entry.ID == backupID {
			return entry, nil
		}
	}
	return models.BackupEntry{}, apperr.New(apperr.KindNotFound, "backup not found: %s", backupID)
}

// Remove drops the entry with the given id from the manifest and returns it.
func (ms *ManifestStore) Remove(serverID, backupID string) (models.BackupEntry, error) {
	manifest, err := ms.Load(serverID)
	if err != nil {
		return models.BackupEntry{}, err
	}

	for i, entry := range manifest.Entries {
		if entry.ID == backupID {
			manifest.Entries = append(manifest.Entries[:i], manifest.Entries[i+1:]...)
			if err := ms.Save(serverID, manifest); err != nil {
				return models.BackupEntry{}, err
			}
			return entry, nil
		}
	}
	return models.BackupEntry{}, apperr.New(apperr.KindNotFound, "backup not found: %s", backupID)
}
