package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Adlikkk/gamehost-one/internal/models"
)

// MetaStore persists per-server scheduler metadata as
// configDir/<id>_meta.json files.
type MetaStore struct {
	configDir string
	mutex     sync.Mutex
}

// NewMetaStore creates a meta store rooted at configDir.
func NewMetaStore(configDir string) *MetaStore {
	return &MetaStore{configDir: configDir}
}

// Get loads the metadata for a server. A missing file yields zero-value
// metadata with auto-backup off.
func (ms *MetaStore) Get(serverID string) (models.ServerMeta, error) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	data, err := os.ReadFile(ms.path(serverID))
	if err != nil {
		if os.IsNotExist(err) {
			return models.ServerMeta{}, nil
		}
		return models.ServerMeta{}, fmt.Errorf("failed to read server metadata: %w", err)
	}

	var meta models.ServerMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return models.ServerMeta{}, fmt.Errorf("failed to parse server metadata: %w", err)
	}
	return meta, nil
}

// Put stores the metadata for a server.
func (ms *MetaStore) Put(serverID string, meta models.ServerMeta) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	if err := os.MkdirAll(ms.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal server metadata: %w", err)
	}
	if err := os.WriteFile(ms.path(serverID), data, 0644); err != nil {
		return fmt.Errorf("failed to write server metadata: %w", err)
	}
	return nil
}

// TouchLastBackup records at as the last successful backup time.
func (ms *MetaStore) TouchLastBackup(serverID string, at time.Time) error {
	meta, err := ms.Get(serverID)
	if err != nil {
		return err
	}
	meta.LastBackupAt = &at
	return ms.Put(serverID, meta)
}

// Delete removes the metadata file, tolerating absence.
func (ms *MetaStore) Delete(serverID string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	err := os.Remove(ms.path(serverID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove server metadata: %w", err)
	}
	return nil
}

func (ms *MetaStore) path(serverID string) string {
	return filepath.Join(ms.configDir, fmt.Sprintf("%s_meta.json", serverID))
}
