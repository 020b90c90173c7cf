package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

const registryFileName = "servers.json"

// Registry handles thread-safe access to the durable server records.
type Registry struct {
	configDir string
	mutex     sync.RWMutex
	servers   []models.ServerConfig
}

type registryFile struct {
	Servers []models.ServerConfig `json:"servers"`
}

// NewRegistry creates a registry backed by configDir/servers.json. A missing
// file starts an empty registry.
func NewRegistry(configDir string) (*Registry, error) {
	r := &Registry{
		configDir: configDir,
		servers:   []models.ServerConfig{},
	}

	if err := r.Load(); err != nil {
		return nil, err
	}

	return r, nil
}

// Load reads the registry from disk
func (r *Registry) Load() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	path := filepath.Join(r.configDir, registryFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			r.servers = []models.ServerConfig{}
			return nil
		}
		return fmt.Errorf("failed to read server registry: %w", err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse server registry: %w", err)
	}
	r.servers = file.Servers
	return nil
}

// Save writes the registry to disk
func (r *Registry) Save() error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.saveLocked()
}

func (r *Registry) saveLocked() error {
	if err := os.MkdirAll(r.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(registryFile{Servers: r.servers}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal server registry: %w", err)
	}

	path := filepath.Join(r.configDir, registryFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write server registry: %w", err)
	}
	return nil
}

// GetAll returns a copy of all server records
func (r *Registry) GetAll() []models.ServerConfig {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]models.ServerConfig, len(r.servers))
	copy(result, r.servers)
	return result
}

// GetByID returns a server record by ID
func (r *Registry) GetByID(id string) (models.ServerConfig, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, s := range r.servers {
		if s.ID == id {
			return s, true
		}
	}
	return models.ServerConfig{}, false
}

// GetByName returns a server record by display name
func (r *Registry) GetByName(name string) (models.ServerConfig, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, s := range r.servers {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return models.ServerConfig{}, false
}

// Add inserts a new server record and persists the registry.
func (r *Registry) Add(server models.ServerConfig) (models.ServerConfig, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if strings.TrimSpace(server.Name) == "" {
		return models.ServerConfig{}, apperr.New(apperr.KindUnsupportedInput, "server name must not be empty")
	}

	for _, s := range r.servers {
		if s.ID == server.ID && server.ID != "" {
			return models.ServerConfig{}, apperr.New(apperr.KindConflict, "server with ID %s already exists", server.ID)
		}
		if strings.EqualFold(s.Name, server.Name) {
			return models.ServerConfig{}, apperr.New(apperr.KindConflict, "server name %q is already in use", server.Name)
		}
	}

	if server.ID == "" {
		server.ID = uuid.NewString()
	}
	if server.CreatedAt.IsZero() {
		server.CreatedAt = time.Now()
	}
	if server.Strategy == "" {
		server.Strategy = models.LaunchJar
	}

	r.servers = append(r.servers, server)
	if err := r.saveLocked(); err != nil {
		r.servers = r.servers[:len(r.servers)-1]
		return models.ServerConfig{}, err
	}
	return server, nil
}

// Update replaces an existing server record and persists the registry.
func (r *Registry) Update(server models.ServerConfig) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, s := range r.servers {
		if s.ID == server.ID {
			for j, other := range r.servers {
				if j != i && strings.EqualFold(other.Name, server.Name) {
					return apperr.New(apperr.KindConflict, "server name %q is already in use", server.Name)
				}
			}
			r.servers[i] = server
			return r.saveLocked()
		}
	}
	return apperr.New(apperr.KindNotFound, "server %s not found", server.ID)
}

// Delete removes a server record and persists the registry.
func (r *Registry) Delete(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, s := range r.servers {
		if s.ID == id {
			r.servers = append(r.servers[:i], r.servers[i+1:]...)
			return r.saveLocked()
		}
	}
	return apperr.New(apperr.KindNotFound, "server %s not found", id)
}
