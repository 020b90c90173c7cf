package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/events"
	"github.com/Adlikkk/gamehost-one/internal/fetch"
	"github.com/Adlikkk/gamehost-one/internal/logging"
	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/process"
	"github.com/Adlikkk/gamehost-one/internal/properties"
)

// ServerHandler handles server registry and process control requests.
type ServerHandler struct {
	cfg      *config.Config
	registry *config.Registry
	meta     *config.MetaStore
	proc     *process.Manager
	fetcher  *fetch.Fetcher
	activity *logging.ActivityLogger
	notifier events.Notifier
}

// NewServerHandler creates a new server handler
func NewServerHandler(
	cfg *config.Config,
	registry *config.Registry,
	meta *config.MetaStore,
	proc *process.Manager,
	fetcher *fetch.Fetcher,
	activity *logging.ActivityLogger,
	notifier events.Notifier,
) *ServerHandler {
	if notifier == nil {
		notifier = events.NopNotifier{}
	}
	return &ServerHandler{
		cfg:      cfg,
		registry: registry,
		meta:     meta,
		proc:     proc,
		fetcher:  fetcher,
		activity: activity,
		notifier: notifier,
	}
}

// CreateServerRequest is the body for POST /servers.
type CreateServerRequest struct {
	Name       string `json:"name" binding:"required"`
	ServerType string `json:"server_type"`
	Version    string `json:"version"`
	MemoryGB   int    `json:"memory_gb"`
	Port       int    `json:"port"`
	OnlineMode *bool  `json:"online_mode"`
	Strategy   string `json:"launch_strategy"`
	// InstallDir links an existing installation instead of creating one.
	InstallDir string `json:"install_dir"`
}

// ListServers returns all registered servers.
func (h *ServerHandler) ListServers(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.GetAll())
}

// GetServer returns one server by id.
func (h *ServerHandler) GetServer(c *gin.Context) {
	server, ok := h.registry.GetByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}
	c.JSON(http.StatusOK, server)
}

// CreateServer registers a new server and scaffolds its install directory.
func (h *ServerHandler) CreateServer(c *gin.Context) {
	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	onlineMode := true
	if req.OnlineMode != nil {
		onlineMode = *req.OnlineMode
	}
	port := req.Port
	if port == 0 {
		port = 25565
	}

	server := models.ServerConfig{
		Name:       req.Name,
		ServerType: req.ServerType,
		Version:    req.Version,
		MemoryGB:   req.MemoryGB,
		Port:       port,
		OnlineMode: onlineMode,
		Strategy:   models.LaunchStrategy(req.Strategy),
	}

	if req.InstallDir != "" {
		server.InstallDir = req.InstallDir
		server.Linked = true
	} else {
		server.InstallDir = filepath.Join(h.cfg.Storage.ServersDir, sanitizeName(req.Name))
	}

	created, err := h.registry.Add(server)
	if err != nil {
		respondError(c, err)
		return
	}

	if !created.Linked {
		if err := scaffoldInstallDir(created); err != nil {
			// Roll the registry entry back rather than leave a half-made server.
			h.registry.Delete(created.ID)
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, created)
}

// UpdateServer modifies a server's registry entry.
func (h *ServerHandler) UpdateServer(c *gin.Context) {
	existing, ok := h.registry.GetByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var req CreateServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing.Name = req.Name
	if req.ServerType != "" {
		existing.ServerType = req.ServerType
	}
	if req.Version != "" {
		existing.Version = req.Version
	}
	if req.MemoryGB != 0 {
		existing.MemoryGB = req.MemoryGB
	}
	if req.Port != 0 {
		existing.Port = req.Port
	}
	if req.OnlineMode != nil {
		existing.OnlineMode = *req.OnlineMode
	}
	if req.Strategy != "" {
		existing.Strategy = models.LaunchStrategy(req.Strategy)
	}

	if err := h.registry.Update(existing); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, existing)
}

// DeleteServer removes a server from the registry and, for servers this
// application installed, its directory on disk.
func (h *ServerHandler) DeleteServer(c *gin.Context) {
	serverID := c.Param("id")
	server, ok := h.registry.GetByID(serverID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	if h.proc.ActiveServerID() == serverID && h.proc.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "Server is currently running"})
		return
	}

	if err := h.registry.Delete(serverID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.meta.Delete(serverID); err != nil {
		log.Printf("[API] Failed to remove metadata for %s: %v", serverID, err)
	}

	if !server.Linked {
		if err := os.RemoveAll(server.InstallDir); err != nil {
			log.Printf("[API] Failed to remove install directory %s: %v", server.InstallDir, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Server deleted"})
}

// StartServer starts the server process.
// POST /servers/:id/start
func (h *ServerHandler) StartServer(c *gin.Context) {
	serverID := c.Param("id")
	server, ok := h.registry.GetByID(serverID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	if active := h.proc.ActiveServerID(); active != "" && active != serverID {
		c.JSON(http.StatusConflict, gin.H{"error": "Another server is currently running"})
		return
	}

	err := h.proc.Start(server, h.javaPath())
	h.activity.LogOperation(serverID, logging.ActivityServerStart, "start server", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.proc.Status())
}

// StopServer stops the active server process. Stopping a server that is not
// running succeeds without doing anything.
// POST /servers/:id/stop
func (h *ServerHandler) StopServer(c *gin.Context) {
	serverID := c.Param("id")
	if _, ok := h.registry.GetByID(serverID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	if active := h.proc.ActiveServerID(); active != "" && active != serverID {
		c.JSON(http.StatusConflict, gin.H{"error": "Another server is currently running"})
		return
	}

	err := h.proc.Stop()
	h.activity.LogOperation(serverID, logging.ActivityServerStop, "stop server", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.proc.Status())
}

// RestartServer stops and then starts the server process.
// POST /servers/:id/restart
func (h *ServerHandler) RestartServer(c *gin.Context) {
	serverID := c.Param("id")
	server, ok := h.registry.GetByID(serverID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	if active := h.proc.ActiveServerID(); active != "" && active != serverID {
		c.JSON(http.StatusConflict, gin.H{"error": "Another server is currently running"})
		return
	}

	if err := h.proc.Stop(); err != nil {
		respondError(c, err)
		return
	}
	err := h.proc.Start(server, h.javaPath())
	h.activity.LogOperation(serverID, logging.ActivityServerRestart, "restart server", err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.proc.Status())
}

// GetServerStatus reports the process state for a server.
// GET /servers/:id/status
func (h *ServerHandler) GetServerStatus(c *gin.Context) {
	serverID := c.Param("id")
	if _, ok := h.registry.GetByID(serverID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	status := h.proc.Status()
	if status.ServerID != serverID {
		status = models.StatusResponse{ServerID: serverID, State: models.StateStopped}
	}
	c.JSON(http.StatusOK, status)
}

// ExecuteCommand sends one console command to the running server.
// POST /servers/:id/command
func (h *ServerHandler) ExecuteCommand(c *gin.Context) {
	serverID := c.Param("id")

	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.proc.ActiveServerID() != serverID {
		c.JSON(http.StatusConflict, gin.H{"error": "Server is not running"})
		return
	}

	err := h.proc.SendCommand(req.Command)
	h.activity.LogOperation(serverID, logging.ActivityCommandExecute, "command: "+req.Command, err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Command sent"})
}

// GetResourceUsage samples CPU and memory of the running server process.
// GET /servers/:id/resources
func (h *ServerHandler) GetResourceUsage(c *gin.Context) {
	serverID := c.Param("id")
	server, ok := h.registry.GetByID(serverID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	if h.proc.ActiveServerID() != serverID || !h.proc.IsRunning() {
		c.JSON(http.StatusOK, models.ResourceUsage{MemLimitMB: float64(server.MemoryGB) * 1024})
		return
	}

	usage, err := h.proc.ResourceUsage(float64(server.MemoryGB) * 1024)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

// GetServerActivity returns the audit trail for a server.
// GET /servers/:id/activity
func (h *ServerHandler) GetServerActivity(c *gin.Context) {
	serverID := c.Param("id")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	activities, err := h.activity.Recent(serverID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

// InstallRuntimeRequest is the body for POST /servers/:id/runtime.
type InstallRuntimeRequest struct {
	MajorVersion int `json:"major_version" binding:"required"`
}

// InstallRuntime downloads, verifies, and installs a Java runtime.
// POST /servers/:id/runtime
func (h *ServerHandler) InstallRuntime(c *gin.Context) {
	serverID := c.Param("id")
	if _, ok := h.registry.GetByID(serverID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var req InstallRuntimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	installDir, err := h.fetcher.FetchAndExtractRuntime(req.MajorVersion, h.cfg.Storage.RuntimeDir,
		func(processed, total int64) {
			h.notifier.Progress(serverID, events.TypeFetchProgress, processed, total)
		})
	h.activity.LogOperation(serverID, logging.ActivityRuntimeInstall,
		"install java "+strconv.Itoa(req.MajorVersion), err)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"install_dir": installDir})
}

// javaPath returns the managed runtime's java binary, or "java" from PATH
// when no managed runtime is installed.
func (h *ServerHandler) javaPath() string {
	if path, err := fetch.JavaBinary(h.cfg.Storage.RuntimeDir); err == nil {
		return path
	}
	return "java"
}

// scaffoldInstallDir prepares a fresh install directory: accepted EULA,
// JVM memory arguments, and a properties file carrying the configured port
// and online mode.
func scaffoldInstallDir(server models.ServerConfig) error {
	if err := os.MkdirAll(server.InstallDir, 0755); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to create install directory")
	}

	if err := os.WriteFile(filepath.Join(server.InstallDir, "eula.txt"), []byte("eula=true\n"), 0644); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to write eula.txt")
	}

	if err := process.WriteJVMArgs(server.InstallDir, server.MemoryGB); err != nil {
		return err
	}

	return properties.UpdateFile(filepath.Join(server.InstallDir, "server.properties"), map[string]string{
		"server-port": strconv.Itoa(server.Port),
		"online-mode": strconv.FormatBool(server.OnlineMode),
		"level-name":  "world",
	})
}

// sanitizeName turns a display name into a filesystem-safe directory name.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
