package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/logging"
	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/process"
	"github.com/Adlikkk/gamehost-one/internal/settings"
)

// SettingsHandler handles typed server settings requests.
type SettingsHandler struct {
	registry *config.Registry
	proc     *process.Manager
	activity *logging.ActivityLogger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(registry *config.Registry, proc *process.Manager, activity *logging.ActivityLogger) *SettingsHandler {
	return &SettingsHandler{registry: registry, proc: proc, activity: activity}
}

// GetSettings returns the server's typed settings, derived from the
// properties file when no settings file exists yet.
// GET /servers/:id/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	server, ok := h.registry.GetByID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	current, err := settings.Load(server.InstallDir)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// UpdateSettings writes the typed settings and reconciles the properties
// file. A running server keeps its live values until restart, so the update
// reports pending_restart instead of applied.
// PUT /servers/:id/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	serverID := c.Param("id")
	server, ok := h.registry.GetByID(serverID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var incoming models.ServerSettings
	if err := c.ShouldBindJSON(&incoming); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := settings.Apply(server.InstallDir, incoming)
	h.activity.LogOperation(serverID, logging.ActivitySettingsUpdate, "update settings", err)
	if err != nil {
		respondError(c, err)
		return
	}

	running := h.proc.ActiveServerID() == serverID && h.proc.IsRunning()
	c.JSON(http.StatusOK, models.ApplyResult{
		Applied:        !running,
		PendingRestart: running,
	})
}
