package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Adlikkk/gamehost-one/internal/backup"
	"github.com/Adlikkk/gamehost-one/internal/models"
	"github.com/Adlikkk/gamehost-one/internal/worldio"
)

// BackupHandler handles backup, restore, export, and import requests.
type BackupHandler struct {
	service *backup.Service
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(service *backup.Service) *BackupHandler {
	return &BackupHandler{service: service}
}

// CreateBackup archives the server's world folders.
// POST /servers/:id/backups
func (h *BackupHandler) CreateBackup(c *gin.Context) {
	var req models.CreateBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	entry, err := h.service.Backup(c.Param("id"), req.IncludeSecondary, reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// ListBackups returns the server's backup manifest entries.
// GET /servers/:id/backups
func (h *BackupHandler) ListBackups(c *gin.Context) {
	entries, err := h.service.List(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.BackupEntry{}
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteBackup removes one backup entry and its archive.
// DELETE /servers/:id/backups/:backupId
func (h *BackupHandler) DeleteBackup(c *gin.Context) {
	if err := h.service.Delete(c.Param("id"), c.Param("backupId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Backup deleted"})
}

// RestoreBackup replaces the server's world with a backup archive.
// POST /servers/:id/backups/:backupId/restore
func (h *BackupHandler) RestoreBackup(c *gin.Context) {
	if err := h.service.Restore(c.Param("id"), c.Param("backupId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Backup restored"})
}

// ExportWorldRequest is the body for POST /servers/:id/world/export.
type ExportWorldRequest struct {
	Destination      string `json:"destination" binding:"required"`
	IncludeSecondary bool   `json:"include_secondary"`
}

// ExportWorld packs the server's world into an archive at a caller-chosen
// path.
// POST /servers/:id/world/export
func (h *BackupHandler) ExportWorld(c *gin.Context) {
	var req ExportWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ExportWorld(c.Param("id"), req.Destination, req.IncludeSecondary); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "World exported", "destination": req.Destination})
}

// SourceRequest names a world or mods import source on the host filesystem.
type SourceRequest struct {
	Path string `json:"path" binding:"required"`
	Kind string `json:"kind" binding:"required"` // "dir" or "zip"
}

// ValidateWorldSource checks an import source and reports its world root.
// POST /servers/:id/world/validate
func (h *BackupHandler) ValidateWorldSource(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.ValidateWorldSource(req.Path, worldio.SourceKind(req.Kind))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ImportWorldRequest is the body for POST /servers/:id/world/import. Either
// a fresh path+kind or the staged result of an earlier validation call.
type ImportWorldRequest struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	WorldRoot string `json:"world_root"`
	StagedDir string `json:"staged_dir"`
}

// ImportWorld replaces the server's primary world with the given source.
// POST /servers/:id/world/import
func (h *BackupHandler) ImportWorld(c *gin.Context) {
	var req ImportWorldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source := models.WorldValidationResult{
		Valid:     req.WorldRoot != "",
		WorldRoot: req.WorldRoot,
		StagedDir: req.StagedDir,
	}
	if req.WorldRoot == "" {
		if req.Path == "" || req.Kind == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path and kind are required without a staged source"})
			return
		}
		var err error
		source, err = h.service.ValidateWorldSource(req.Path, worldio.SourceKind(req.Kind))
		if err != nil {
			respondError(c, err)
			return
		}
	}

	if err := h.service.ImportWorld(c.Param("id"), source); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "World imported"})
}

// ImportMods copies the .jar files from a source into the server's mods
// folder.
// POST /servers/:id/mods/import
func (h *BackupHandler) ImportMods(c *gin.Context) {
	var req SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ImportMods(c.Param("id"), req.Path, worldio.SourceKind(req.Kind)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mods imported"})
}
