// Package api wires the HTTP command surface over the lifecycle subsystem.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Adlikkk/gamehost-one/internal/api/handlers"
	"github.com/Adlikkk/gamehost-one/internal/api/middleware"
	"github.com/Adlikkk/gamehost-one/internal/auth"
	"github.com/Adlikkk/gamehost-one/internal/backup"
	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/console"
	"github.com/Adlikkk/gamehost-one/internal/events"
	"github.com/Adlikkk/gamehost-one/internal/fetch"
	"github.com/Adlikkk/gamehost-one/internal/logging"
	"github.com/Adlikkk/gamehost-one/internal/process"
)

// SetupRouter configures and returns the HTTP router
func SetupRouter(
	cfg *config.Config,
	registry *config.Registry,
	meta *config.MetaStore,
	proc *process.Manager,
	service *backup.Service,
	fetcher *fetch.Fetcher,
	activity *logging.ActivityLogger,
	hub *events.Hub,
	buffer *console.Buffer,
	notifier events.Notifier,
) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, parseDuration(cfg.Auth.TokenDuration))

	serverHandler := handlers.NewServerHandler(cfg, registry, meta, proc, fetcher, activity, notifier)
	backupHandler := handlers.NewBackupHandler(service)
	settingsHandler := handlers.NewSettingsHandler(registry, proc, activity)
	consoleHandler := handlers.NewConsoleHandler(buffer, hub)

	protected := router.Group("/api/v1")
	protected.Use(middleware.Auth(jwtManager, cfg.Auth.Disabled))
	{
		servers := protected.Group("/servers")
		{
			servers.GET("", serverHandler.ListServers)
			servers.GET(":id", serverHandler.GetServer)
			servers.POST("", serverHandler.CreateServer)
			servers.PUT(":id", serverHandler.UpdateServer)
			servers.DELETE(":id", serverHandler.DeleteServer)

			servers.POST(":id/start", serverHandler.StartServer)
			servers.POST(":id/stop", serverHandler.StopServer)
			servers.POST(":id/restart", serverHandler.RestartServer)
			servers.GET(":id/status", serverHandler.GetServerStatus)
			servers.POST(":id/command", serverHandler.ExecuteCommand)
			servers.GET(":id/resources", serverHandler.GetResourceUsage)
			servers.GET(":id/activity", serverHandler.GetServerActivity)
			servers.POST(":id/runtime", serverHandler.InstallRuntime)

			servers.POST(":id/backups", backupHandler.CreateBackup)
			servers.GET(":id/backups", backupHandler.ListBackups)
			servers.DELETE(":id/backups/:backupId", backupHandler.DeleteBackup)
			servers.POST(":id/backups/:backupId/restore", backupHandler.RestoreBackup)
			servers.POST(":id/world/export", backupHandler.ExportWorld)
			servers.POST(":id/world/validate", backupHandler.ValidateWorldSource)
			servers.POST(":id/world/import", backupHandler.ImportWorld)
			servers.POST(":id/mods/import", backupHandler.ImportMods)

			servers.GET(":id/settings", settingsHandler.GetSettings)
			servers.PUT(":id/settings", settingsHandler.UpdateSettings)

			servers.GET(":id/console", consoleHandler.GetConsoleOutput)
		}

		protected.GET("/ws/events", consoleHandler.HandleWebSocket)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return router
}

// parseDuration parses a duration string with a sane fallback.
func parseDuration(duration string) time.Duration {
	d, err := time.ParseDuration(duration)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}
