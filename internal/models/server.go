package models

import "time"

// LaunchStrategy selects how a server process is assembled into a command
// line.
type LaunchStrategy string

const (
	// LaunchJar starts the server with "java ... -jar server.jar nogui".
	LaunchJar LaunchStrategy = "jar"
	// LaunchArgsFile starts the server through an @-arguments file, the
	// layout used by modded server installers.
	LaunchArgsFile LaunchStrategy = "argsfile"
)

// ProcessState is the lifecycle state of a managed server process.
type ProcessState string

const (
	StateStopped  ProcessState = "stopped"
	StateStarting ProcessState = "starting"
	StateRunning  ProcessState = "running"
	StateError    ProcessState = "error"
)

// ServerConfig is the durable record for one installed server instance.
type ServerConfig struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ServerType string         `json:"server_type"` // "vanilla", "paper", "forge", ...
	Version    string         `json:"version"`
	MemoryGB   int            `json:"memory_gb"`
	Port       int            `json:"port"`
	OnlineMode bool           `json:"online_mode"`
	InstallDir string         `json:"install_dir"`
	Strategy   LaunchStrategy `json:"launch_strategy"`
	// Linked marks an install directory owned outside this application.
	// Linked servers are never deleted from disk.
	Linked    bool      `json:"linked"`
	CreatedAt time.Time `json:"created_at"`
}

// ServerMeta holds per-server scheduler state, stored separately from the
// registry so that scheduler writes never race config edits.
type ServerMeta struct {
	AutoBackup      bool `json:"auto_backup"`
	IntervalMinutes int  `json:"interval_minutes"`
	// CronExpr, when set, overrides IntervalMinutes with a cron schedule.
	CronExpr     string     `json:"cron_expr,omitempty"`
	LastBackupAt *time.Time `json:"last_backup_at,omitempty"`
}

// StatusResponse is returned by the status command.
type StatusResponse struct {
	ServerID string       `json:"server_id"`
	State    ProcessState `json:"state"`
	PID      int          `json:"pid,omitempty"`
	UptimeS  int64        `json:"uptime_seconds,omitempty"`
}

// ResourceUsage is a point-in-time sample of the child process.
type ResourceUsage struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
	MemLimitMB float64 `json:"mem_limit_mb"`
}

// CommandRequest represents a console command request
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}
