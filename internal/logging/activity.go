package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ActivityLogger keeps a durable audit of lifecycle and data operations in a
// local SQLite database.
type ActivityLogger struct {
	db *sql.DB
	mu sync.Mutex
}

// Activity represents a logged operation
type Activity struct {
	Timestamp    time.Time              `json:"timestamp"`
	ServerID     string                 `json:"server_id"`
	ActivityType string                 `json:"activity_type"`
	Description  string                 `json:"description"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Activity type constants
const (
	ActivityServerStart    = "server.start"
	ActivityServerStop     = "server.stop"
	ActivityServerRestart  = "server.restart"
	ActivityStatusChange   = "server.status_change"
	ActivityCommandExecute = "command.execute"
	ActivitySettingsUpdate = "settings.update"
	ActivityBackupCreate   = "backup.create"
	ActivityBackupRestore  = "backup.restore"
	ActivityBackupDelete   = "backup.delete"
	ActivityWorldImport    = "world.import"
	ActivityWorldExport    = "world.export"
	ActivityModsImport     = "mods.import"
	ActivityRuntimeInstall = "runtime.install"
	ActivityError          = "error"
)

// NewActivityLogger opens (or creates) the activity database at dbPath.
func NewActivityLogger(dbPath string) (*ActivityLogger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	absPath = strings.ReplaceAll(absPath, "\\", "/")

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", absPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping activity database: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		server_id TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		description TEXT NOT NULL,
		metadata TEXT,
		success INTEGER NOT NULL,
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_activity_server ON activity_log(server_id, timestamp);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create activity schema: %w", err)
	}

	log.Printf("[ActivityLogger] Initialized (database: %s)", dbPath)
	return &ActivityLogger{db: db}, nil
}

// LogActivity appends one row to the audit log.
func (al *ActivityLogger) LogActivity(activity *Activity) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	var metadata []byte
	if activity.Metadata != nil {
		var err error
		metadata, err = json.Marshal(activity.Metadata)
		if err != nil {
			metadata = nil
		}
	}

	_, err := al.db.Exec(
		`INSERT INTO activity_log (timestamp, server_id, activity_type, description, metadata, success, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activity.Timestamp, activity.ServerID, activity.ActivityType, activity.Description,
		string(metadata), boolToInt(activity.Success), activity.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// LogOperation records an operation outcome. err may be nil.
func (al *ActivityLogger) LogOperation(serverID, activityType, description string, err error) {
	activity := &Activity{
		ServerID:     serverID,
		ActivityType: activityType,
		Description:  description,
		Success:      err == nil,
	}
	if err != nil {
		activity.ErrorMessage = err.Error()
	}
	if logErr := al.LogActivity(activity); logErr != nil {
		log.Printf("[ActivityLogger] Failed to record %s: %v", activityType, logErr)
	}
}

// LogStatusChange records a state transition.
func (al *ActivityLogger) LogStatusChange(serverID, oldStatus, newStatus string) {
	al.LogOperation(serverID, ActivityStatusChange,
		fmt.Sprintf("Status changed: %s -> %s", oldStatus, newStatus), nil)
}

// Recent returns up to limit rows for a server, newest first. An empty
// serverID returns rows for all servers.
func (al *ActivityLogger) Recent(serverID string, limit int) ([]Activity, error) {
	al.mu.Lock()
	defer al.mu.Unlock()

	if limit < 1 {
		limit = 50
	}

	query := `SELECT timestamp, server_id, activity_type, description, metadata, success, error_message
		FROM activity_log`
	args := []interface{}{}
	if serverID != "" {
		query += " WHERE server_id = ?"
		args = append(args, serverID)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := al.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		var metadata sql.NullString
		var success int
		var errMsg sql.NullString
		if err := rows.Scan(&a.Timestamp, &a.ServerID, &a.ActivityType, &a.Description, &metadata, &success, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		a.Success = success != 0
		a.ErrorMessage = errMsg.String
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &a.Metadata)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// CleanupOldActivities deletes rows older than maxAge.
func (al *ActivityLogger) CleanupOldActivities(maxAge time.Duration) error {
	al.mu.Lock()
	defer al.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	_, err := al.db.Exec("DELETE FROM activity_log WHERE timestamp < ?", cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup activity log: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (al *ActivityLogger) Close() error {
	return al.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
