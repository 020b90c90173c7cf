package console

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogWriter appends captured console lines to a per-session log file.
type LogWriter struct {
	serverID string
	logPath  string
	file     *os.File
	mu       sync.Mutex
}

// NewLogWriter opens a fresh console log file for one server session.
func NewLogWriter(serverID, logDir string) (*LogWriter, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("console_%s_%s.log", serverID, timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.Printf("[LogWriter] Console log for server %s: %s", serverID, logPath)
	return &LogWriter{serverID: serverID, logPath: logPath, file: file}, nil
}

// WriteLine appends one timestamped line.
func (lw *LogWriter) WriteLine(line string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	if _, err := fmt.Fprintf(lw.file, "[%s] %s\n", timestamp, line); err != nil {
		return fmt.Errorf("failed to write log: %w", err)
	}
	return nil
}

// Path returns the log file location.
func (lw *LogWriter) Path() string {
	return lw.logPath
}

// Close flushes and closes the log file.
func (lw *LogWriter) Close() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.file.Close()
}
