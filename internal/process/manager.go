// Package process owns the managed server child process and its lifecycle
// state machine. The application runs at most one server process at a time;
// the manager is the single slot that holds it.
package process

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/Adlikkk/gamehost-one/internal/apperr"
	"github.com/Adlikkk/gamehost-one/internal/console"
	"github.com/Adlikkk/gamehost-one/internal/events"
	"github.com/Adlikkk/gamehost-one/internal/models"
)

// readyMarker is printed by the server once startup finishes.
const readyMarker = "Done ("

// startingFallback promotes Starting to Running when the ready marker never
// arrives, matching servers that phrase their startup line differently.
const startingFallback = 8 * time.Second

const (
	stopPollInterval = 200 * time.Millisecond
	stopTimeout      = 10 * time.Second
)

// ErrNotRunning is returned when a command is sent without a live process.
var ErrNotRunning = errors.New("server is not running")

type handle struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	pid       int
	startedAt time.Time
	serverID  string
	done      chan struct{} // closed by the exit watcher
	stopping  bool          // set under the manager mutex once Stop owns this handle
	exitErr   error
}

// Manager drives the Stopped/Starting/Running/Error state machine for the
// single managed child process. All state lives behind one mutex.
type Manager struct {
	mu       sync.Mutex
	state    models.ProcessState
	active   *handle
	notifier events.Notifier
	buffer   *console.Buffer
	logDir   string
}

// NewManager creates a stopped manager. logDir may be empty to skip console
// log files.
func NewManager(notifier events.Notifier, buffer *console.Buffer, logDir string) *Manager {
	if notifier == nil {
		notifier = events.NopNotifier{}
	}
	return &Manager{
		state:    models.StateStopped,
		notifier: notifier,
		buffer:   buffer,
		logDir:   logDir,
	}
}

// Start launches the server process for config using the given java
// executable. Calling Start while Starting or Running is a successful no-op.
func (m *Manager) Start(cfg models.ServerConfig, javaPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == models.StateStarting || m.state == models.StateRunning {
		return nil
	}

	cmd, err := buildCommand(cfg, javaPath)
	if err != nil {
		return err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to open stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to open stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		m.setStateLocked(cfg.ID, models.StateError)
		// exec.ErrNotFound covers PATH lookups; fs.ErrNotExist covers an
		// absolute runtime path pointing at nothing.
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return apperr.Wrap(apperr.KindExternalToolMissing, err,
				"java was not found at %q; install a runtime first", javaPath)
		}
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to spawn server process")
	}

	h := &handle{
		cmd:       cmd,
		stdin:     stdin,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		serverID:  cfg.ID,
		done:      make(chan struct{}),
	}
	m.active = h
	m.setStateLocked(cfg.ID, models.StateStarting)

	var logWriter *console.LogWriter
	if m.logDir != "" {
		if lw, err := console.NewLogWriter(cfg.ID, m.logDir); err == nil {
			logWriter = lw
		} else {
			log.Printf("[Process] Console log unavailable for %s: %v", cfg.ID, err)
		}
	}

	go m.drainStream(h, "stdout", stdout, logWriter)
	go m.drainStream(h, "stderr", stderr, logWriter)
	go m.watchExit(h, logWriter)

	log.Printf("[Process] Started server %s (pid %d)", cfg.ID, h.pid)
	return nil
}

// Stop shuts the process down: a graceful "stop" console line first, then a
// kill once the 10s ceiling passes. Stopping an already-stopped manager is a
// successful no-op that still lands in Stopped.
func (m *Manager) Stop() error {
	m.mu.Lock()
	h := m.active
	if h == nil {
		serverID := ""
		m.setStateLocked(serverID, models.StateStopped)
		m.mu.Unlock()
		return nil
	}
	serverID := h.serverID
	h.stopping = true

	// Graceful shutdown line. A write failure only means we escalate to
	// the kill path sooner.
	if _, err := io.WriteString(h.stdin, "stop\n"); err != nil {
		log.Printf("[Process] Graceful stop write failed for %s: %v", serverID, err)
	}
	m.mu.Unlock()

	deadline := time.Now().Add(stopTimeout)
	graceful := false
	for time.Now().Before(deadline) {
		select {
		case <-h.done:
			graceful = true
		case <-time.After(stopPollInterval):
		}
		if graceful {
			break
		}
	}

	if !graceful {
		log.Printf("[Process] Graceful stop timed out for %s, killing pid %d", serverID, h.pid)
		if err := h.cmd.Process.Kill(); err != nil {
			log.Printf("[Process] Kill failed for %s: %v", serverID, err)
		}
		<-h.done
	}

	// Only clear the slot if it still holds the handle we stopped; the exit
	// watcher may have released it already and a new process may own the
	// slot by now.
	m.mu.Lock()
	if m.active == h {
		m.active = nil
		m.setStateLocked(serverID, models.StateStopped)
	}
	m.mu.Unlock()

	log.Printf("[Process] Stopped server %s (graceful: %v)", serverID, graceful)
	return nil
}

// SendCommand writes one line to the process's stdin verbatim.
func (m *Manager) SendCommand(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return apperr.Wrap(apperr.KindNotFound, ErrNotRunning, "cannot send command")
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if _, err := io.WriteString(m.active.stdin, text); err != nil {
		return apperr.Wrap(apperr.KindIOFailure, err, "failed to write to server stdin")
	}
	return nil
}

// Status returns the current state, promoting a long-lived Starting state to
// Running when the fallback window has elapsed.
func (m *Manager) Status() models.StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == models.StateStarting && m.active != nil &&
		time.Since(m.active.startedAt) >= startingFallback {
		m.setStateLocked(m.active.serverID, models.StateRunning)
		m.notifier.Ready(m.active.serverID)
	}

	resp := models.StatusResponse{State: m.state}
	if m.active != nil {
		resp.ServerID = m.active.serverID
		resp.PID = m.active.pid
		resp.UptimeS = int64(time.Since(m.active.startedAt).Seconds())
	}
	return resp
}

// PID returns the child's process id, or 0 when no process is bound.
func (m *Manager) PID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return 0
	}
	return m.active.pid
}

// ActiveServerID returns the server id bound to the process slot, or "".
// Callers enforce the one-active-server rule with it before any control or
// mutation call.
func (m *Manager) ActiveServerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ""
	}
	return m.active.serverID
}

// IsRunning reports whether a live process is bound.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil && (m.state == models.StateStarting || m.state == models.StateRunning)
}

// ResourceUsage samples cpu and memory of the child process.
func (m *Manager) ResourceUsage(memLimitMB float64) (models.ResourceUsage, error) {
	m.mu.Lock()
	pid := 0
	if m.active != nil {
		pid = m.active.pid
	}
	m.mu.Unlock()

	if pid == 0 {
		return models.ResourceUsage{}, apperr.Wrap(apperr.KindNotFound, ErrNotRunning, "cannot sample resources")
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return models.ResourceUsage{}, apperr.Wrap(apperr.KindIOFailure, err, "failed to inspect pid %d", pid)
	}

	usage := models.ResourceUsage{MemLimitMB: memLimitMB}
	if cpu, err := proc.CPUPercent(); err == nil {
		usage.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		usage.MemoryMB = float64(mem.RSS) / (1024 * 1024)
	}
	return usage, nil
}

// drainStream reads lines from one output stream until it closes, pushing
// each line to the buffer, the console log, and the notifier, and promoting
// Starting to Running when the ready marker shows up.
func (m *Manager) drainStream(h *handle, stream string, r io.Reader, logWriter *console.LogWriter) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m.buffer != nil {
			m.buffer.Append(stream, line)
		}
		if logWriter != nil {
			logWriter.WriteLine(line)
		}
		m.notifier.ConsoleLine(h.serverID, stream, line)

		if stream == "stdout" && strings.Contains(line, readyMarker) {
			m.mu.Lock()
			if m.state == models.StateStarting && m.active == h {
				m.setStateLocked(h.serverID, models.StateRunning)
				m.notifier.Ready(h.serverID)
			}
			m.mu.Unlock()
		}
	}
}

// watchExit waits for the child to exit, then clears the slot and lands in
// Stopped (clean exit) or Error. Stop observes the done channel instead of
// racing on Wait.
func (m *Manager) watchExit(h *handle, logWriter *console.LogWriter) {
	err := h.cmd.Wait()
	h.exitErr = err
	close(h.done)

	if logWriter != nil {
		logWriter.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Stop() owns the slot and the final transition once it has begun, so a
	// forced kill never surfaces as an error state. A handle that is no
	// longer bound was already dealt with.
	if h.stopping || m.active != h {
		return
	}
	m.active = nil

	if err != nil {
		log.Printf("[Process] Server %s exited with error: %v", h.serverID, err)
		m.setStateLocked(h.serverID, models.StateError)
		return
	}
	log.Printf("[Process] Server %s exited cleanly", h.serverID)
	m.setStateLocked(h.serverID, models.StateStopped)
}

func (m *Manager) setStateLocked(serverID string, state models.ProcessState) {
	if m.state == state {
		return
	}
	m.state = state
	if serverID != "" {
		m.notifier.StateChanged(serverID, state)
	}
}
