package events

import "github.com/Adlikkk/gamehost-one/internal/models"

// Event type names carried in Message.Type.
const (
	TypeStateChanged   = "server_state"
	TypeConsoleLine    = "console_line"
	TypeServerReady    = "server_ready"
	TypeBackupProgress = "backup_progress"
	TypeCopyProgress   = "copy_progress"
	TypeExportProgress = "export_progress"
	TypeFetchProgress  = "fetch_progress"
)

// Notifier is the outbound notification surface used by the process and
// backup layers. The hub implements it; tests substitute their own.
type Notifier interface {
	StateChanged(serverID string, state models.ProcessState)
	ConsoleLine(serverID, stream, text string)
	Ready(serverID string)
	Progress(serverID, kind string, processedBytes, totalBytes int64)
}

// ProgressPayload carries byte counters for long-running transfers.
type ProgressPayload struct {
	ProcessedBytes int64 `json:"processed_bytes"`
	TotalBytes     int64 `json:"total_bytes"`
}

// ConsolePayload carries one captured console line.
type ConsolePayload struct {
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// StatePayload carries a state transition.
type StatePayload struct {
	State models.ProcessState `json:"state"`
}

// Publisher adapts the hub to the Notifier interface.
type Publisher struct {
	hub *Hub
}

// NewPublisher wraps a hub.
func NewPublisher(hub *Hub) *Publisher {
	return &Publisher{hub: hub}
}

func (p *Publisher) StateChanged(serverID string, state models.ProcessState) {
	p.hub.Publish(&Message{
		Type:     TypeStateChanged,
		ServerID: serverID,
		Payload:  StatePayload{State: state},
	})
}

func (p *Publisher) ConsoleLine(serverID, stream, text string) {
	p.hub.Publish(&Message{
		Type:     TypeConsoleLine,
		ServerID: serverID,
		Payload:  ConsolePayload{Stream: stream, Text: text},
	})
}

func (p *Publisher) Ready(serverID string) {
	p.hub.Publish(&Message{Type: TypeServerReady, ServerID: serverID})
}

func (p *Publisher) Progress(serverID, kind string, processedBytes, totalBytes int64) {
	p.hub.Publish(&Message{
		Type:     kind,
		ServerID: serverID,
		Payload:  ProgressPayload{ProcessedBytes: processedBytes, TotalBytes: totalBytes},
	})
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) StateChanged(string, models.ProcessState) {}
func (NopNotifier) ConsoleLine(string, string, string)       {}
func (NopNotifier) Ready(string)                             {}
func (NopNotifier) Progress(string, string, int64, int64)    {}
