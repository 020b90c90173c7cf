// Package console holds recent output lines per server and writes them to
// rotating log files for later inspection.
package console

import (
	"sync"
	"time"
)

// Line is one captured console line.
type Line struct {
	Timestamp time.Time `json:"timestamp"`
	Stream    string    `json:"stream"` // "stdout" or "stderr"
	Text      string    `json:"text"`
}

// Buffer is a fixed-capacity ring of recent console lines.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	lines    []Line
	start    int
	count    int
}

// NewBuffer creates a buffer holding up to capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		capacity: capacity,
		lines:    make([]Line, capacity),
	}
}

// Append records a line, evicting the oldest when full.
func (b *Buffer) Append(stream, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := (b.start + b.count) % b.capacity
	b.lines[idx] = Line{Timestamp: time.Now(), Stream: stream, Text: text}
	if b.count < b.capacity {
		b.count++
	} else {
		b.start = (b.start + 1) % b.capacity
	}
}

// Lines returns the buffered lines oldest-first.
func (b *Buffer) Lines() []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Line, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.lines[(b.start+i)%b.capacity]
	}
	return out
}

// Clear drops all buffered lines.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.start = 0
	b.count = 0
}

// Len returns the number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
