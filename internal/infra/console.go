package infra

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultConsoleLines is used when the configured capacity is not positive.
const DefaultConsoleLines = 500

// ConsoleLine is one human-readable message for the consumer.
type ConsoleLine struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Text renders the line the way the console shows it.
func (l ConsoleLine) Text() string {
	if l.Level == "warn" {
		return "[WARNING] " + l.Message
	}
	return l.Message
}

// Console is a bounded queue of consumer-facing log lines.
// When full, the oldest line is dropped. Every line is mirrored into slog.
type Console struct {
	mu      sync.Mutex
	lines   []ConsoleLine
	max     int
	dropped uint64
	logger  *slog.Logger
}

// NewConsole creates a console holding at most capacity lines.
func NewConsole(capacity int) *Console {
	if capacity <= 0 {
		capacity = DefaultConsoleLines
	}
	return &Console{
		max:    capacity,
		logger: slog.Default().With("module", "console"),
	}
}

// Info queues an informational line.
func (c *Console) Info(text string) {
	c.logger.Info(text)
	c.push("info", text)
}

// Warn queues a warning line.
func (c *Console) Warn(text string) {
	c.logger.Warn(text)
	c.push("warn", text)
}

func (c *Console) push(level, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.lines) >= c.max {
		c.lines = c.lines[1:]
		c.dropped++
	}
	c.lines = append(c.lines, ConsoleLine{Time: time.Now(), Level: level, Message: text})
}

// Drain returns all queued lines oldest first and empties the queue.
func (c *Console) Drain() []ConsoleLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.lines
	c.lines = nil
	return out
}

// Dropped returns how many lines were discarded because nobody drained them.
func (c *Console) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
