package device

import (
	"context"
	"sync"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

// memoryClock implements management.Clock: it answers RH with
// command.SentinelDateTime until a host sets it via EH, using the
// documented "00/00/00 00:00:00 means unused" sentinel. A real device
// would derive RH from its own real-time clock once set; the emulator
// has no hardware RTC to read, so it echoes back whatever the last EH
// wrote.
type memoryClock struct {
	mu       sync.RWMutex
	dateTime string
}

func newMemoryClock() *memoryClock {
	return &memoryClock{dateTime: command.SentinelDateTime}
}

func (c *memoryClock) Set(_ context.Context, dateTime string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dateTime = dateTime
	return nil
}

func (c *memoryClock) Get(_ context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dateTime, nil
}
