package management

import "github.com/henryproto/turnstile-emu/internal/protocol/henry/command"

// Session holds the per-connection state RR+C needs: the NSRs handed
// out in the last uncollected batch, awaiting the host's ack, so a
// connection drop/retry before the ack arrives resends the same batch
// instead of silently advancing the watermark.
type Session struct {
	pendingEntries []command.LogEntry
}

// NewSession returns a fresh, empty per-connection session.
func NewSession() *Session {
	return &Session{}
}

func (s *Session) hasPending() bool {
	return len(s.pendingEntries) > 0
}

func (s *Session) setPending(entries []command.LogEntry) {
	s.pendingEntries = entries
}

func (s *Session) clearPending() {
	s.pendingEntries = nil
}
