// Package catalog defines the collaborator interface treated as
// external: the durable store of users, credentials, access rules and
// the event log. internal/catalog/store.go provides the concrete
// gorm/sqlite-backed implementation a standalone emulator runs with;
// the offline validator and management handler depend only on the
// interfaces in this file, never on the concrete store.
package catalog

import (
	"context"
	"time"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
)

// User is the catalog's projection of one enrolled credential holder.
type User struct {
	ID         string
	Name       string
	Active     bool
	ValidFrom  time.Time
	ValidUntil time.Time

	AllowCard      bool
	AllowBiometric bool
	AllowKeypad    bool
}

// Credentials is the read side the offline validator needs: resolving
// a captured credential to a User, by whichever method it was captured
// with.
type Credentials interface {
	// FindByCard looks up the user enrolled against card uid, if any.
	FindByCard(ctx context.Context, uid string) (User, bool, error)

	// FindByKeypadCode looks up the user enrolled against a keypad PIN.
	FindByKeypadCode(ctx context.Context, code string) (User, bool, error)

	// FindByBiometricTemplate resolves a captured template/score pair to
	// a user. The matching algorithm itself is treated as a black box;
	// this call returns whatever the biometric collaborator already
	// decided.
	FindByBiometricTemplate(ctx context.Context, templateID string, score int) (User, bool, error)
}

// AntiPassback is the anti-passback state the offline validator consults and updates.
type AntiPassback interface {
	// LastGrantAt returns the time of the user's most recent grant in
	// direction, if any, however long ago it occurred; the caller
	// compares it against the anti-passback window.
	LastGrantAt(ctx context.Context, userID string, direction command.Direction) (time.Time, bool, error)
}

// EventLog is the write side: every decision (granted or denied) is
// logged with reader type and direction, and is the source the
// management handler's RR/ER handler reads from.
type EventLog interface {
	RecordDecision(ctx context.Context, userID string, direction command.Direction, readerType command.ReaderType, decision command.AccessResponse) error

	// Query answers an RR request per the documented filter modes (M by
	// address, N by sequential record number, D by date range, T by
	// 1-based index); mode C (uncollected) is served by Uncollected
	// instead, since it mutates per-connection delivery state that
	// Query must not.
	Query(ctx context.Context, q command.RecordsQuery) ([]command.LogEntry, error)

	// Uncollected returns up to limit records the host has not yet
	// acknowledged collecting, oldest first. It does not mark them
	// collected — that only happens once the host's ack is processed
	// by MarkCollected. RR+C is stateful per peer by design.
	Uncollected(ctx context.Context, limit int) ([]command.LogEntry, error)

	// MarkCollected marks the given sequence numbers as acknowledged,
	// advancing the uncollected watermark.
	MarkCollected(ctx context.Context, sequences []int) error
}

// Status is the read side behind RQ status queries.
type Status interface {
	Value(ctx context.Context, param command.StatusParam) (string, bool, error)
}

// Table is the catalog's generic batch-write surface: every EU/ECAR/ED/
// EGA/ECGA/EACI/EPER/EHOR/EFER/EMSG family applies through the same
// shape, since command.BatchWrite already unified their wire grammar.
// Apply must be transactional: all rows in the batch apply, or none.
type Table interface {
	Apply(ctx context.Context, rows []command.CRUDRow) error
}

// Tables resolves a batch-write command token to the Table that handles
// it.
type Tables interface {
	Table(commandToken string) (Table, bool)
}

// Catalog is the full collaborator the offline validator and management
// handler depend on.
type Catalog interface {
	Credentials
	AntiPassback
	EventLog
	Status
	Tables
}
