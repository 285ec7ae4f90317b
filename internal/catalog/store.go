package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"gorm.io/gorm"
)

// userRow is the gorm model backing Credentials/EventLog's user lookups.
// Matricula (command.BatchWrite's row Key for EU) is the primary key:
// the stable foreign key linking cards, templates, and groups to a user.
type userRow struct {
	Matricula      string `gorm:"primaryKey"`
	Name           string
	Active         bool
	ValidFrom      time.Time
	ValidUntil     time.Time
	AllowCard      bool
	AllowBiometric bool
	AllowKeypad    bool
}

type cardRow struct {
	UID       string `gorm:"primaryKey"`
	Matricula string `gorm:"index"`
}

type keypadCodeRow struct {
	Code      string `gorm:"primaryKey"`
	Matricula string `gorm:"index"`
}

type biometricTemplateRow struct {
	TemplateID string `gorm:"primaryKey"`
	Matricula  string `gorm:"index"`
}

type eventRow struct {
	Sequence   uint `gorm:"primaryKey;autoIncrement"`
	Matricula  string
	Direction  int
	ReaderType int
	Grant      int
	HoldSecs   int
	Message    string
	CreatedAt  time.Time
	Collected  bool
}

// genericRow is the backing store for every batch-write family the
// management handler dispatches through command.BatchWrite/Table: it
// keeps the family's wire token, the row's mode/key, and its raw column
// values, treating most of these columns as opaque except where a
// component (like the offline validator) needs a specific one.
type genericRow struct {
	ID          uint `gorm:"primaryKey;autoIncrement"`
	CommandName string `gorm:"index:idx_generic_family_key"`
	RowKey      string `gorm:"index:idx_generic_family_key"`
	ColumnsJSON string
}

// Store is the concrete gorm/sqlite-backed Catalog, the device's one
// piece of durable state — persistent cross-restart sync of unsent
// events beyond what the local catalog exposes is out of scope, so this
// file, and nothing else, carries that durability.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) a sqlite database at path and migrates
// its schema. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("catalog: opening %s: %w", path, err)
	}
	if err := db.AutoMigrate(&userRow{}, &cardRow{}, &keypadCodeRow{}, &biometricTemplateRow{}, &eventRow{}, &genericRow{}); err != nil {
		return nil, fmt.Errorf("catalog: migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping reports whether the catalog's database is reachable, for the
// admin surface's readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) userByMatricula(ctx context.Context, matricula string) (User, bool, error) {
	var row userRow
	err := s.db.WithContext(ctx).First(&row, "matricula = ?", matricula).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return toUser(row), true, nil
}

func toUser(r userRow) User {
	return User{
		ID: r.Matricula, Name: r.Name, Active: r.Active,
		ValidFrom: r.ValidFrom, ValidUntil: r.ValidUntil,
		AllowCard: r.AllowCard, AllowBiometric: r.AllowBiometric, AllowKeypad: r.AllowKeypad,
	}
}

// FindByCard implements Credentials.
func (s *Store) FindByCard(ctx context.Context, uid string) (User, bool, error) {
	var card cardRow
	err := s.db.WithContext(ctx).First(&card, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return s.userByMatricula(ctx, card.Matricula)
}

// FindByKeypadCode implements Credentials.
func (s *Store) FindByKeypadCode(ctx context.Context, code string) (User, bool, error) {
	var row keypadCodeRow
	err := s.db.WithContext(ctx).First(&row, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return s.userByMatricula(ctx, row.Matricula)
}

// FindByBiometricTemplate implements Credentials. The match score itself
// is opaque (biometric matching is a black box returning a user ID or
// "no match"); templateID is whatever identifier the biometric
// collaborator already resolved its captured sample to.
func (s *Store) FindByBiometricTemplate(ctx context.Context, templateID string, _ int) (User, bool, error) {
	var row biometricTemplateRow
	err := s.db.WithContext(ctx).First(&row, "template_id = ?", templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return s.userByMatricula(ctx, row.Matricula)
}

// LastGrantAt implements AntiPassback.
func (s *Store) LastGrantAt(ctx context.Context, userID string, direction command.Direction) (time.Time, bool, error) {
	var row eventRow
	err := s.db.WithContext(ctx).
		Where("matricula = ? AND direction = ? AND grant != ?", userID, int(direction), int(command.Deny)).
		Order("created_at DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return row.CreatedAt, true, nil
}

// RecordDecision implements EventLog.
func (s *Store) RecordDecision(ctx context.Context, userID string, direction command.Direction, readerType command.ReaderType, decision command.AccessResponse) error {
	row := eventRow{
		Matricula:  userID,
		Direction:  int(direction),
		ReaderType: int(readerType),
		Grant:      int(decision.Grant),
		HoldSecs:   decision.DisplayHoldSecs,
		Message:    decision.DisplayMessage,
		CreatedAt:  time.Now(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Query implements EventLog's filtered read for RR's filter modes. The
// catalog keeps a single monotonic sequence per event and no separate
// physical memory layout, so FilterByAddress and FilterByNSR both
// resolve against that same sequence column — a device with real
// addressable log memory would need to distinguish them.
func (s *Store) Query(ctx context.Context, rq command.RecordsQuery) ([]command.LogEntry, error) {
	base := s.db.WithContext(ctx).Model(&eventRow{})
	var q *gorm.DB
	switch rq.Mode {
	case command.FilterByAddress, command.FilterByNSR:
		start, err := strconv.Atoi(rq.Value)
		if err != nil {
			return nil, fmt.Errorf("catalog: bad %c query value %q: %w", rune(rq.Mode), rq.Value, err)
		}
		q = base.Where("sequence >= ?", start).Order("sequence ASC")
	case command.FilterByDate:
		q = base.Order("created_at ASC")
		if rq.Value != "" {
			start, err := time.ParseInLocation("02/01/2006 15:04:05", rq.Value, time.Local)
			if err != nil {
				return nil, fmt.Errorf("catalog: bad D query start %q: %w", rq.Value, err)
			}
			q = q.Where("created_at >= ?", start)
		}
		if rq.End != "" {
			end, err := time.ParseInLocation("02/01/2006 15:04:05", rq.End, time.Local)
			if err != nil {
				return nil, fmt.Errorf("catalog: bad D query end %q: %w", rq.End, err)
			}
			q = q.Where("created_at <= ?", end)
		}
	case command.FilterByIndex:
		index, err := strconv.Atoi(rq.Value)
		if err != nil || index < 1 {
			return nil, fmt.Errorf("catalog: bad T query index %q", rq.Value)
		}
		q = base.Order("sequence ASC").Offset(index - 1)
	default:
		return nil, fmt.Errorf("catalog: unsupported query mode %q", rune(rq.Mode))
	}
	if rq.Qty > 0 {
		q = q.Limit(rq.Qty)
	}
	var rows []eventRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLogEntries(rows), nil
}

// Uncollected implements EventLog.
func (s *Store) Uncollected(ctx context.Context, limit int) ([]command.LogEntry, error) {
	var rows []eventRow
	q := s.db.WithContext(ctx).Where("collected = ?", false).Order("sequence ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toLogEntries(rows), nil
}

// MarkCollected implements EventLog.
func (s *Store) MarkCollected(ctx context.Context, sequences []int) error {
	if len(sequences) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&eventRow{}).Where("sequence IN ?", sequences).Update("collected", true).Error
}

func toLogEntries(rows []eventRow) []command.LogEntry {
	entries := make([]command.LogEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, command.LogEntry{
			Sequence:  int(r.Sequence),
			Timestamp: r.CreatedAt.Format("02/01/2006 15:04:05"),
			EventType: fmt.Sprintf("%d", r.Grant),
			Detail:    r.Message,
		})
	}
	return entries
}

// ListUsers returns every enrolled user, for the "turnstile catalog
// list" CLI command. Not part of the Catalog interface the validators
// and management handler consume —
// management tooling operates on the concrete Store directly.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("matricula ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		users = append(users, toUser(r))
	}
	return users, nil
}

// ClearAll wipes every enrolled user, credential index, and the event
// log, for the "turnstile catalog clear" CLI command (the one
// destructive catalog operation, gated behind an interactive
// confirmation prompt at the CLI layer).
func (s *Store) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&userRow{}, &cardRow{}, &keypadCodeRow{}, &biometricTemplateRow{}, &eventRow{}, &genericRow{}} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Value implements Status, answering RQ parameters backed by the
// catalog: capacity (enrolled user count), rotation counters, and queue
// depth (uncollected event backlog). Parameters the catalog has no
// opinion on (panel/sensor power, EEPROM) are left to the device
// orchestration layer, which should check Value's "found" result and
// supply a hardware-level answer for those itself.
func (s *Store) Value(ctx context.Context, param command.StatusParam) (string, bool, error) {
	switch param {
	case command.ParamCapacity:
		var n int64
		if err := s.db.WithContext(ctx).Model(&userRow{}).Count(&n).Error; err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", n), true, nil
	case command.ParamRotationCount:
		var n int64
		if err := s.db.WithContext(ctx).Model(&eventRow{}).Where("grant NOT IN ?", []int{int(command.Deny)}).Count(&n).Error; err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", n), true, nil
	case command.ParamQueueDepth:
		var n int64
		if err := s.db.WithContext(ctx).Model(&eventRow{}).Where("collected = ?", false).Count(&n).Error; err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%d", n), true, nil
	default:
		return "", false, nil
	}
}

// Table implements Tables: every EU/ECAR/ED/EGA/ECGA/EACI/EPER/EHOR/EFER/
// EMSG family resolves to the same genericTable, keyed by command token,
// since command.BatchWrite already unified their wire shape.
func (s *Store) Table(commandToken string) (Table, bool) {
	if !knownFamilies[commandToken] {
		return nil, false
	}
	return &genericTable{db: s.db, commandToken: commandToken, store: s}, true
}

var knownFamilies = map[string]bool{
	command.CommandEU: true, command.CommandECAR: true, command.CommandED: true,
	command.CommandEGA: true, command.CommandECGA: true, command.CommandEACI: true,
	command.CommandEPER: true, command.CommandEHOR: true, command.CommandEFER: true,
	command.CommandEMSG: true,
}

type genericTable struct {
	db           *gorm.DB
	commandToken string
	store        *Store
}

// Apply implements Table. It is transactional: all rows in the batch
// apply, or none, including the EU/ECAR/ED special-casing that
// keeps the credential index tables (userRow/cardRow/biometricTemplateRow)
// in sync with the generic row store for the three families the offline
// validator actually reads.
func (t *genericTable) Apply(ctx context.Context, rows []command.CRUDRow) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(rows) == 1 && rows[0].Mode == command.ModeClearAll {
			if err := tx.Where("command_name = ?", t.commandToken).Delete(&genericRow{}).Error; err != nil {
				return err
			}
			return t.clearIndexes(tx)
		}
		for _, row := range rows {
			if err := t.applyRow(tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *genericTable) clearIndexes(tx *gorm.DB) error {
	switch t.commandToken {
	case command.CommandEU:
		return tx.Where("1 = 1").Delete(&userRow{}).Error
	case command.CommandECAR:
		return tx.Where("1 = 1").Delete(&cardRow{}).Error
	case command.CommandED:
		return tx.Where("1 = 1").Delete(&biometricTemplateRow{}).Error
	default:
		return nil
	}
}

func (t *genericTable) applyRow(tx *gorm.DB, row command.CRUDRow) error {
	if row.Mode == command.ModeErase {
		if err := tx.Where("command_name = ? AND row_key = ?", t.commandToken, row.Key).Delete(&genericRow{}).Error; err != nil {
			return err
		}
		return t.eraseIndex(tx, row.Key)
	}

	values := make([]string, 0, len(row.Columns))
	for _, f := range row.Columns {
		values = append(values, f.Value())
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}

	var existing genericRow
	err = tx.First(&existing, "command_name = ? AND row_key = ?", t.commandToken, row.Key).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if createErr := tx.Create(&genericRow{CommandName: t.commandToken, RowKey: row.Key, ColumnsJSON: string(payload)}).Error; createErr != nil {
			return createErr
		}
	case err != nil:
		return err
	default:
		if row.Mode == command.ModeInsert {
			return fmt.Errorf("catalog: duplicate primary key %q in %s insert", row.Key, t.commandToken)
		}
		existing.ColumnsJSON = string(payload)
		if saveErr := tx.Save(&existing).Error; saveErr != nil {
			return saveErr
		}
	}
	return t.upsertIndex(tx, row.Key, values)
}

func (t *genericTable) eraseIndex(tx *gorm.DB, key string) error {
	switch t.commandToken {
	case command.CommandEU:
		return tx.Where("matricula = ?", key).Delete(&userRow{}).Error
	case command.CommandECAR:
		return tx.Where("uid = ?", key).Delete(&cardRow{}).Error
	case command.CommandED:
		return tx.Where("template_id = ?", key).Delete(&biometricTemplateRow{}).Error
	default:
		return nil
	}
}

// upsertIndex keeps the query-side index tables (userRow/cardRow/
// biometricTemplateRow) in sync for the three families the offline
// validator and credential lookup actually need structured, rather
// than requiring every caller to parse genericRow's opaque JSON column
// list back out. Column layout: EU rows are
// [name, active, valid_from, valid_until, allow_card, allow_bio, allow_keypad];
// ECAR/ED rows are [matricula] (the card UID / template ID is the row Key).
func (t *genericTable) upsertIndex(tx *gorm.DB, key string, cols []string) error {
	switch t.commandToken {
	case command.CommandEU:
		row := userRow{Matricula: key}
		if len(cols) > 0 {
			row.Name = cols[0]
		}
		if len(cols) > 1 {
			row.Active = cols[1] == "1" || cols[1] == "true"
		}
		if len(cols) > 2 {
			row.ValidFrom = parseDateOrZero(cols[2])
		}
		if len(cols) > 3 {
			row.ValidUntil = parseDateOrZero(cols[3])
		}
		if len(cols) > 4 {
			row.AllowCard = cols[4] == "1" || cols[4] == "true"
		}
		if len(cols) > 5 {
			row.AllowBiometric = cols[5] == "1" || cols[5] == "true"
		}
		if len(cols) > 6 {
			row.AllowKeypad = cols[6] == "1" || cols[6] == "true"
		}
		return tx.Save(&row).Error
	case command.CommandECAR:
		if len(cols) == 0 {
			return nil
		}
		return tx.Save(&cardRow{UID: key, Matricula: cols[0]}).Error
	case command.CommandED:
		if len(cols) == 0 {
			return nil
		}
		return tx.Save(&biometricTemplateRow{TemplateID: key, Matricula: cols[0]}).Error
	default:
		return nil
	}
}

func parseDateOrZero(s string) time.Time {
	for _, layout := range []string{"02/01/2006 15:04:05", "02/01/2006", "02/01/06"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
