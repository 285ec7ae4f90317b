package management

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henryproto/turnstile-emu/internal/catalog"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

type fakeTable struct {
	applied [][]command.CRUDRow
	err     error
}

func (t *fakeTable) Apply(ctx context.Context, rows []command.CRUDRow) error {
	if t.err != nil {
		return t.err
	}
	t.applied = append(t.applied, rows)
	return nil
}

type fakeCatalog struct {
	mu sync.Mutex

	tables      map[string]*fakeTable
	statusByKey map[command.StatusParam]string
	configs     map[command.ConfigKey]string
	uncollected []command.LogEntry
	collected   []int
	queried     []command.RecordsQuery
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		tables:      map[string]*fakeTable{},
		statusByKey: map[command.StatusParam]string{},
		configs:     map[command.ConfigKey]string{},
	}
}

func (f *fakeCatalog) FindByCard(ctx context.Context, uid string) (catalog.User, bool, error) {
	return catalog.User{}, false, nil
}
func (f *fakeCatalog) FindByKeypadCode(ctx context.Context, code string) (catalog.User, bool, error) {
	return catalog.User{}, false, nil
}
func (f *fakeCatalog) FindByBiometricTemplate(ctx context.Context, templateID string, score int) (catalog.User, bool, error) {
	return catalog.User{}, false, nil
}
func (f *fakeCatalog) LastGrantAt(ctx context.Context, userID string, direction command.Direction) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (f *fakeCatalog) RecordDecision(ctx context.Context, userID string, direction command.Direction, readerType command.ReaderType, decision command.AccessResponse) error {
	return nil
}
func (f *fakeCatalog) Query(ctx context.Context, q command.RecordsQuery) ([]command.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, q)
	return []command.LogEntry{{Sequence: 1, Timestamp: "t", EventType: "E", Detail: "d"}}, nil
}
func (f *fakeCatalog) Uncollected(ctx context.Context, limit int) ([]command.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.uncollected
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}
func (f *fakeCatalog) MarkCollected(ctx context.Context, sequences []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collected = append(f.collected, sequences...)
	return nil
}
func (f *fakeCatalog) Value(ctx context.Context, param command.StatusParam) (string, bool, error) {
	v, ok := f.statusByKey[param]
	return v, ok, nil
}
func (f *fakeCatalog) Table(token string) (catalog.Table, bool) {
	t, ok := f.tables[token]
	return t, ok
}
func (f *fakeCatalog) ConfigValue(ctx context.Context, key command.ConfigKey) (string, bool, error) {
	v, ok := f.configs[key]
	return v, ok, nil
}
func (f *fakeCatalog) SetConfigValue(ctx context.Context, key command.ConfigKey, value string) error {
	f.configs[key] = value
	return nil
}

type fakeClock struct {
	value string
}

func (c *fakeClock) Set(ctx context.Context, dateTime string) error {
	c.value = dateTime
	return nil
}
func (c *fakeClock) Get(ctx context.Context) (string, error) {
	return c.value, nil
}

func TestBatchWriteDispatchAppliesAndAcks(t *testing.T) {
	fc := newFakeCatalog()
	fc.tables[command.CommandEU] = &fakeTable{}
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	batch := command.BatchWrite{
		Command: command.CommandEU,
		Rows:    []command.CRUDRow{{Mode: command.ModeInsert, Key: "1"}},
	}
	resp, err := h.Handle(context.Background(), sess, batch.ToMessage(1))
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, command.CommandRU, resp.Command)
	assert.Len(t, fc.tables[command.CommandEU].applied, 1)
}

func TestBatchWriteUnknownTable(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	batch := command.BatchWrite{Command: command.CommandEU, Rows: []command.CRUDRow{{Mode: command.ModeInsert, Key: "1"}}}
	_, err := h.Handle(context.Background(), sess, batch.ToMessage(1))
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestConfigSetThenQuery(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	set := command.SetConfig{Key: command.KeyDisplayMessage, Value: "Bem-vindo"}
	_, err := h.Handle(context.Background(), sess, set.ToMessage(1))
	require.NoError(t, err)

	q := command.QueryConfig{Key: command.KeyDisplayMessage}
	resp, err := h.Handle(context.Background(), sess, q.ToMessage(1))
	require.NoError(t, err)
	got, err := command.ConfigValueFromMessage(*resp)
	require.NoError(t, err)
	assert.Equal(t, "Bem-vindo", got.Value)
}

func TestConfigSetRejectsReadOnlyKey(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	set := command.SetConfig{Key: command.KeyNetworkIP, Value: "10.0.0.1"}
	_, err := h.Handle(context.Background(), sess, set.ToMessage(1))
	assert.ErrorIs(t, err, command.ErrUnknownKey)
}

func TestClockSetThenQuery(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	_, err := h.Handle(context.Background(), sess, command.SetDateTime{DateTime: "31/07/26 10:00:00"}.ToMessage(1))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), sess, command.QueryDateTime{}.ToMessage(1))
	require.NoError(t, err)
	got, err := command.DateTimeValueFromMessage(*resp)
	require.NoError(t, err)
	assert.Equal(t, "31/07/26 10:00:00", got.DateTime)
}

func TestStatusQuery(t *testing.T) {
	fc := newFakeCatalog()
	fc.statusByKey[command.ParamCapacity] = "128"
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	resp, err := h.Handle(context.Background(), sess, command.StatusQuery{Param: command.ParamCapacity}.ToMessage(1))
	require.NoError(t, err)
	got, err := command.StatusAnswerFromMessage(*resp)
	require.NoError(t, err)
	assert.Equal(t, "128", got.Value)
}

func TestStatusQueryUnknownParam(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	_, err := h.Handle(context.Background(), sess, command.StatusQuery{Param: command.ParamUptime}.ToMessage(1))
	assert.ErrorIs(t, err, ErrUnknownStatusParam)
}

func TestRecordsQueryModeByAddress(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	req := command.RecordsQuery{Mode: command.FilterByAddress, Qty: 3, Value: "0"}
	resp, err := h.Handle(context.Background(), sess, req.ToMessage(1))
	require.NoError(t, err)
	got, err := command.RecordsResponseFromMessage(*resp)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
	assert.Equal(t, []command.RecordsQuery{req}, fc.queried)
}

func TestUncollectedBatchResendsUntilAck(t *testing.T) {
	fc := newFakeCatalog()
	fc.uncollected = []command.LogEntry{
		{Sequence: 1, Timestamp: "t1", EventType: "E", Detail: "d1"},
		{Sequence: 2, Timestamp: "t2", EventType: "E", Detail: "d2"},
	}
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	sess := NewSession()

	req := command.RecordsQuery{Mode: command.FilterUncollected}.ToMessage(1)

	first, err := h.Handle(context.Background(), sess, req)
	require.NoError(t, err)
	firstEntries, err := command.RecordsResponseFromMessage(*first)
	require.NoError(t, err)
	assert.Len(t, firstEntries.Entries, 2)

	// A retry before the host acks must resend the identical batch, not
	// advance to (nonexistent) fresh records.
	second, err := h.Handle(context.Background(), sess, req)
	require.NoError(t, err)
	secondEntries, err := command.RecordsResponseFromMessage(*second)
	require.NoError(t, err)
	assert.Equal(t, firstEntries, secondEntries)
	assert.Empty(t, fc.collected)

	ack := message.Message{
		DeviceID:    1,
		HasDeviceID: true,
		Command:     command.CommandER,
		Opcode:      "00+2+",
		Payload:     []message.Record{{message.NewField("1"), message.NewField("2")}},
	}
	resp, err := h.Handle(context.Background(), sess, ack)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.ElementsMatch(t, []int{1, 2}, fc.collected)
	assert.False(t, sess.hasPending())
}

func TestUnknownCommandReturnsError(t *testing.T) {
	fc := newFakeCatalog()
	h := &Handler{Catalog: fc, Clock: &fakeClock{}, DeviceID: 1}
	_, err := h.Handle(context.Background(), NewSession(), message.Message{Command: "ZZ"})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
