package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/henryproto/turnstile-emu/internal/protocol/henry/command"
	"github.com/henryproto/turnstile-emu/internal/protocol/henry/message"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestClearAllIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	table, ok := s.Table(command.CommandEU)
	require.True(t, ok)
	rows := []command.CRUDRow{
		{Mode: command.ModeInsert, Key: "001", Columns: []message.Field{message.NewField("Alice")}},
	}
	require.NoError(t, table.Apply(ctx, rows))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	require.NoError(t, s.ClearAll(ctx))
	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	// A second clear on an already-empty catalog must not error.
	require.NoError(t, s.ClearAll(ctx))
	users, err = s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestGenericTableApplyRejectsDuplicateInsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	table, ok := s.Table(command.CommandECAR)
	require.True(t, ok)

	first := []command.CRUDRow{
		{Mode: command.ModeInsert, Key: "C1", Columns: []message.Field{message.NewField("001")}},
	}
	require.NoError(t, table.Apply(ctx, first))

	dup := []command.CRUDRow{
		{Mode: command.ModeInsert, Key: "C2", Columns: []message.Field{message.NewField("002")}},
		{Mode: command.ModeInsert, Key: "C1", Columns: []message.Field{message.NewField("003")}},
	}
	err := table.Apply(ctx, dup)
	require.Error(t, err)

	var rows []cardRow
	require.NoError(t, s.db.Find(&rows).Error)
	require.Len(t, rows, 1, "the whole batch must roll back, leaving only the pre-existing row")
	assert.Equal(t, "C1", rows[0].UID)
	assert.Equal(t, "001", rows[0].Matricula)
}

func TestQueryFilterModes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordDecision(ctx, "001", command.DirectionEntry, command.ReaderTypeRFID, command.AccessResponse{Grant: command.GrantEntry}))
	}

	byAddr, err := s.Query(ctx, command.RecordsQuery{Mode: command.FilterByAddress, Qty: 2, Value: "2"})
	require.NoError(t, err)
	if assert.Len(t, byAddr, 2) {
		assert.Equal(t, 2, byAddr[0].Sequence)
		assert.Equal(t, 3, byAddr[1].Sequence)
	}

	byIndex, err := s.Query(ctx, command.RecordsQuery{Mode: command.FilterByIndex, Qty: 2, Value: "4"})
	require.NoError(t, err)
	if assert.Len(t, byIndex, 2) {
		assert.Equal(t, 4, byIndex[0].Sequence)
		assert.Equal(t, 5, byIndex[1].Sequence)
	}

	_, err = s.Query(ctx, command.RecordsQuery{Mode: command.FilterByIndex, Qty: 1, Value: "0"})
	assert.Error(t, err, "index is 1-based; 0 is out of range")
}
