package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsQueryRoundTrip(t *testing.T) {
	q := RecordsQuery{Mode: FilterByNSR, Qty: 50, Value: "12"}
	got, err := RecordsQueryFromMessage(q.ToMessage(1))
	require.NoError(t, err)
	assert.Equal(t, q, got)
}

func TestRecordsQueryDateRangeRoundTrip(t *testing.T) {
	q := RecordsQuery{Mode: FilterByDate, Qty: 10, Value: "01/07/2026 00:00:00", End: "31/07/2026 23:59:59"}
	got, err := RecordsQueryFromMessage(q.ToMessage(1))
	require.NoError(t, err)
	assert.Equal(t, q, got)
}

func TestRecordsQueryUncollectedMode(t *testing.T) {
	q := RecordsQuery{Mode: FilterUncollected, Qty: 3, Value: "0"}
	got, err := RecordsQueryFromMessage(q.ToMessage(1))
	require.NoError(t, err)
	assert.Equal(t, q, got)
}

func TestRecordsResponseRoundTrip(t *testing.T) {
	resp := RecordsResponse{Entries: []LogEntry{
		{Sequence: 1, Timestamp: "31/07/2026 10:00:00", EventType: "ACCESS_GRANTED", Detail: "12345"},
		{Sequence: 2, Timestamp: "31/07/2026 10:05:00", EventType: "ACCESS_DENIED", Detail: "67890"},
	}}
	msg := resp.ToMessage(1)
	assert.Equal(t, "00+2+", msg.Opcode)

	got, err := RecordsResponseFromMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestRecordsResponseEmptyBatch(t *testing.T) {
	resp := RecordsResponse{}
	got, err := RecordsResponseFromMessage(resp.ToMessage(1))
	require.NoError(t, err)
	assert.Empty(t, got.Entries)
}

func TestRecordsResponseRowCountMismatch(t *testing.T) {
	resp := RecordsResponse{Entries: []LogEntry{{Sequence: 1, Timestamp: "t", EventType: "e", Detail: "d"}}}
	msg := resp.ToMessage(1)
	msg.Opcode = "00+5+"
	_, err := RecordsResponseFromMessage(msg)
	assert.ErrorIs(t, err, ErrRowCountMismatch)
}
