package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBuildRoundTrip(t *testing.T) {
	bodies := []string{
		"15+REON+000+0]00000000000011912322]31/07/2026 10:00:00]1]0]",
		"REON+00+6]5]Acesso liberado]",
		"REON+000+80]]31/07/2026 10:00:05]0]0]",
		"RQ+00+U",
		"01+EC+00+0+DEVICE.ID[15",
		"01+EU+00+3+I[12345[Alice[12{34{56]A[67890[Bob[]",
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			msg, err := Parse([]byte(body))
			require.NoError(t, err)
			assert.Equal(t, body, string(Build(msg)))
		})
	}
}

func TestParseDeviceIDPrefixOptional(t *testing.T) {
	withID, err := Parse([]byte("15+REON+000+0]x]"))
	require.NoError(t, err)
	assert.True(t, withID.HasDeviceID)
	assert.Equal(t, 15, withID.DeviceID)
	assert.Equal(t, "REON", withID.Command)

	withoutID, err := Parse([]byte("REON+000+80]x]"))
	require.NoError(t, err)
	assert.False(t, withoutID.HasDeviceID)
	assert.Equal(t, "REON", withoutID.Command)
}

func TestParseOpcodeExtraction(t *testing.T) {
	msg, err := Parse([]byte("REON+000+80]]date]0]0]"))
	require.NoError(t, err)
	assert.Equal(t, "000+80", msg.Opcode)
	require.Len(t, msg.Payload, 6)
	assert.Equal(t, "", msg.RecordValue(0))
	assert.Equal(t, "date", msg.RecordValue(2))
}

func TestParseSubFieldSeparators(t *testing.T) {
	msg, err := Parse([]byte("ED+00+1+999[a{b{c]"))
	require.NoError(t, err)
	f := msg.Field(0, 1)
	assert.Equal(t, []string{"a", "b", "c"}, f.Parts)
	assert.Equal(t, byte('{'), f.Sep)
	assert.Equal(t, "a{b{c", f.Value())
}

func TestParseRejectsMixedSubFieldSeparators(t *testing.T) {
	_, err := Parse([]byte("ED+00+1+999[a{b}c]"))
	assert.ErrorIs(t, err, ErrUnexpectedSeparator)
}

func TestParseEmptyFieldIsLegal(t *testing.T) {
	msg, err := Parse([]byte("REON+00+30]0]Acesso negado]"))
	require.NoError(t, err)
	assert.Equal(t, "0", msg.RecordValue(1))
	assert.Equal(t, "Acesso negado", msg.RecordValue(2))
	assert.Equal(t, "", msg.RecordValue(3))
}

func TestParseTrailingBracketTolerated(t *testing.T) {
	msg, err := Parse([]byte("RR+00+C]3]0]"))
	require.NoError(t, err)
	// Trailing ']' yields an extra empty final record, preserved on Build.
	assert.Equal(t, "", msg.RecordValue(len(msg.Payload)-1))
	assert.Equal(t, "RR+00+C]3]0]", string(Build(msg)))
}
