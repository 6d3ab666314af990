package netconn

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadMessageRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, MsgPing, PingPayload{Timestamp: 42}))

	env, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, MsgPing, env.Type)

	var p PingPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	require.Equal(t, int64(42), p.Timestamp)
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x7F, 0xFF, 0xFF, 0xFF}) // absurd length prefix
	_, err := ReadMessage(&buf)
	require.Error(t, err)
}
