package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoopbackRecordsSends(t *testing.T) {
	lb := NewLoopback()

	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, lb.Send(0x102, payload))
	require.NoError(t, lb.Send(0x257, []byte{9}))
	require.NoError(t, lb.Send(0x102, []byte{0xFF}))

	sent := lb.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, uint32(0x102), sent[0].FrameID)

	last, ok := lb.Last(0x102)
	require.True(t, ok)
	assert.Equal(t, []byte{0xFF}, last.Payload)

	_, ok = lb.Last(0x999)
	assert.False(t, ok)
}

func TestLoopbackCopiesPayload(t *testing.T) {
	lb := NewLoopback()
	payload := []byte{1, 2, 3}
	require.NoError(t, lb.Send(1, payload))

	// 发送后调用方复用缓冲不得影响已记录的帧
	payload[0] = 0xEE
	sent, _ := lb.Last(1)
	assert.Equal(t, byte(1), sent.Payload[0])
}

func TestLoopbackClosed(t *testing.T) {
	lb := NewLoopback()
	require.NoError(t, lb.Close())
	assert.ErrorIs(t, lb.Send(1, []byte{1}), ErrClosed)
}

func TestLoggedPassesThrough(t *testing.T) {
	lb := NewLoopback()
	logged := NewLogged(lb, zap.NewNop())

	require.NoError(t, logged.Send(0x102, []byte{1, 2}))
	_, ok := lb.Last(0x102)
	assert.True(t, ok)

	require.NoError(t, logged.Close())
	assert.ErrorIs(t, logged.Send(0x102, []byte{1}), ErrClosed)
}
