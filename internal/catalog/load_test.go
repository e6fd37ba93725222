package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
frames:
  - id: 0x102
    name: VCLEFT_doorStatus
    length: 8
    signals:
      - name: VCLEFT_mirrorTiltYPosition
        start_bit: 11
        length: 11
        byte_order: little
        default: 0
      - name: VCLEFT_mirrorFoldState
        start_bit: 22
        length: 2
        default: 2
`

func TestParseValidCatalog(t *testing.T) {
	cat, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	assert.Equal(t, 1, cat.FrameCount())
	assert.Equal(t, 2, cat.SignalCount())

	frame, ok := cat.Frame(0x102)
	require.True(t, ok)
	assert.Equal(t, "VCLEFT_doorStatus", frame.Name)
	assert.Equal(t, 8, frame.Length)

	sig, owner, ok := cat.SignalByName("VCLEFT_mirrorFoldState")
	require.True(t, ok)
	assert.Equal(t, frame, owner)
	assert.Equal(t, 2, sig.BitLength)
	assert.Equal(t, int64(2), sig.DefaultRaw)

	_, _, ok = cat.SignalByName("nope")
	assert.False(t, ok)
}

func TestDefaultPayloadPrePacked(t *testing.T) {
	cat, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	frame, _ := cat.Frame(0x102)
	payload := frame.DefaultPayload()
	require.Len(t, payload, 8)

	// fold state 默认 2，位 22..23 → byte2 的 bit6 = 1
	sig, _ := frame.Signal("VCLEFT_mirrorFoldState")
	raw, err := sig.Unpack(payload)
	require.NoError(t, err)
	assert.Equal(t, int64(2), raw)

	// 返回的是副本，调用方改动不影响目录
	payload[0] = 0xFF
	assert.Zero(t, frame.DefaultPayload()[0])
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "信号位域重叠",
			doc: `
frames:
  - id: 1
    length: 8
    signals:
      - {name: a, start_bit: 0, length: 8}
      - {name: b, start_bit: 4, length: 8}
`,
		},
		{
			name: "同帧信号重名",
			doc: `
frames:
  - id: 1
    length: 8
    signals:
      - {name: a, start_bit: 0, length: 4}
      - {name: a, start_bit: 8, length: 4}
`,
		},
		{
			name: "跨帧信号重名",
			doc: `
frames:
  - id: 1
    length: 8
    signals:
      - {name: a, start_bit: 0, length: 4}
  - id: 2
    length: 8
    signals:
      - {name: a, start_bit: 0, length: 4}
`,
		},
		{
			name: "帧 id 重复",
			doc: `
frames:
  - id: 1
    length: 8
    signals: [{name: a, start_bit: 0, length: 4}]
  - id: 1
    length: 8
    signals: [{name: b, start_bit: 0, length: 4}]
`,
		},
		{
			name: "位域越出帧长",
			doc: `
frames:
  - id: 1
    length: 2
    signals: [{name: a, start_bit: 12, length: 8}]
`,
		},
		{
			name: "未知字节序",
			doc: `
frames:
  - id: 1
    length: 8
    signals: [{name: a, start_bit: 0, length: 4, byte_order: middle}]
`,
		},
		{
			name: "scale 为零",
			doc: `
frames:
  - id: 1
    length: 8
    signals: [{name: a, start_bit: 0, length: 4, scale: 0}]
`,
		},
		{
			name: "缺 start_bit",
			doc: `
frames:
  - id: 1
    length: 8
    signals: [{name: a, length: 4}]
`,
		},
		{
			name: "默认值超出位域区间",
			doc: `
frames:
  - id: 1
    length: 8
    signals: [{name: a, start_bit: 0, length: 4, default: 16}]
`,
		},
		{
			name: "空目录",
			doc:  `frames: []`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestRawRange(t *testing.T) {
	unsigned := &Signal{BitLength: 11}
	lo, hi := unsigned.RawRange()
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(2047), hi)

	signed := &Signal{BitLength: 8, Signed: true}
	lo, hi = signed.RawRange()
	assert.Equal(t, int64(-128), lo)
	assert.Equal(t, int64(127), hi)
}
