package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdate(t *testing.T) {
	u, err := ParseUpdate([]byte(`{"path":"Vehicle.Speed","value":52.5,"ts":"2026-08-24T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "Vehicle.Speed", u.Path)
	assert.Equal(t, 52.5, u.Value)
	assert.Equal(t, time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC), u.Timestamp)
}

func TestParseUpdateValueTypes(t *testing.T) {
	u, err := ParseUpdate([]byte(`{"path":"a","value":true}`))
	require.NoError(t, err)
	assert.Equal(t, true, u.Value)

	u, err = ParseUpdate([]byte(`{"path":"a","value":"LOCKED"}`))
	require.NoError(t, err)
	assert.Equal(t, "LOCKED", u.Value)
}

func TestParseUpdateDefaultsTimestamp(t *testing.T) {
	before := time.Now()
	u, err := ParseUpdate([]byte(`{"path":"a","value":1}`))
	require.NoError(t, err)
	assert.False(t, u.Timestamp.Before(before))
}

func TestParseUpdateErrors(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"value":1}`,
		`{"path":"","value":1}`,
		`{"path":"a"}`,
	} {
		_, err := ParseUpdate([]byte(raw))
		assert.ErrorIs(t, err, ErrBadUpdate, "raw=%s", raw)
	}
}
