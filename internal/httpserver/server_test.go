package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/vss-can-bridge/internal/catalog"
	cfgpkg "github.com/taoyao-code/vss-can-bridge/internal/config"
	"github.com/taoyao-code/vss-can-bridge/internal/encoder"
	"github.com/taoyao-code/vss-can-bridge/internal/framestore"
	"github.com/taoyao-code/vss-can-bridge/internal/mapping"
	appmetrics "github.com/taoyao-code/vss-can-bridge/internal/metrics"
)

const testCatalog = `
frames:
  - id: 0x102
    name: VCLEFT_doorStatus
    length: 8
    signals:
      - {name: VCLEFT_mirrorTiltYPosition, start_bit: 11, length: 11}
      - {name: VCLEFT_mirrorFoldState, start_bit: 22, length: 2, default: 2}
`

const testMapping = `
mappings:
  - path: Vehicle.Body.Mirrors.Left.Tilt
    signal: VCLEFT_mirrorTiltYPosition
    transform:
      math: "floor((x*40)-100)"
`

func newTestServer(t *testing.T) (*Server, *framestore.Store) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	table, err := mapping.Parse([]byte(testMapping), cat)
	require.NoError(t, err)

	store := framestore.New()
	cfg := cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	reg := appmetrics.NewRegistry()
	srv := New(cfg, "/metrics", appmetrics.Handler(reg), func() bool { return true }, Deps{
		Catalog: cat,
		Table:   table,
		Store:   store,
		Encoder: encoder.New(cat, store),
	})
	return srv, store
}

func get(srv *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusOK, get(srv, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(srv, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(srv, "/metrics").Code)
}

func TestListFrames(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/api/v1/frames")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Frames []frameSummary `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Frames, 1)
	assert.Equal(t, "0x102", body.Frames[0].ID)
	assert.Equal(t, 8, body.Frames[0].Length)
	assert.Equal(t, 2, body.Frames[0].Signals)
	assert.Zero(t, body.Frames[0].Observed)
}

func TestShowFrame(t *testing.T) {
	srv, store := newTestServer(t)
	store.Update(0x102, "VCLEFT_mirrorTiltYPosition", 1980, time.Now())

	// 十六进制与十进制 id 都接受
	for _, id := range []string{"0x102", "258"} {
		rr := get(srv, "/api/v1/frames/"+id)
		require.Equal(t, http.StatusOK, rr.Code, "id=%s", id)

		var body struct {
			ID      string       `json:"id"`
			Payload string       `json:"payload"`
			Signals []signalView `json:"signals"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "0x102", body.ID)
		assert.Len(t, body.Payload, 16) // 8 字节 hex

		var tilt *signalView
		for i := range body.Signals {
			if body.Signals[i].Name == "VCLEFT_mirrorTiltYPosition" {
				tilt = &body.Signals[i]
			}
		}
		require.NotNil(t, tilt)
		assert.True(t, tilt.Observed)
		require.NotNil(t, tilt.Value)
		assert.Equal(t, 1980.0, *tilt.Value)
	}
}

func TestShowFrameErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(srv, "/api/v1/frames/0x999").Code)
	assert.Equal(t, http.StatusBadRequest, get(srv, "/api/v1/frames/xyz").Code)
}

func TestListMappings(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := get(srv, "/api/v1/mappings")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "Vehicle.Body.Mirrors.Left.Tilt"))
	assert.True(t, strings.Contains(body, "VCLEFT_mirrorTiltYPosition"))
	assert.True(t, strings.Contains(body, `"transform":"math"`))
}
