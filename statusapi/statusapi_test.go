package statusapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/thermnode/node"
	"github.com/notnil/thermnode/orion"
	"github.com/notnil/thermnode/thermistor"
)

type fixedSource struct{ r node.Report }

func (f fixedSource) Status() node.Report { return f.r }

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newServer(r node.Report) *Server {
	s := New(fixedSource{r}, "node-1")
	s.now = func() time.Time { return t0.Add(time.Second) }
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	ok := node.Report{Time: t0}
	assert.Equal(t, http.StatusOK, get(t, newServer(ok).Router(nil), "/healthz").Code)

	assert.Equal(t, http.StatusServiceUnavailable, get(t, newServer(node.Report{}).Router(nil), "/healthz").Code)

	failed := node.Report{Time: t0, SampleErr: errors.New("adc")}
	assert.Equal(t, http.StatusServiceUnavailable, get(t, newServer(failed).Router(nil), "/healthz").Code)

	stale := newServer(ok)
	stale.now = func() time.Time { return t0.Add(time.Minute) }
	assert.Equal(t, http.StatusServiceUnavailable, get(t, stale.Router(nil), "/healthz").Code)
}

func TestStatus(t *testing.T) {
	r := node.Report{
		Time: t0,
		Snapshot: thermistor.Snapshot{
			Volts:    []float64{2.44, 1.80},
			Temps:    []float64{-40, 25},
			MinIndex: 0,
			MaxIndex: 1,
			AvgTemp:  -7,
		},
		Sent:      true,
		HasStatus: true,
		Status:    orion.Status{Value: 1},
		StatusAt:  t0,
	}
	rec := get(t, newServer(r).Router(nil), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "node-1", got.NodeID)
	assert.Equal(t, []float64{-40, 25}, got.Temps)
	assert.Equal(t, 25.0, got.Max)
	assert.Equal(t, -7, got.Avg)
	require.NotNil(t, got.R2D)
	assert.Equal(t, byte(1), *got.R2D)
	require.NotNil(t, got.R2DAt)
	assert.True(t, t0.Equal(*got.R2DAt))
	assert.True(t, got.Sent)
}

func TestStatus_NoR2DYet(t *testing.T) {
	rec := get(t, newServer(node.Report{Time: t0}).Router(nil), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "r2d")
	assert.NotContains(t, raw, "r2d_at")
}

func TestRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("thermnode_cycles_total 1\n"))
	})
	h := newServer(node.Report{Time: t0}).Router(metrics)
	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "thermnode_cycles_total")

	assert.Equal(t, http.StatusNotFound, get(t, newServer(node.Report{}).Router(nil), "/metrics").Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
