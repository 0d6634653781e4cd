package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	h, err := Register(reg)
	require.NoError(t, err)
	require.NotNil(t, h)

	_, err = Register(reg)
	require.NoError(t, err)

	ObserveMethod("pictures.setPicture", "ok", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `shootingstars_method_calls_total{method="pictures.setPicture",outcome="ok"}`)
}

func TestCommitCounter(t *testing.T) {
	before := testutil.ToFloat64(Commits.WithLabelValues("lights"))
	n := CommitCounter()
	n.Notify(context.Background(), store.Change{Collection: "lights", Key: "0"})
	n.Notify(context.Background(), store.Change{Collection: "lights", Key: "1"})
	assert.Equal(t, before+2, testutil.ToFloat64(Commits.WithLabelValues("lights")))
}
