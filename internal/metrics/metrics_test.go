package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ResetTokens(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.ResetTokenIssued()
	c.ResetTokenIssued()
	c.ResetTokenRedeemed("success")
	c.ResetTokenRedeemed("expired")
	c.ResetTokenRedeemed("expired")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.resetIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resetRedeemed.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.resetRedeemed.WithLabelValues("expired")))
}

func TestCollector_Generations(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.GenerationStarted()
	c.GenerationStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.activeGenerating))

	c.FragmentRelayed()
	c.GenerationFinished("completed", 3*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.activeGenerating))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generations.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fragments))
	assert.Equal(t, 1, testutil.CollectAndCount(c.generationTime))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ResetTokenIssued()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	resp := rec.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cicero_reset_tokens_issued_total 1")
}
