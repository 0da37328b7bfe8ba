package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("build", 90*time.Second)
	pr.ObserveTimeoutFraction("build", 0.4)
	pr.IncStepOutcome("build", OutcomeSuccess)
	pr.ObserveStageDuration("preparing", time.Second)
	pr.ObserveRunDuration("writeback", time.Minute)
	pr.IncRunOutcome("writeback", "succeeded")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"cachebuild_step_duration_seconds",
		"cachebuild_step_timeout_fraction",
		"cachebuild_step_outcomes_total",
		"cachebuild_stage_duration_seconds",
		"cachebuild_run_duration_seconds",
		"cachebuild_run_outcomes_total",
	} {
		assert.True(t, names[want], want)
	}
	assert.Same(t, reg, pr.Registry())
}

func TestNilRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveStepDuration("x", time.Second)
		pr.IncStepOutcome("x", OutcomeTimedOut)
		pr.IncRunOutcome("data", "failed")
	})
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncStepOutcome("clone", OutcomeFunctionalFailure)

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `cachebuild_step_outcomes_total{outcome="functional_failure",step="clone"} 1`)
}

func TestPush(t *testing.T) {
	var gotPath string
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome("nocache", "failed")

	err := Push(context.Background(), gw.URL, "cachebuild", reg, map[string]string{"mode": "nocache"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPath, "/metrics/job/cachebuild"), gotPath)
	assert.Contains(t, gotPath, "/mode/nocache")
}

func TestPushDisabled(t *testing.T) {
	assert.NoError(t, Push(context.Background(), "", "cachebuild", prom.NewRegistry(), nil))
}
