package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yfiag/yfiag-deploy/internal/deploy"
)

func result(complete bool) *deploy.Result {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := &deploy.Result{
		ChainID:    97,
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Complete:   complete,
		Steps: []deploy.StepResult{
			{Name: "deploy-marketplace", Status: deploy.StatusConfirmed, GasUsed: 3_000_000},
			{Name: "deploy-launchpad", Status: deploy.StatusConfirmed, GasUsed: 2_000_000},
		},
	}
	if !complete {
		res.Steps = append(res.Steps, deploy.StepResult{Name: "deploy-multicall", Status: deploy.StatusFailed})
	}
	return res
}

func TestRun_ObserveComplete(t *testing.T) {
	r := NewRun()
	r.Observe(result(true))

	assert.Equal(t, float64(2), testutil.ToFloat64(r.steps.WithLabelValues("confirmed")))
	assert.Equal(t, float64(5_000_000), testutil.ToFloat64(r.gasUsed))
	assert.Equal(t, float64(3_000_000), testutil.ToFloat64(r.stepGas.WithLabelValues("deploy-marketplace")))
	assert.Equal(t, float64(90), testutil.ToFloat64(r.duration))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.success))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "yfiag_deploy_last_success_timestamp_seconds")
}

func TestRun_ObserveFailed(t *testing.T) {
	r := NewRun()
	r.Observe(result(false))

	assert.Equal(t, float64(1), testutil.ToFloat64(r.steps.WithLabelValues("failed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.success))

	families, err := r.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range families {
		assert.NotEqual(t, "yfiag_deploy_last_success_timestamp_seconds", f.GetName())
	}
}

func TestRun_Push(t *testing.T) {
	type request struct{ method, path, body string }
	got := make(chan request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- request{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRun()
	r.Observe(result(true))
	require.NoError(t, r.Push(context.Background(), srv.URL, 97))

	require.Len(t, got, 1)
	req := <-got
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/metrics/job/yfiag_deploy/chain_id/97", req.path)
	assert.NotEmpty(t, req.body)
}

func TestRun_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRun()
	r.Observe(result(false))
	err := r.Push(context.Background(), srv.URL, 97)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "push metrics:"))
}
