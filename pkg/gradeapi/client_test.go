package gradeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gradelens/internal/model"
	"github.com/sells-group/gradelens/internal/resilience"
)

func fastRetry() Option {
	return WithRetryPolicy(resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func TestPredictions_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/predictions/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 2, "created_at": "2025-03-02T10:00:00Z", "input_data": {"G1": 14, "G2": 15}, "predicted_grade": 15.4},
			{"id": 1, "created_at": "2025-03-01T10:00:00Z", "input_data": {"G1": 8}, "predicted_grade": null}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/api/", fastRetry())
	got, err := client.Predictions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, model.RecordID("2"), got[0].ID)
	g, ok := got[0].Grade()
	assert.True(t, ok)
	assert.Equal(t, 15.4, g)

	_, ok = got[1].Grade()
	assert.False(t, ok)
	g1, ok := got[1].PriorGrade()
	assert.True(t, ok)
	assert.Equal(t, 8.0, g1)
}

func TestPredictions_EmptyListIsNotNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`null`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Predictions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestModelInfo_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model-info/", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{
			"model_type": "Linear Regression",
			"metrics": {"mean_squared_error": 4.1234, "r2_score": 0.8012},
			"dataset": {"train_samples": 316, "test_samples": 79}
		}`))
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, WithToken("secret")).ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Linear Regression", info.ModelType)
	assert.Equal(t, 0.8012, info.Metrics.R2Score)
	assert.Equal(t, 4.1234, info.Metrics.MeanSquaredError)
	assert.Equal(t, 316, info.Dataset.TrainSamples)
	assert.Equal(t, 79, info.Dataset.TestSamples)
}

func TestModelInfo_RetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model not found"}`))
			return
		}
		w.Write([]byte(`{"metrics": {"r2_score": 0.7}}`))
	}))
	defer srv.Close()

	info, err := NewClient(srv.URL, fastRetry()).ModelInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.7, info.Metrics.R2Score)
	assert.Equal(t, int32(3), calls.Load())
}

func TestModelInfo_NonTransientStatusNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).ModelInfo(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPredictions_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Predictions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestWithRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	c := NewClient("http://example.invalid", WithRateLimit(0, 0)).(*httpClient)
	assert.Nil(t, c.limiter)

	c = NewClient("http://example.invalid", WithRateLimit(2, 0)).(*httpClient)
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())
}

func TestWithTimeout(t *testing.T) {
	t.Parallel()

	c := NewClient("http://example.invalid").(*httpClient)
	assert.Equal(t, 15*time.Second, c.http.Timeout)

	c = NewClient("http://example.invalid", WithTimeout(3*time.Second)).(*httpClient)
	assert.Equal(t, 3*time.Second, c.http.Timeout)
}

func TestWithTimeout_DoesNotModifySharedClient(t *testing.T) {
	t.Parallel()

	shared := &http.Client{Timeout: time.Minute}

	after := NewClient("http://example.invalid", WithHTTPClient(shared), WithTimeout(2*time.Second)).(*httpClient)
	before := NewClient("http://example.invalid", WithTimeout(2*time.Second), WithHTTPClient(shared)).(*httpClient)

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.Equal(t, 2*time.Second, after.http.Timeout)
	assert.Equal(t, 2*time.Second, before.http.Timeout)
	assert.NotSame(t, shared, after.http)
	assert.NotSame(t, shared, before.http)

	plain := NewClient("http://example.invalid", WithHTTPClient(shared)).(*httpClient)
	assert.Same(t, shared, plain.http)
}
