package tribeapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genericsim/tribectl/internal/model"
	"github.com/genericsim/tribectl/internal/resilience"
)

func fastRetry() Option {
	return WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func sampleState() model.TribeState {
	return model.TribeState{
		ID:          1,
		Name:        "Northern Tribe",
		CurrentTick: 4,
		Policy:      model.DefaultPolicy(),
	}
}

func TestListTribes_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tribes", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"tribeId":1,"tribeName":"Northern Tribe","currentTick":4,"policy":{}},
			{"tribeId":2,"tribeName":"River Tribe","currentTick":9}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/api/")
	tribes, err := client.ListTribes(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []model.Tribe{
		{ID: 1, Name: "Northern Tribe", CurrentTick: 4},
		{ID: 2, Name: "River Tribe", CurrentTick: 9},
	}, tribes)
}

func TestGetTribeState_Success(t *testing.T) {
	t.Parallel()

	want := sampleState()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tribes/1", r.URL.Path)
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).GetTribeState(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, want.Policy, got.Policy)
	assert.Equal(t, want.Name, got.Name)
}

func TestGetTribeState_NotFoundIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"tribe not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).GetTribeState(context.Background(), 99)

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetTribeState_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(sampleState())
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, fastRetry()).GetTribeState(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpdatePolicy_SendsPartialBody(t *testing.T) {
	t.Parallel()

	rate := 0.5
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tribes/3/policy", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"storageDecayRate":0.5}`, string(body))

		state := sampleState()
		state.ID = 3
		state.Policy.StorageDecayRate = 0.5
		json.NewEncoder(w).Encode(state)
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).UpdatePolicy(context.Background(), 3, model.PolicyUpdate{StorageDecayRate: &rate})

	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.Policy.StorageDecayRate, 1e-9)
}

func TestAdvanceTick_NotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, fastRetry()).AdvanceTick(context.Background(), 1)

	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetStatistics_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tribes/1/statistics", r.URL.Path)
		w.Write([]byte(`{"tribeId":1,"tribeName":"Northern Tribe","totalPopulation":12,
			"resourceStats":{"food":120,"water":80,"resourceStatus":"ADEQUATE"}}`))
	}))
	defer srv.Close()

	stats, err := NewClient(srv.URL).GetStatistics(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalPopulation)
	assert.Equal(t, model.ResourceAdequate, stats.ResourceStats.ResourceStatus)
}

func TestHealth_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"UP"}`))
	}))
	defer srv.Close()

	h, err := NewClient(srv.URL).Health(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "UP", h.Status)
}

func TestListTribes_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListTribes(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL).ListTribes(ctx)
	require.Error(t, err)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             serviceName,
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})
	client := NewClient(srv.URL, WithCircuitBreaker(cb), WithRetry(resilience.RetryConfig{MaxAttempts: 1}))

	for i := 0; i < 2; i++ {
		_, err := client.ListTribes(context.Background())
		require.Error(t, err)
	}

	_, err := client.ListTribes(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"UP"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithRateLimit(1000, 1))
	for i := 0; i < 3; i++ {
		_, err := client.Health(context.Background())
		require.NoError(t, err)
	}
}
