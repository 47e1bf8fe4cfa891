package event_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flagkit/pkg/event"
)

func TestNewHTTPDispatcher(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"ValidHTTPS", "https://logx.example.com/v1/events", false},
		{"ValidHTTP", "http://localhost:8080/events", false},
		{"Empty", "", true},
		{"NoHost", "https://", true},
		{"BadScheme", "ftp://example.com/events", true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, err := event.NewHTTPDispatcher(tc.endpoint)
			if tc.wantErr {
				assert.ErrorIs(t, err, event.ErrInvalidEndpoint)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}
}

func TestHTTPDispatcherDispatch(t *testing.T) {
	t.Parallel()

	t.Run("DeliversJSON", func(t *testing.T) {
		t.Parallel()
		var received event.LogEvent
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusNoContent)
		}))
		t.Cleanup(srv.Close)

		d, err := event.NewHTTPDispatcher(srv.URL)
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(context.Background(), &event.LogEvent{
			ID:     "e1",
			Type:   event.TypeImpression,
			UserID: "u1",
		}))
		assert.Equal(t, "e1", received.ID)
		assert.Equal(t, event.TypeImpression, received.Type)
		assert.Equal(t, "u1", received.UserID)
	})

	t.Run("RetriesTransientFailures", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		d, err := event.NewHTTPDispatcher(srv.URL,
			event.WithRetries(3),
			event.WithBackoff(time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(context.Background(), &event.LogEvent{ID: "e1"}))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("PermanentFailureIsNotRetried", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
		}))
		t.Cleanup(srv.Close)

		d, err := event.NewHTTPDispatcher(srv.URL,
			event.WithRetries(3),
			event.WithBackoff(time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)
		assert.ErrorIs(t, d.Dispatch(context.Background(), &event.LogEvent{ID: "e1"}), event.ErrPermanentFailure)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("RetryBudgetExhausted", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(srv.Close)

		d, err := event.NewHTTPDispatcher(srv.URL,
			event.WithRetries(2),
			event.WithBackoff(time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)
		assert.ErrorIs(t, d.Dispatch(context.Background(), &event.LogEvent{ID: "e1"}), event.ErrDispatchFailed)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("RateLimitedIsTransient", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		t.Cleanup(srv.Close)

		d, err := event.NewHTTPDispatcher(srv.URL,
			event.WithRetries(1),
			event.WithBackoff(time.Millisecond, 5*time.Millisecond))
		require.NoError(t, err)
		require.NoError(t, d.Dispatch(context.Background(), &event.LogEvent{ID: "e1"}))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("ContextCancellationStopsRetries", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)

		d, err := event.NewHTTPDispatcher(srv.URL,
			event.WithRetries(10),
			event.WithBackoff(time.Hour, time.Hour))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, d.Dispatch(ctx, &event.LogEvent{ID: "e1"}), event.ErrDispatchFailed)
	})
}

func TestNoopDispatcher(t *testing.T) {
	t.Parallel()
	assert.NoError(t, event.NoopDispatcher{}.Dispatch(context.Background(), &event.LogEvent{ID: "e1"}))
}
