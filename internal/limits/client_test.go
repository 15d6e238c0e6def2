package limits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPFetcher_Remaining(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remaining-purchase-limit", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("customerId"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"limit":{"total":28},"consumed":{"total":25},"remaining":{"total":3}}`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, zap.NewNop())
	state, err := f.Remaining(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 28.0, state.DailyLimitGrams)
	assert.Equal(t, 25.0, state.ConsumedGrams)
	assert.Equal(t, 3.0, state.RemainingGrams)
}

func TestHTTPFetcher_Non200IsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL, zap.NewNop())
	_, err := f.Remaining(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPFetcher_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	f := NewHTTPFetcher(srv.URL, zap.NewNop())
	_, err := f.Remaining(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)
}
