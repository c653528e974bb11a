package network

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"options-observer/src/helpers"
	"options-observer/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(retries int) *AsyncNetworkManager {
	nm := NewAsyncNetworkManager("", retries, logger.NewNopLogger())
	nm.BaseDelay = time.Millisecond
	return nm
}

func TestGet_RetriesUntilOK(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	body, err := newManager(3).Get(context.Background(), srv.URL+"/file.json", map[string]string{"page": "1"})
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGet_GivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newManager(2).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var netErr *helpers.NetworkError
	assert.ErrorAs(t, err, &netErr)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestDo_ReturnsStatusAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		assert.Equal(t, "options-observer/1.0", r.Header.Get("User-Agent"))
		b, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(b))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Invalid Token"}`))
	}))
	defer srv.Close()

	status, body, err := newManager(0).Do(context.Background(), http.MethodPost, srv.URL,
		map[string]string{"Authorization": "Bearer abc"}, []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, string(body), "Invalid Token")
}

func TestDo_TimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := newManager(0).Do(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)

	var netErr *helpers.NetworkError
	assert.ErrorAs(t, err, &netErr)
}
