package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*UserClient, *httpclient.CircuitBreakerClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := httpclient.New(httpclient.Config{
		Timeout:      time.Second,
		MaxRetries:   0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	})
	cbCfg := httpclient.DefaultCircuitBreakerConfig(t.Name())
	cbCfg.MinRequests = 2
	cbCfg.Timeout = time.Minute
	cb := httpclient.NewCircuitBreakerClient(base, cbCfg, testLogger())

	return NewUserClient(cb, srv.URL+"/", testLogger()), cb
}

func TestUserClient_GetByUsername(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/users/by-username/marko%20m", r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u-1","username":"marko m","avatar":"a.png","bio":"collector","location":"Split"}`))
	})

	p, err := c.GetByUsername(context.Background(), "marko m")
	require.NoError(t, err)
	assert.Equal(t, "u-1", p.UserID)
	assert.Equal(t, "Split", p.Location)
}

func TestUserClient_NotFound(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"user not found"}}`))
	})

	_, err := c.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserClient_ServerErrorIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.GetByUsername(context.Background(), "marko")
	assert.ErrorIs(t, err, apperrors.ErrTransient)
}

func TestUserClient_BadRequestIsNotTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INVALID_INPUT","message":"bad username"}}`))
	})

	_, err := c.GetByUsername(context.Background(), "marko")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NotErrorIs(t, err, apperrors.ErrTransient)
}

func TestUserClient_MalformedBodyIsTransient(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username":`))
	})

	_, err := c.GetByUsername(context.Background(), "marko")
	assert.ErrorIs(t, err, apperrors.ErrTransient)
}

func TestUserClient_OpenBreakerIsTransient(t *testing.T) {
	var calls atomic.Int32
	c, cb := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 3; i++ {
		_, _ = c.GetByUsername(context.Background(), "marko")
	}
	before := calls.Load()

	_, err := c.GetByUsername(context.Background(), "marko")
	assert.ErrorIs(t, err, apperrors.ErrTransient)
	assert.Equal(t, "open", cb.State().String())
	assert.Equal(t, before, calls.Load())
}
