package infra

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRetryOnDialError(t *testing.T) {
	ctx := context.Background()

	retry, err := retryOnDialError(ctx, nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")})
	require.NoError(t, err)
	assert.True(t, retry)

	retry, err = retryOnDialError(ctx, nil, &net.OpError{Op: "read", Err: errors.New("i/o timeout")})
	require.NoError(t, err)
	assert.False(t, retry)

	retry, err = retryOnDialError(ctx, &http.Response{StatusCode: http.StatusBadGateway}, nil)
	require.NoError(t, err)
	assert.False(t, retry)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	retry, err = retryOnDialError(cancelled, nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, retry)
}

func TestNewRetryClient_DialOnlyDoesNotRepeatSlowRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewRetryClient(RetryOptions{
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
		Timeout:      50 * time.Millisecond,
		DialOnly:     true,
	}, zap.NewNop())

	_, err := client.Get(srv.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestNewRetryClient_DefaultPolicyRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRetryClient(RetryOptions{
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	}, zap.NewNop())

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}
