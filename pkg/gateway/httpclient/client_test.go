package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryIfStopsOnSuccess(t *testing.T) {
	calls := 0
	retryAll := func(error) bool { return true }
	err := RetryIf(context.Background(), 3, time.Millisecond, retryAll, func() error {
		calls++
		if calls < 2 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryIfSkipsPermanentErrors(t *testing.T) {
	calls := 0
	err := RetryIf(context.Background(), 5, time.Millisecond, IsRetriable, func() error {
		calls++
		return &StatusError{URL: "http://x", StatusCode: http.StatusNotFound}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryIf(ctx, 3, time.Millisecond, IsRetriable, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, IsRetriable(&StatusError{StatusCode: http.StatusBadGateway}))
	assert.True(t, IsRetriable(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetriable(&StatusError{StatusCode: http.StatusForbidden}))
	assert.True(t, IsRetriable(context.DeadlineExceeded))
	assert.False(t, IsRetriable(errors.New("boom")))
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	client := New(time.Second)

	body, err := Get(context.Background(), client, srv.URL+"/ok", 0)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(body))

	body, err = Get(context.Background(), client, srv.URL+"/ok", int64(len("image-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(body))

	_, err = Get(context.Background(), client, srv.URL+"/ok", 5)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.False(t, IsRetriable(err))

	_, err = Get(context.Background(), client, srv.URL+"/missing", 0)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}
