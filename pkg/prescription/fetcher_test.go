package prescription

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscanner/api/pkg/gateway/httpclient"
)

func TestFetcherRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	body, err := NewFetcher(time.Second, 2, 0).Fetch(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(body))
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetcherDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	url := srv.URL + "/missing.png"
	_, err := NewFetcher(time.Second, 3, 0).Fetch(context.Background(), url)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "Failed to download image from URL: "+url, err.Error())
	assert.EqualValues(t, 1, calls.Load())

	var statusErr *httpclient.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFetcherRejectsOversizedImage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write(make([]byte, 1000))
	}))
	defer srv.Close()

	body, err := NewFetcher(time.Second, 2, 100).Fetch(context.Background(), srv.URL+"/huge.jpg")
	require.Error(t, err)
	assert.Nil(t, body)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, srv.URL+"/huge.jpg", fetchErr.URL)
	assert.ErrorIs(t, err, httpclient.ErrBodyTooLarge)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetcherAcceptsImageAtLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	body, err := NewFetcher(time.Second, 1, 100).Fetch(context.Background(), srv.URL+"/a.jpg")
	require.NoError(t, err)
	assert.Len(t, body, 100)
}
