package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAllowedHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	c := New(Options{AllowedHosts: []string{u.Hostname()}, RatePerSecond: 100, Burst: 10})
	res, err := c.Fetch(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello", string(res.Body))
}

func TestFetchRejectsDisallowedHost(t *testing.T) {
	c := New(Options{AllowedHosts: []string{"example.com"}})
	_, err := c.Fetch(context.Background(), http.MethodGet, "http://not-allowed.test/", nil, nil)
	require.Error(t, err)
	var hostErr *ErrHostNotAllowed
	assert.ErrorAs(t, err, &hostErr)
}

func TestFetchRespectsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	c := New(Options{AllowedHosts: []string{u.Hostname()}, Timeout: time.Millisecond})
	_, err := c.Fetch(context.Background(), http.MethodGet, srv.URL, nil, nil)
	assert.Error(t, err)
}
