package command

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-zhang/shellbox/httpfetch"
)

func TestCurlWithoutFetcherIsDisabled(t *testing.T) {
	cmd, _, _, _ := newCmd("curl", "/")
	err := cmd.RunContext(context.Background(), "http://example.com")
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Msg, "disabled")
}

func TestCurlFetchesAllowedURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	cmdIface, _ := Lookup("curl")
	cmd := cmdIface().(*curlCmd)
	var out, errOut bytes.Buffer
	cmd.SetIO(bytes.NewReader(nil), &out, &errOut)
	cmd.SetWorkingDir("/")
	cmd.SetLookupEnv(func(string) (string, bool) { return "", false })

	cmd.SetFetcher(httpfetch.New(httpfetch.Options{AllowedHosts: []string{"127.0.0.1"}}))

	require.NoError(t, cmd.RunContext(context.Background(), srv.URL))
	assert.Equal(t, "pong", out.String())
}

func TestCurlDisallowedHostFails(t *testing.T) {
	cmdIface, _ := Lookup("curl")
	cmd := cmdIface().(*curlCmd)
	var out, errOut bytes.Buffer
	cmd.SetIO(bytes.NewReader(nil), &out, &errOut)
	cmd.SetWorkingDir("/")
	cmd.SetLookupEnv(func(string) (string, bool) { return "", false })
	cmd.SetFetcher(httpfetch.New(httpfetch.Options{AllowedHosts: []string{"allowed.example.com"}}))

	err := cmd.RunContext(context.Background(), "http://blocked.example.com")
	require.Error(t, err)
}
