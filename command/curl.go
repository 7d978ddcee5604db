package command

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-zhang/shellbox/httpfetch"
)

func init() {
	register("curl", func() Command { return &curlCmd{} })
}

// curlCmd is the sandbox's only window onto the network: it goes through
// httpfetch.Client, which enforces the host allow-list and rate limit a
// Fetcher provides, rather than dialing out directly.
type curlCmd struct {
	base
	Fetcher *httpfetch.Client
}

// SetFetcher lets the sandbox facade inject the allow-listed HTTP client
// after construction; Registry only knows how to build bare Commands.
func (c *curlCmd) SetFetcher(f *httpfetch.Client) { c.Fetcher = f }

func (c *curlCmd) RunContext(ctx context.Context, args ...string) error {
	if c.Fetcher == nil {
		return c.errf(1, "curl: network access is disabled in this sandbox")
	}
	method := "GET"
	silent := false
	headOnly := false
	var headers []string
	var target string
	var body string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-X":
			if i+1 < len(args) {
				method = args[i+1]
				i++
			}
		case "-H":
			if i+1 < len(args) {
				headers = append(headers, args[i+1])
				i++
			}
		case "-d", "--data":
			if i+1 < len(args) {
				body = args[i+1]
				method = "POST"
				i++
			}
		case "-s", "--silent":
			silent = true
		case "-I", "--head":
			headOnly = true
			method = "HEAD"
		default:
			if !strings.HasPrefix(args[i], "-") {
				target = args[i]
			}
		}
	}
	if target == "" {
		return c.errf(1, "curl: no URL specified")
	}
	hdrs := map[string]string{}
	for _, h := range headers {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			hdrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	res, err := c.Fetcher.Fetch(ctx, method, target, reqBody, hdrs)
	if err != nil {
		if !silent {
			fmt.Fprintf(c.stderr, "curl: %s\n", err)
		}
		return c.errf(1, "curl: %s", err)
	}
	if headOnly {
		for k, v := range res.Header {
			fmt.Fprintf(c.stdout, "%s: %s\n", k, strings.Join(v, ", "))
		}
		return nil
	}
	c.stdout.Write(res.Body)
	if res.StatusCode >= 400 {
		return &ExitError{Code: 22, Msg: fmt.Sprintf("curl: server returned %d", res.StatusCode)}
	}
	return nil
}
