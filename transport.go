package sigma

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

type request struct {
	method  string
	path    string
	form    url.Values
	referer string
}

func newHTTPClient() *http.Client {
	// cookiejar.New never fails.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &http.Client{Jar: jar}
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// do sends req, retrying connection errors and the configured status codes.
// The body is returned decoded to UTF-8.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	return retry(ctx, req.method+" "+req.path, c.opts.Retry.HTTP, isTransient, func() ([]byte, error) {
		return c.doOnce(ctx, req)
	})
}

func (c *Client) doOnce(ctx context.Context, req request) ([]byte, error) {
	body, err := c.roundTrip(ctx, req)
	if c.opts.OnRequest != nil {
		c.opts.OnRequest(req.method, req.path, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	var payload io.Reader
	if req.form != nil {
		payload = strings.NewReader(req.form.Encode())
	}
	r, err := http.NewRequestWithContext(ctx, req.method, c.url(req.path), payload)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.referer != "" {
		r.Header.Set("Referer", c.url(req.referer))
	}

	resp, err := c.http.Do(r)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransientNetwork, req.method, req.path, err)
	}
	defer resp.Body.Close()

	if slices.Contains(c.opts.Retry.RetryStatuses, resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %w", ErrTransientNetwork, &HTTPStatusError{
			Method: req.method,
			Path:   req.path,
			Code:   resp.StatusCode,
		})
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPStatusError{
			Method: req.method,
			Path:   req.path,
			Code:   resp.StatusCode,
		}
	}

	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: could not decode %s: %w", ErrParse, req.path, err)
	}
	bts, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read %s: %w", ErrTransientNetwork, req.path, err)
	}
	return bts, nil
}
