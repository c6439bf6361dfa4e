package sigma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	panelPage     = "panel.html"
	partitionPage = "part.cgi"
)

// FetchSnapshot reads the partition status and the zones, reusing the
// current session when it still works and logging in again otherwise.
//
// It never returns a partial snapshot: everything that is not Complete after
// all attempts is reported as ErrFetchFailed.
func (c *Client) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	snap, err := retry(ctx, "fetch", c.opts.Retry.Fetch, isRecoverable, func() (Snapshot, error) {
		return c.read(ctx, Snapshot.validate)
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return snap, nil
}

// isRecoverable reports whether a new login could fix err.
func isRecoverable(err error) bool {
	return !errors.Is(err, ErrAuthentication)
}

// read runs one fast path and, if it yields nothing usable, one full path.
// check decides what usable means.
func (c *Client) read(ctx context.Context, check func(Snapshot) error) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.tryFastPath(ctx, check); ok {
		return snap, nil
	}
	return c.fullPath(ctx, check)
}

func (c *Client) tryFastPath(ctx context.Context, check func(Snapshot) error) (Snapshot, bool) {
	if !c.authenticated.Load() {
		return Snapshot{}, false
	}
	snap, err := c.readPage(ctx)
	if err == nil {
		err = check(snap)
	}
	if err != nil {
		log.Debug("could not reuse session", "err", err)
		return Snapshot{}, false
	}
	log.Debug("reused session")
	return snap, true
}

func (c *Client) fullPath(ctx context.Context, check func(Snapshot) error) (Snapshot, error) {
	c.logout(ctx)
	if err := c.login(ctx); err != nil {
		return Snapshot{}, err
	}
	snap, err := retry(ctx, "read zones", c.opts.Retry.HTML, isParseError, func() (Snapshot, error) {
		return c.readPage(ctx)
	})
	if err != nil {
		return Snapshot{}, err
	}
	if err := check(snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// readPage walks panel.html, selects the partition and loads the zones page,
// which has the status, battery, AC and zones all in one document.
func (c *Client) readPage(ctx context.Context) (Snapshot, error) {
	if _, err := c.page(ctx, request{
		method: http.MethodGet,
		path:   panelPage,
	}); err != nil {
		return Snapshot{}, err
	}
	part, err := c.page(ctx, request{
		method: http.MethodPost,
		path:   partitionPage,
		form: url.Values{
			"part":   {"part" + c.opts.Partition},
			"Submit": {"code"},
		},
		referer: panelPage,
	})
	if err != nil {
		return Snapshot{}, err
	}
	doc, err := c.page(ctx, request{
		method:  http.MethodGet,
		path:    zonesPath(part),
		referer: partitionPage,
	})
	if err != nil {
		return Snapshot{}, err
	}

	status, err := parseStatus(doc)
	if err != nil {
		return Snapshot{}, err
	}
	snap := toSnapshot(status, parseZones(doc))
	snap.FetchedAt = time.Now()
	return snap, nil
}

// page requests a data page. A login form in its place means the panel
// dropped the session.
func (c *Client) page(ctx context.Context, req request) (*goquery.Document, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParse, req.path, err)
	}
	if isLoginPage(doc) {
		c.authenticated.Store(false)
		return nil, fmt.Errorf("%w: got a login form for %s", ErrSessionExpired, req.path)
	}
	return doc, nil
}
