package sigma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	logp "github.com/charmbracelet/log"
	"github.com/j-keck/arping"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "sigma",
})

// SetLogLevel changes the level of the library logger.
func SetLogLevel(level logp.Level) {
	log.SetLevel(level)
}

const (
	DefaultPort      = "5053"
	DefaultPartition = "1"
)

type Options struct {
	Host     string
	Port     string
	Username string
	Password string
	// PIN is the user code sent on the second login step. Defaults to
	// Password.
	PIN       string
	Partition string

	RequestTimeout time.Duration
	Retry          RetryPolicy

	// PostActionDelay is how long to wait after triggering an action before
	// the first verification read.
	PostActionDelay    time.Duration
	ActionTimeout      time.Duration
	ActionPollInterval time.Duration

	// OnRequest, when set, is called after every HTTP round trip.
	OnRequest func(method, path string, err error)
}

func (o Options) withDefaults() Options {
	if o.Port == "" {
		o.Port = DefaultPort
	}
	if o.Partition == "" {
		o.Partition = DefaultPartition
	}
	o.PIN = strings.TrimSpace(o.PIN)
	if o.PIN == "" {
		o.PIN = o.Password
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = 5 * time.Second
	}
	if o.Retry.HTTP.Attempts == 0 &&
		o.Retry.HTML.Attempts == 0 &&
		o.Retry.Fetch.Attempts == 0 &&
		o.Retry.Action.Attempts == 0 {
		o.Retry = DefaultRetryPolicy()
	}
	if o.ActionTimeout == 0 {
		o.ActionTimeout = 30 * time.Second
	}
	if o.ActionPollInterval == 0 {
		o.ActionPollInterval = 2 * time.Second
	}
	return o
}

// Client talks to the panel's embedded web server.
//
// A Client owns exactly one web session. Every sequence of requests that
// depends on the session cookies (login, a page read, an action trigger)
// runs under mu, so polling and commands never interleave inside one.
type Client struct {
	opts    Options
	baseURL string

	mu            sync.Mutex
	http          *http.Client
	lastLogin     time.Time
	authenticated atomic.Bool

	// actionMu is held for a whole arm/disarm/stay.
	actionMu sync.Mutex
	changes  chan struct{}
}

func New(opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if opts.Host == "" {
		return nil, errors.New("missing host")
	}
	if len(opts.Password) > maxSecretLen {
		return nil, fmt.Errorf("password: %w", ErrSecretTooLong)
	}
	if len(opts.PIN) > maxSecretLen {
		return nil, fmt.Errorf("pin: %w", ErrSecretTooLong)
	}
	return &Client{
		opts:    opts,
		baseURL: "http://" + net.JoinHostPort(SanitizeHost(opts.Host), opts.Port),
		http:    newHTTPClient(),
		changes: make(chan struct{}, 1),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}

// LastLogin is the time of the last successful login.
func (c *Client) LastLogin() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogin
}

// Changes receives a value after an action was confirmed, so pollers can
// refresh right away.
func (c *Client) Changes() <-chan struct{} {
	return c.changes
}

func (c *Client) notifyChanged() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Login runs both login steps: the user form and the PIN form.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

// Logout ends the session and drops all cookies. Errors are ignored.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logout(ctx)
}

func (c *Client) login(ctx context.Context) error {
	c.authenticated.Store(false)
	if err := c.submitSecret(ctx, "login.html", "login.html", c.opts.Password, url.Values{
		"username": {c.opts.Username},
		"Submit":   {"Apply"},
	}); err != nil {
		return loginError("could not submit login form", err)
	}
	if err := c.submitSecret(ctx, "user.html", "ucode", c.opts.PIN, url.Values{
		"Submit": {"code"},
	}); err != nil {
		return loginError("could not submit pin", err)
	}
	c.authenticated.Store(true)
	c.lastLogin = time.Now()
	log.Debug("logged in", "user", c.opts.Username)
	return nil
}

// loginError keeps network errors retryable and turns everything else into
// an authentication failure.
func loginError(msg string, err error) error {
	if isTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrAuthentication, msg, err)
}

// errRejected means the panel answered with the user login form again.
var errRejected = errors.New("credentials rejected")

// submitSecret reads the gen_input token from formPage, obfuscates secret
// against it and posts the result to action.
func (c *Client) submitSecret(
	ctx context.Context,
	formPage, action, secret string,
	fields url.Values,
) error {
	_, err := retry(ctx, "read "+formPage, c.opts.Retry.HTML, isParseError, func() (struct{}, error) {
		body, err := c.do(ctx, request{method: http.MethodGet, path: formPage})
		if err != nil {
			return struct{}{}, err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if formPage != "login.html" && hasUsernameField(doc) {
			return struct{}{}, errRejected
		}
		token, err := parseToken(doc)
		if err != nil {
			return struct{}{}, err
		}
		enc, length, err := Obfuscate(secret, token)
		if err != nil {
			return struct{}{}, err
		}
		form := url.Values{
			"password": {enc},
			tokenField: {length},
		}
		for k, v := range fields {
			form[k] = v
		}
		body, err = c.do(ctx, request{method: http.MethodPost, path: action, form: form})
		if err != nil {
			return struct{}{}, err
		}
		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %w", ErrParse, err)
		}
		if hasUsernameField(doc) {
			return struct{}{}, errRejected
		}
		return struct{}{}, nil
	})
	return err
}

func (c *Client) logout(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()
	if _, err := c.doOnce(ctx, request{method: http.MethodGet, path: "logout.html"}); err != nil {
		log.Debug("logout failed", "err", err)
	}
	c.http.CloseIdleConnections()
	c.http = newHTTPClient()
	c.authenticated.Store(false)
}

var (
	schemeRe = regexp.MustCompile(`^https?://`)
	portRe   = regexp.MustCompile(`:\d+$`)
)

// SanitizeHost strips the scheme and port from a user supplied host.
func SanitizeHost(raw string) string {
	host := strings.TrimSpace(raw)
	host = schemeRe.ReplaceAllString(host, "")
	host = strings.TrimRight(host, "/")
	host = portRe.ReplaceAllString(host, "")
	return strings.TrimSpace(host)
}

func MacAddress(ip string) (string, error) {
	hw, _, err := arping.Ping(net.ParseIP(ip))
	if err != nil {
		return "", fmt.Errorf("could not get the mac address: %w", err)
	}
	return hw.String(), nil
}
