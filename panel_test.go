package sigma

import (
	"crypto/rc4"
	"encoding/hex"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	loginToken = "abcdefghijklmnop"
	userToken  = "1234567890123456"
)

func fixture(tb testing.TB, name string) string {
	tb.Helper()
	bts, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(tb, err)
	return string(bts)
}

// reveal decrypts an obfuscated secret with the stdlib RC4.
func reveal(encoded, token string) (string, error) {
	bts, err := hex.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	c, err := rc4.NewCipher([]byte(token))
	if err != nil {
		return "", err
	}
	c.XORKeyStream(bts, bts)
	return string(bts), nil
}

// fakePanel mimics the panel web server closely enough for the client.
type fakePanel struct {
	tb       testing.TB
	pages    map[string]string
	username string
	password string
	pin      string

	mu       sync.Mutex
	calls    []string
	loggedIn bool
	zones    string
	// unavailable makes the next n requests to the zones page fail with 503.
	unavailable int
	// onTrigger, when set, runs on every action request and may change zones.
	onTrigger func(p *fakePanel, path string)
}

func newFakePanel(tb testing.TB) (*fakePanel, *httptest.Server) {
	tb.Helper()
	pages := map[string]string{}
	for _, name := range []string{
		"login.html",
		"user.html",
		"part.html",
		"zones.html",
		"zones_armed.html",
		"zones_perimeter.html",
		"zones_paragraph.html",
		"zones_notable.html",
	} {
		pages[name] = fixture(tb, name)
	}
	p := &fakePanel{
		tb:       tb,
		pages:    pages,
		username: "admin",
		password: "secret",
		pin:      "1234",
		zones:    pages["zones.html"],
		onTrigger: func(p *fakePanel, path string) {
			switch path {
			case "/arm.html":
				p.zones = p.pages["zones_armed.html"]
			case "/stay.html":
				p.zones = p.pages["zones_perimeter.html"]
			case "/disarm.html":
				p.zones = p.pages["zones.html"]
			}
		},
	}
	srv := httptest.NewServer(p)
	tb.Cleanup(srv.Close)
	return p, srv
}

func (p *fakePanel) options(srv *httptest.Server) Options {
	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(p.tb, err)
	return Options{
		Host:           host,
		Port:           port,
		Username:       p.username,
		Password:       p.password,
		PIN:            p.pin,
		RequestTimeout: time.Second,
		Retry: RetryPolicy{
			HTTP:          Backoff{Attempts: 2, Base: time.Millisecond},
			RetryStatuses: []int{http.StatusServiceUnavailable},
			HTML:          Backoff{Attempts: 2, Base: time.Millisecond},
			Fetch:         Backoff{Attempts: 2, Base: time.Millisecond},
			Action:        Backoff{Attempts: 2, Base: time.Millisecond},
		},
		ActionTimeout:      300 * time.Millisecond,
		ActionPollInterval: 10 * time.Millisecond,
	}
}

func (p *fakePanel) client(srv *httptest.Server) *Client {
	cli, err := New(p.options(srv))
	require.NoError(p.tb, err)
	return cli
}

func (p *fakePanel) setZones(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.zones = p.pages[name]
}

// update changes the panel state while no request is being served.
func (p *fakePanel) update(fn func(p *fakePanel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakePanel) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *fakePanel) count(call string) int {
	n := 0
	for _, c := range p.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (p *fakePanel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	switch r.Method + " " + r.URL.Path {
	case "GET /login.html":
		_, _ = w.Write([]byte(p.pages["login.html"]))
	case "POST /login.html":
		_ = r.ParseForm()
		ok := r.PostForm.Get("username") == p.username &&
			p.revealed(r.PostForm.Get("password"), loginToken, r.PostForm.Get("gen_input"), p.password)
		if !ok {
			p.loggedIn = false
			_, _ = w.Write([]byte(p.pages["login.html"]))
			return
		}
		p.loggedIn = true
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	case "GET /user.html":
		if !p.loggedIn {
			_, _ = w.Write([]byte(p.pages["login.html"]))
			return
		}
		_, _ = w.Write([]byte(p.pages["user.html"]))
	case "POST /ucode":
		_ = r.ParseForm()
		if !p.revealed(r.PostForm.Get("password"), userToken, r.PostForm.Get("gen_input"), p.pin) {
			p.loggedIn = false
			_, _ = w.Write([]byte(p.pages["login.html"]))
			return
		}
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	case "GET /logout.html":
		p.loggedIn = false
		_, _ = w.Write([]byte("<html><body>bye</body></html>"))
	default:
		p.serveData(w, r)
	}
}

func (p *fakePanel) serveData(w http.ResponseWriter, r *http.Request) {
	if !p.loggedIn {
		_, _ = w.Write([]byte(p.pages["login.html"]))
		return
	}
	switch r.Method + " " + r.URL.Path {
	case "GET /panel.html":
		_, _ = w.Write([]byte("<html><body>panel</body></html>"))
	case "POST /part.cgi":
		_ = r.ParseForm()
		if r.PostForm.Get("part") != "part1" || !strings.HasSuffix(r.Referer(), "/panel.html") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(p.pages["part.html"]))
	case "GET /zones.html":
		if !strings.HasSuffix(r.Referer(), "/part.cgi") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if p.unavailable > 0 {
			p.unavailable--
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(p.zones))
	case "GET /arm.html", "GET /disarm.html", "GET /stay.html":
		if p.onTrigger != nil {
			p.onTrigger(p, r.URL.Path)
		}
		_, _ = w.Write([]byte("<html><body>done</body></html>"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// revealed checks that encoded decrypts to a padded plaintext carrying
// secret, and that length is the raw ciphertext length.
func (p *fakePanel) revealed(encoded, token, length, secret string) bool {
	plain, err := reveal(encoded, token)
	if err != nil {
		return false
	}
	return strings.Contains(plain, secret) && length == strconv.Itoa(len(plain))
}
