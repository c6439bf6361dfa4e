package sigma

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	for raw, expected := range map[string]string{
		"192.168.1.100":               "192.168.1.100",
		"http://192.168.1.100":        "192.168.1.100",
		"https://alarm.local:8080":    "alarm.local",
		"  http://alarm.local:5053/ ": "alarm.local",
		"alarm.local:5053":            "alarm.local",
	} {
		t.Run(raw, func(t *testing.T) {
			require.Equal(t, expected, SanitizeHost(raw))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cli, err := New(Options{
			Host:     "https://192.168.1.100:80",
			Username: "admin",
			Password: "pass",
			PIN:      "  1234  ",
		})
		require.NoError(t, err)
		require.Equal(t, "http://192.168.1.100:5053", cli.BaseURL())
		require.Equal(t, "1234", cli.opts.PIN)
		require.Equal(t, DefaultRetryPolicy(), cli.opts.Retry)
		require.False(t, cli.Authenticated())
	})

	t.Run("pin falls back to password", func(t *testing.T) {
		cli, err := New(Options{Host: "h", Password: "pass", PIN: "   "})
		require.NoError(t, err)
		require.Equal(t, "pass", cli.opts.PIN)
	})

	t.Run("missing host", func(t *testing.T) {
		_, err := New(Options{Password: "pass"})
		require.Error(t, err)
	})

	t.Run("password too long", func(t *testing.T) {
		_, err := New(Options{Host: "h", Password: "12345678901234"})
		require.ErrorIs(t, err, ErrSecretTooLong)
	})
}

func TestLogin(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		panel, srv := newFakePanel(t)
		cli := panel.client(srv)
		require.NoError(t, cli.Login(context.Background()))
		require.True(t, cli.Authenticated())
		require.False(t, cli.LastLogin().IsZero())
		require.Equal(t, []string{
			"GET /login.html",
			"POST /login.html",
			"GET /user.html",
			"POST /ucode",
		}, panel.Calls())
	})

	t.Run("wrong password", func(t *testing.T) {
		panel, srv := newFakePanel(t)
		opts := panel.options(srv)
		opts.Password = "wrong"
		cli, err := New(opts)
		require.NoError(t, err)
		err = cli.Login(context.Background())
		require.ErrorIs(t, err, ErrAuthentication)
		require.False(t, cli.Authenticated())
		require.Equal(t, []string{
			"GET /login.html",
			"POST /login.html",
		}, panel.Calls())
	})

	t.Run("wrong pin", func(t *testing.T) {
		panel, srv := newFakePanel(t)
		opts := panel.options(srv)
		opts.PIN = "9999"
		cli, err := New(opts)
		require.NoError(t, err)
		err = cli.Login(context.Background())
		require.ErrorIs(t, err, ErrAuthentication)
		require.False(t, cli.Authenticated())
		require.Equal(t, 1, panel.count("POST /ucode"))
	})

	t.Run("logout drops the session", func(t *testing.T) {
		panel, srv := newFakePanel(t)
		cli := panel.client(srv)
		require.NoError(t, cli.Login(context.Background()))
		cli.Logout(context.Background())
		require.False(t, cli.Authenticated())
		require.Equal(t, 1, panel.count("GET /logout.html"))
	})

	t.Run("logout ignores errors", func(t *testing.T) {
		panel, srv := newFakePanel(t)
		cli := panel.client(srv)
		srv.Close()
		cli.Logout(context.Background())
		require.False(t, cli.Authenticated())
	})
}

func TestRequestHook(t *testing.T) {
	panel, srv := newFakePanel(t)
	opts := panel.options(srv)
	var paths []string
	opts.OnRequest = func(method, path string, err error) {
		require.NoError(t, err)
		paths = append(paths, method+" /"+path)
	}
	cli, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, cli.Login(context.Background()))
	require.Equal(t, panel.Calls(), paths)
}

func TestMacAddress(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("only works in my network")
	}
	hw, err := MacAddress("192.168.1.1")
	require.NoError(t, err)
	require.NotEmpty(t, hw)
}
