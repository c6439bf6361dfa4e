package main

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/env/v11"
	sigma "github.com/caarlos0/homekit-sigma"
	logp "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed index.html
var index string

var indexTpl = template.Must(template.New("index").Parse(index))

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "homekit",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const manufacturer = "Sigma"

func main() {
	log.Info(
		"homekit-sigma",
		"version", version,
		"commit", commit,
		"date", date,
		"info", "Homekit bridge for Sigma alarm panels",
	)

	// .env is optional
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}
	if level, err := logp.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
		sigma.SetLogLevel(level)
	} else {
		log.Warn("invalid log level", "level", cfg.LogLevel, "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli, err := sigma.New(cfg.options())
	if err != nil {
		log.Fatal("could not create client", "err", err)
	}
	coord := sigma.NewCoordinator(cli, cfg.MaxConsecutiveFailures)

	snap, err := coord.Refresh(ctx)
	if err != nil {
		log.Fatal("could not init accessories", "err", err)
	}

	host := sigma.SanitizeHost(cfg.Host)
	macAddr, err := sigma.MacAddress(host)
	if err != nil {
		log.Warn(
			"could not get the mac address, needs 'cap_net_raw+ep' capabilities",
			"err", err,
		)
	}
	log.Info(
		"got alarm system information",
		"status", snap.Status,
		"zones", len(snap.Zones),
		"battery", snap.Battery(),
		"mac", macAddr,
	)

	if cfg.Analytics && cfg.AnalyticsURL != "" {
		go func() {
			actx, acancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer acancel()
			if err := sigma.PostInstallAnalytics(
				actx,
				http.DefaultClient,
				cfg.AnalyticsURL,
				cli.BaseURL(),
				version,
				cfg.analyticsFields(),
			); err != nil {
				log.Debug("could not send analytics", "err", err)
			}
		}()
	}

	bridge := accessory.NewBridge(accessory.Info{
		Name:         "Alarm Bridge",
		Manufacturer: manufacturer,
		Firmware:     version,
	})

	alarm := NewSecuritySystem(accessory.Info{
		Name:         "Alarm",
		SerialNumber: macAddr,
		Manufacturer: manufacturer,
		Model:        "Ixion",
	}, func(action sigma.Action) error {
		return cli.PerformAction(ctx, action)
	})
	alarm.Id = 2
	alarm.Update(snap)

	sensors := setupZones(cfg, snap)

	go coord.Run(ctx, cfg.PollInterval, cli.Changes(), func(snap sigma.Snapshot, err error) {
		failuresGauge.Set(float64(coord.Failures()))
		if err != nil {
			alarm.setFault(true)
			return
		}
		staleGauge.Set(time.Since(snap.FetchedAt).Seconds())
		alarm.Update(snap)
		sensors.Update(snap)
	})

	server, err := hap.NewServer(hap.NewFsStore(cfg.DB), bridge.A, accessories(alarm, sensors)...)
	if err != nil {
		log.Fatal("fail to create server", "error", err)
	}
	server.Addr = cfg.Address
	server.ServeMux().Handle("/metrics", promhttp.Handler())
	server.ServeMux().Handle("/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		page, ok := newPage(coord, sensors)
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		if err := indexTpl.Execute(w, page); err != nil {
			log.Error("could not render index", "err", err)
		}
	}))

	log.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to close server", "err", err)
	}
	log.Info("stopping server")
	cli.Logout(context.Background())
}

func accessories(alarm *SecuritySystem, sensors ZoneSensors) []*accessory.A {
	result := []*accessory.A{alarm.A}
	for _, s := range sensors {
		result = append(result, s.A)
	}
	return result
}

func boolAs[T int | float64](b bool) T {
	if b {
		return 1
	}
	return 0
}

type PageItem struct {
	ID       string
	Name     string
	Contact  string
	Open     bool
	Bypassed bool
}

type Page struct {
	State         string
	ZonesBypassed string
	Battery       string
	ACPower       string
	UpdatedAt     string
	Failures      int
	Zones         []PageItem
}

func newPage(coord *sigma.Coordinator, sensors ZoneSensors) (Page, bool) {
	snap, ok := coord.Last()
	if !ok {
		return Page{}, false
	}
	page := Page{
		State:         snap.Status.String(),
		ZonesBypassed: snap.ZonesBypassed.String(),
		Battery:       snap.Battery().String(),
		ACPower:       snap.ACPower.String(),
		UpdatedAt:     snap.FetchedAt.Format(time.DateTime),
		Failures:      coord.Failures(),
	}
	if snap.BatteryVolts != nil {
		page.Battery += " (" + strconv.FormatFloat(*snap.BatteryVolts, 'f', 1, 64) + "V)"
	}
	names := make(map[string]string, len(sensors))
	for _, s := range sensors {
		names[s.ZoneID] = s.Name()
	}
	for _, zone := range snap.Zones {
		name := names[zone.ID]
		if name == "" {
			name = zone.Description
		}
		bypassed, _ := zone.Bypassed.Bool()
		page.Zones = append(page.Zones, PageItem{
			ID:       zone.ID,
			Name:     name,
			Contact:  string(zone.Contact),
			Open:     zone.Contact.IsOpen(),
			Bypassed: bypassed,
		})
	}
	return page, true
}
