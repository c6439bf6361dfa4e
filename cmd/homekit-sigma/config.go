package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brutella/hap/characteristic"
	sigma "github.com/caarlos0/homekit-sigma"
	"golang.org/x/exp/slices"
)

type Config struct {
	Host      string `env:"HOST,notEmpty"`
	Port      string `env:"PANEL_PORT"   envDefault:"5053"`
	Username  string `env:"USERNAME,notEmpty"`
	Password  string `env:"PASSWORD,notEmpty"`
	PIN       string `env:"PIN"`
	Partition string `env:"PARTITION"    envDefault:"1"`

	PollInterval           time.Duration `env:"POLL_INTERVAL"            envDefault:"10s"`
	RequestTimeout         time.Duration `env:"REQUEST_TIMEOUT"          envDefault:"5s"`
	RetryTotal             int           `env:"RETRY_TOTAL"              envDefault:"5"`
	RetryBackoffFactor     time.Duration `env:"RETRY_BACKOFF_FACTOR"     envDefault:"500ms"`
	RetryAttemptsForHTML   int           `env:"RETRY_ATTEMPTS_FOR_HTML"  envDefault:"3"`
	MaxTotalAttempts       int           `env:"MAX_TOTAL_ATTEMPTS"       envDefault:"3"`
	MaxActionAttempts      int           `env:"MAX_ACTION_ATTEMPTS"      envDefault:"5"`
	ActionBaseDelay        time.Duration `env:"ACTION_BASE_DELAY"        envDefault:"2s"`
	PostActionExtraDelay   time.Duration `env:"POST_ACTION_EXTRA_DELAY"  envDefault:"5s"`
	ActionTimeout          time.Duration `env:"ACTION_TIMEOUT"           envDefault:"30s"`
	ActionPollInterval     time.Duration `env:"ACTION_POLL_INTERVAL"     envDefault:"2s"`
	MaxConsecutiveFailures int           `env:"MAX_CONSECUTIVE_FAILURES" envDefault:"3"`

	ZoneNames    []string `env:"ZONE_NAMES"`
	Analytics    bool     `env:"ANALYTICS"`
	AnalyticsURL string   `env:"ANALYTICS_URL"`
	Address      string   `env:"LISTEN"   envDefault:":9009"`
	DB           string   `env:"DB"       envDefault:"./db"`
	LogLevel     string   `env:"LOG_LEVEL" envDefault:"info"`
}

func (c Config) options() sigma.Options {
	return sigma.Options{
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		PIN:            c.PIN,
		Partition:      c.Partition,
		RequestTimeout: c.RequestTimeout,
		Retry: sigma.RetryPolicy{
			HTTP:          sigma.Backoff{Attempts: c.RetryTotal, Base: c.RetryBackoffFactor},
			RetryStatuses: sigma.DefaultRetryPolicy().RetryStatuses,
			HTML:          sigma.Backoff{Attempts: c.RetryAttemptsForHTML, Base: c.RetryBackoffFactor},
			Fetch:         sigma.Backoff{Attempts: c.MaxTotalAttempts, Base: c.RetryBackoffFactor},
			Action:        sigma.Backoff{Attempts: c.MaxActionAttempts, Base: c.ActionBaseDelay},
		},
		PostActionDelay:    c.PostActionExtraDelay,
		ActionTimeout:      c.ActionTimeout,
		ActionPollInterval: c.ActionPollInterval,
		OnRequest: func(method, path string, err error) {
			requestCounter.WithLabelValues(path).Inc()
			if err != nil {
				requestErrorCounter.WithLabelValues(path).Inc()
			}
		},
	}
}

// analyticsFields is what gets reported on startup. No credentials.
func (c Config) analyticsFields() map[string]any {
	return map[string]any{
		"poll_interval":            c.PollInterval.Seconds(),
		"retry_total":              c.RetryTotal,
		"max_total_attempts":       c.MaxTotalAttempts,
		"max_action_attempts":      c.MaxActionAttempts,
		"max_consecutive_failures": c.MaxConsecutiveFailures,
		"custom_pin":               c.PIN != "",
	}
}

// zoneName returns the configured name for the zone at position n (1
// based), falling back to the description the panel shows.
func (c Config) zoneName(n int, zone sigma.Zone) string {
	if len(c.ZoneNames) > n-1 {
		if name := strings.TrimSpace(c.ZoneNames[n-1]); name != "" {
			return name
		}
	}
	if zone.Description != "" {
		return zone.Description
	}
	return fmt.Sprintf("Zone %s", zone.ID)
}

// sortedZones orders zones by their numeric id, non numeric ids last.
func sortedZones(zones []sigma.Zone) []sigma.Zone {
	zones = slices.Clone(zones)
	slices.SortStableFunc(zones, func(a, b sigma.Zone) int {
		return zoneNumber(a) - zoneNumber(b)
	})
	return zones
}

func zoneNumber(zone sigma.Zone) int {
	n, err := strconv.Atoi(zone.ID)
	if err != nil {
		return 1 << 16
	}
	return n
}

func getAlarmState(status sigma.Status) int {
	switch status {
	case sigma.StatusDisarmed:
		return characteristic.SecuritySystemCurrentStateDisarmed
	case sigma.StatusArmed:
		return characteristic.SecuritySystemCurrentStateAwayArm
	case sigma.StatusArmedPerimeter:
		return characteristic.SecuritySystemCurrentStateStayArm
	default:
		return -1
	}
}

func getTargetAction(target int) (sigma.Action, bool) {
	switch target {
	case characteristic.SecuritySystemTargetStateAwayArm:
		return sigma.ActionArm, true
	case characteristic.SecuritySystemTargetStateStayArm:
		return sigma.ActionStay, true
	case characteristic.SecuritySystemTargetStateDisarm:
		return sigma.ActionDisarm, true
	default:
		return 0, false
	}
}
