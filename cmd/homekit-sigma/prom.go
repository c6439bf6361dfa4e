package main

import (
	sigma "github.com/caarlos0/homekit-sigma"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var armStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "alarm",
	Name:      "state",
	Help:      "HomeKit current state: 0 stay, 1 away, 3 disarmed, -1 unknown",
})

var zonesBypassedGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "alarm",
	Name:      "zones_bypassed",
	Help:      "1 if the panel reports bypassed zones, -1 if unknown",
})

var batteryVoltsGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "alarm",
	Name:      "battery_volts",
})

var acPowerGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "alarm",
	Name:      "ac_power",
	Help:      "1 if mains power is present, -1 if unknown",
})

var openGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "zone",
	Name:      "open",
}, []string{"name"})

var bypassedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "zone",
	Name:      "bypassed",
}, []string{"name"})

var failuresGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "poll",
	Name:      "consecutive_failures",
})

var staleGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "homekit_sigma",
	Subsystem: "poll",
	Name:      "data_age_seconds",
	Help:      "Age of the snapshot currently shown",
})

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homekit_sigma",
	Subsystem: "client",
	Name:      "requests_total",
}, []string{"path"})

var requestErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homekit_sigma",
	Subsystem: "client",
	Name:      "request_errors_total",
}, []string{"path"})

var actionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "homekit_sigma",
	Subsystem: "client",
	Name:      "actions_total",
}, []string{"action", "result"})

func flagToFloat(f sigma.Flag) float64 {
	v, ok := f.Bool()
	if !ok {
		return -1
	}
	return boolAs[float64](v)
}
