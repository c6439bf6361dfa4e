package main

import (
	"net/http"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	sigma "github.com/caarlos0/homekit-sigma"
)

// Performer runs an action against the panel and waits for it to settle.
type Performer = func(action sigma.Action) error

type SecuritySystem struct {
	*accessory.A
	SecuritySystem *service.SecuritySystem
	LowBattery     *characteristic.StatusLowBattery
	BatteryLevel   *characteristic.BatteryLevel
	Fault          *characteristic.StatusFault

	perform Performer
}

func NewSecuritySystem(info accessory.Info, perform Performer) *SecuritySystem {
	a := &SecuritySystem{
		perform: perform,
	}
	a.A = accessory.New(info, accessory.TypeSecuritySystem)

	a.SecuritySystem = service.NewSecuritySystem()
	a.AddS(a.SecuritySystem.S)

	a.LowBattery = characteristic.NewStatusLowBattery()
	a.SecuritySystem.AddC(a.LowBattery.C)

	a.BatteryLevel = characteristic.NewBatteryLevel()
	a.SecuritySystem.AddC(a.BatteryLevel.C)

	a.Fault = characteristic.NewStatusFault()
	a.SecuritySystem.AddC(a.Fault.C)

	a.SecuritySystem.SecuritySystemTargetState.SetValueRequestFunc = a.updateHandler

	return a
}

func (a *SecuritySystem) Update(snap sigma.Snapshot) {
	state := getAlarmState(snap.Status)
	armStateGauge.Set(float64(state))
	zonesBypassedGauge.Set(flagToFloat(snap.ZonesBypassed))
	acPowerGauge.Set(flagToFloat(snap.ACPower))
	if snap.BatteryVolts != nil {
		batteryVoltsGauge.Set(*snap.BatteryVolts)
	}

	if state >= 0 && a.SecuritySystem.SecuritySystemCurrentState.Value() != state {
		err := a.SecuritySystem.SecuritySystemCurrentState.SetValue(state)
		log.Info("set current state", "state", snap.Status, "err", err)
		// the panel may have been armed from a keypad.
		_ = a.SecuritySystem.SecuritySystemTargetState.SetValue(state)
	}

	battery := snap.Battery()
	if v := boolAs[int](battery.Low()); a.LowBattery.Value() != v {
		_ = a.LowBattery.SetValue(v)
		log.Info("alarm status", "battery", battery.String())
	}
	if v := battery.Level(); a.BatteryLevel.Value() != v {
		_ = a.BatteryLevel.SetValue(v)
		log.Info("alarm status", "battery-level", v)
	}

	ac, known := snap.ACPower.Bool()
	a.setFault(known && !ac)
}

// setFault reports a general fault: mains power lost or no data.
func (a *SecuritySystem) setFault(fault bool) {
	if v := boolAs[int](fault); a.Fault.Value() != v {
		_ = a.Fault.SetValue(v)
		log.Info("alarm status", "fault", fault)
	}
}

func (a *SecuritySystem) updateHandler(
	v interface{},
	_ *http.Request,
) (response interface{}, code int) {
	target, ok := v.(int)
	if !ok {
		return nil, hap.JsonStatusInvalidValueInRequest
	}
	action, ok := getTargetAction(target)
	if !ok {
		log.Warn("unsupported target state", "state", target)
		return nil, hap.JsonStatusResourceDoesNotExist
	}

	log.Info("changing state", "action", action)
	if err := a.perform(action); err != nil {
		actionCounter.WithLabelValues(action.String(), "error").Inc()
		log.Error("could not change state", "action", action, "err", err)
		return nil, hap.JsonStatusResourceBusy
	}
	actionCounter.WithLabelValues(action.String(), "ok").Inc()
	// target and current states share values for stay, away and disarm.
	_ = a.SecuritySystem.SecuritySystemCurrentState.SetValue(target)
	return nil, hap.JsonStatusSuccess
}
