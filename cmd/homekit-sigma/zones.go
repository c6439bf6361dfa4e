package main

import (
	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/service"
	sigma "github.com/caarlos0/homekit-sigma"
)

type ZoneSensor struct {
	*accessory.A
	ZoneID   string
	Contact  *service.ContactSensor
	Bypassed bool
}

func newZoneSensor(info accessory.Info, id string) *ZoneSensor {
	a := ZoneSensor{
		ZoneID: id,
	}
	a.A = accessory.New(info, accessory.TypeSensor)

	a.Contact = service.NewContactSensor()
	a.AddS(a.Contact.S)

	return &a
}

func (sensor *ZoneSensor) Update(zone sigma.Zone) {
	bypassed, _ := zone.Bypassed.Bool()
	bypassedGauge.WithLabelValues(sensor.Name()).Set(boolAs[float64](bypassed))
	if sensor.Bypassed != bypassed {
		sensor.Bypassed = bypassed
		log.Info("bypass", "zone", zone.ID, "status", bypassed)
	}

	open := zone.Contact.IsOpen()
	openGauge.WithLabelValues(sensor.Name()).Set(boolAs[float64](open))
	current := boolAs[int](open)
	if v := sensor.Contact.ContactSensorState.Value(); v == current {
		return
	}
	_ = sensor.Contact.ContactSensorState.SetValue(current)
	log.Info("contact", "zone", zone.ID, "status", zone.Contact)
}

type ZoneSensors []*ZoneSensor

// Update matches zones by id. Zones the panel stopped reporting are left as
// they were.
func (sensors ZoneSensors) Update(snap sigma.Snapshot) {
	byID := make(map[string]sigma.Zone, len(snap.Zones))
	for _, zone := range snap.Zones {
		byID[zone.ID] = zone
	}
	for _, sensor := range sensors {
		zone, ok := byID[sensor.ZoneID]
		if !ok {
			log.Warn("zone missing from panel data", "zone", sensor.ZoneID)
			continue
		}
		sensor.Update(zone)
	}
}

func setupZones(cfg Config, snap sigma.Snapshot) ZoneSensors {
	var sensors ZoneSensors
	for i, zone := range sortedZones(snap.Zones) {
		a := newZoneSensor(accessory.Info{
			Name:         cfg.zoneName(i+1, zone),
			SerialNumber: zone.ID,
			Manufacturer: manufacturer,
		}, zone.ID)
		a.Id = uint64(100 + i)
		a.Update(zone)
		sensors = append(sensors, a)
	}
	return sensors
}
