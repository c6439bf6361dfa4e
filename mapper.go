package sigma

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type statusEntry struct {
	status   Status
	bypassed Flag
}

// The panel mixes latin and greek letters in these labels, so they must be
// kept byte for byte.
var alarmStatuses = map[string]statusEntry{
	"AΦOΠΛIΣMENO":                        {StatusDisarmed, FlagUnknown},
	"OΠΛIΣMENO ME ZΩNEΣ BYPASS":          {StatusArmed, FlagYes},
	"OΠΛIΣMENO":                          {StatusArmed, FlagNo},
	"ΠEPIMETPIKH OΠΛIΣH ME ZΩNEΣ BYPASS": {StatusArmedPerimeter, FlagYes},
	"ΠEPIMETPIKH OΠΛIΣH":                 {StatusArmedPerimeter, FlagNo},
}

// casers keep state, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

var yesNo = foldedSet(map[string]Flag{
	"ΝΑΙ":   FlagYes,
	"NAI":   FlagYes,
	"YES":   FlagYes,
	"TRUE":  FlagYes,
	"ΟΧΙ":   FlagNo,
	"OXI":   FlagNo,
	"NO":    FlagNo,
	"FALSE": FlagNo,
})

var openClosed = foldedSet(map[string]Contact{
	"κλειστή": ContactClosed,
	"ανοικτή": ContactOpen,
})

func foldedSet[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[fold(k)] = v
	}
	return out
}

// normalize trims, collapses inner whitespace and composes accents so that
// labels split over several text nodes still match.
func normalize(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// MapAlarmStatus maps the partition label to a status and whether zones are
// bypassed. Unknown labels map to StatusUnknown, FlagUnknown.
func MapAlarmStatus(raw string) (Status, Flag) {
	e, ok := alarmStatuses[normalize(raw)]
	if !ok {
		return StatusUnknown, FlagUnknown
	}
	return e.status, e.bypassed
}

func MapYesNo(raw string) Flag {
	f, ok := yesNo[fold(normalize(raw))]
	if !ok {
		return FlagUnknown
	}
	return f
}

// MapOpenClosed returns the raw token as a Contact when it is not one of the
// known ones, so newer firmware strings are still shown to the user.
func MapOpenClosed(raw string) Contact {
	v := normalize(raw)
	if v == "" {
		return ContactUnknown
	}
	if c, ok := openClosed[fold(v)]; ok {
		return c
	}
	return Contact(raw)
}

func mapZones(rows []ZoneRow) []Zone {
	zones := make([]Zone, 0, len(rows))
	for _, row := range rows {
		zones = append(zones, Zone{
			ID:          row.ID,
			Description: row.Description,
			Contact:     MapOpenClosed(row.Status),
			Bypassed:    MapYesNo(row.Bypass),
		})
	}
	return zones
}

func toSnapshot(page StatusPage, rows []ZoneRow) Snapshot {
	status, bypassed := MapAlarmStatus(page.AlarmStatus)
	return Snapshot{
		Status:        status,
		ZonesBypassed: bypassed,
		BatteryVolts:  page.BatteryVolts,
		ACPower:       page.ACPower,
		Zones:         mapZones(rows),
	}
}
