package sigma

type BatteryStatus uint8

const (
	BatteryStatusUnknown BatteryStatus = iota
	BatteryStatusMissing
	BatteryStatusDead
	BatteryStatusLow
	BatteryStatusMiddle
	BatteryStatusFull
)

func (b BatteryStatus) String() string {
	switch b {
	case BatteryStatusMissing:
		return "missing"
	case BatteryStatusDead:
		return "dead"
	case BatteryStatusLow:
		return "low"
	case BatteryStatusMiddle:
		return "middle"
	case BatteryStatusFull:
		return "full"
	default:
		return "unknown"
	}
}

func (b BatteryStatus) Level() int {
	switch b {
	case BatteryStatusLow:
		return 20
	case BatteryStatusMiddle:
		return 50
	case BatteryStatusFull:
		return 100
	default: // <= Dead
		return 0
	}
}

// Low reports whether the battery needs attention.
func (b BatteryStatus) Low() bool {
	return b >= BatteryStatusMissing && b <= BatteryStatusLow
}

// BatteryStatusFor classifies the backup battery of a 12V panel by its
// voltage. A nil reading is unknown.
func BatteryStatusFor(volts *float64) BatteryStatus {
	if volts == nil {
		return BatteryStatusUnknown
	}
	switch v := *volts; {
	case v < 1:
		return BatteryStatusMissing
	case v < 10.5:
		return BatteryStatusDead
	case v < 11.8:
		return BatteryStatusLow
	case v < 12.6:
		return BatteryStatusMiddle
	default:
		return BatteryStatusFull
	}
}

// Battery is a shortcut for BatteryStatusFor(s.BatteryVolts).
func (s Snapshot) Battery() BatteryStatus {
	return BatteryStatusFor(s.BatteryVolts)
}
