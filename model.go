package sigma

import (
	"fmt"
	"time"
)

type Status uint8

const (
	StatusUnknown Status = iota
	StatusDisarmed
	StatusArmed
	StatusArmedPerimeter
)

func (s Status) String() string {
	switch s {
	case StatusDisarmed:
		return "Disarmed"
	case StatusArmed:
		return "Armed"
	case StatusArmedPerimeter:
		return "Armed Perimeter"
	default:
		return "Unknown"
	}
}

// Flag is a boolean the panel may or may not report.
type Flag uint8

const (
	FlagUnknown Flag = iota
	FlagYes
	FlagNo
)

func FlagOf(b bool) Flag {
	if b {
		return FlagYes
	}
	return FlagNo
}

// Bool returns the flag value and whether it is known at all.
func (f Flag) Bool() (value, ok bool) {
	return f == FlagYes, f != FlagUnknown
}

func (f Flag) String() string {
	switch f {
	case FlagYes:
		return "yes"
	case FlagNo:
		return "no"
	default:
		return "unknown"
	}
}

// Contact is the open/closed state of a zone.
//
// Tokens the panel emits that are not recognized are kept verbatim, so a
// Contact may hold values other than the constants below.
type Contact string

const (
	ContactOpen    Contact = "Open"
	ContactClosed  Contact = "Closed"
	ContactUnknown Contact = "Unknown"
)

func (c Contact) IsOpen() bool {
	return c == ContactOpen
}

type Zone struct {
	ID          string
	Description string
	Contact     Contact
	Bypassed    Flag
}

type Snapshot struct {
	Status        Status
	ZonesBypassed Flag
	BatteryVolts  *float64
	ACPower       Flag
	Zones         []Zone
	FetchedAt     time.Time
}

// Complete reports whether the snapshot can be handed out as good data.
func (s Snapshot) Complete() bool {
	return s.Status != StatusUnknown && s.BatteryVolts != nil && len(s.Zones) > 0
}

func (s Snapshot) validate() error {
	if s.Complete() {
		return nil
	}
	return fmt.Errorf(
		"%w: status=%s battery=%v zones=%d",
		ErrIncompleteData,
		s.Status,
		s.BatteryVolts != nil,
		len(s.Zones),
	)
}

type Action uint8

const (
	ActionArm Action = iota + 1
	ActionDisarm
	ActionStay
)

func ParseAction(name string) (Action, error) {
	switch name {
	case "arm":
		return ActionArm, nil
	case "disarm":
		return ActionDisarm, nil
	case "stay":
		return ActionStay, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

func (a Action) String() string {
	switch a {
	case ActionArm:
		return "arm"
	case ActionDisarm:
		return "disarm"
	case ActionStay:
		return "stay"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

// Target is the status the panel must report once the action took effect.
func (a Action) Target() (Status, bool) {
	switch a {
	case ActionArm:
		return StatusArmed, true
	case ActionDisarm:
		return StatusDisarmed, true
	case ActionStay:
		return StatusArmedPerimeter, true
	default:
		return StatusUnknown, false
	}
}

func (a Action) page() string {
	switch a {
	case ActionArm:
		return "arm.html"
	case ActionDisarm:
		return "disarm.html"
	default:
		return "stay.html"
	}
}
