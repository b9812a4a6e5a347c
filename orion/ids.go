package orion

import (
	"fmt"

	"github.com/notnil/thermnode/canbus"
)

// Identifier is a CAN identifier together with its format. Standard and
// extended identifiers are wire-incompatible and never inferred.
type Identifier struct {
	ID       uint32 `yaml:"id" json:"id"`
	Extended bool   `yaml:"extended" json:"extended"`
}

// Default identifiers.
var (
	// BroadcastID is the thermistor module broadcast of module 0.
	BroadcastID = Identifier{ID: 0x1839F380, Extended: true}
	// StatusID carries the ready-to-drive byte.
	StatusID = Identifier{ID: 0x879, Extended: true}
)

// Validate reports whether the identifier fits its format.
func (i Identifier) Validate() error {
	if err := canbus.ValidateID(i.ID, i.Extended); err != nil {
		return fmt.Errorf("orion: identifier 0x%X (extended=%t): %w", i.ID, i.Extended, err)
	}
	return nil
}

// Matches reports whether f carries this identifier in the same format.
func (i Identifier) Matches(f canbus.Frame) bool {
	return f.ID == i.ID && f.Extended == i.Extended
}

// Filter matches data frames with this identifier.
func (i Identifier) Filter() canbus.FrameFilter {
	format := canbus.StandardOnly()
	if i.Extended {
		format = canbus.ExtendedOnly()
	}
	return canbus.And(format, canbus.ByID(i.ID), canbus.DataOnly())
}

func (i Identifier) String() string {
	if i.Extended {
		return fmt.Sprintf("0x%08X", i.ID)
	}
	return fmt.Sprintf("0x%03X", i.ID)
}
