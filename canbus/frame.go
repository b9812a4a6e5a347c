package canbus

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Frame represents a classical CAN (2.0A/2.0B) frame.
//
// Supported features:
//   - Standard (11-bit) and Extended (29-bit) identifiers
//   - Data frames and Remote Transmission Request (RTR)
//   - Data length 0-8 bytes (classical CAN)
//
// Not implemented: CAN FD specific fields.
type Frame struct {
	ID       uint32 // 11-bit (std) or 29-bit (ext)
	Extended bool   // true for 29-bit identifier
	RTR      bool   // remote transmission request
	Len      uint8  // 0..8
	Data     [8]byte
}

// Validation limits.
const (
	MaxStdID = 0x7FF
	MaxExtID = 0x1FFFFFFF
)

// Linux can_frame identifier flags and masks.
const (
	canEffFlag = 0x80000000
	canRtrFlag = 0x40000000
	canEffMask = 0x1FFFFFFF
	canStdMask = 0x7FF
)

var (
	// ErrInvalidID indicates an identifier outside the 11-bit or 29-bit range.
	ErrInvalidID = errors.New("canbus: invalid identifier")
	// ErrInvalidLen indicates a data length above 8.
	ErrInvalidLen = errors.New("canbus: invalid data length")
)

// ValidateID reports whether id fits the 11-bit or 29-bit identifier space.
func ValidateID(id uint32, extended bool) error {
	if extended {
		if id > MaxExtID {
			return ErrInvalidID
		}
		return nil
	}
	if id > MaxStdID {
		return ErrInvalidID
	}
	return nil
}

// Validate returns an error if the frame is not valid.
func (f Frame) Validate() error {
	if f.Len > 8 {
		return ErrInvalidLen
	}
	return ValidateID(f.ID, f.Extended)
}

// Payload returns the first Len bytes of Data.
func (f Frame) Payload() []byte {
	n := f.Len
	if n > 8 {
		n = 8
	}
	return f.Data[:n]
}

// MustFrame constructs a Frame and panics if invalid. Identifiers above the
// 11-bit range are marked extended. Convenience for examples and tests.
func MustFrame(id uint32, data []byte) Frame {
	var f Frame
	f.ID = id
	if id > MaxStdID {
		f.Extended = true
	}
	if len(data) > 8 {
		panic(ErrInvalidLen)
	}
	f.Len = uint8(len(data))
	copy(f.Data[:], data)
	if err := f.Validate(); err != nil {
		panic(err)
	}
	return f
}

// String renders the frame in candump-like form: "123 [2] DE AD".
// Extended identifiers are printed with 8 hex digits.
func (f Frame) String() string {
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X", f.ID)
	}
	fmt.Fprintf(&b, " [%d]", f.Len)
	if f.RTR {
		b.WriteString(" RTR")
		return b.String()
	}
	for _, d := range f.Payload() {
		fmt.Fprintf(&b, " %02X", d)
	}
	return b.String()
}

// MarshalBinary encodes the frame to the Linux SocketCAN "struct can_frame" layout
// (16 bytes) for classical CAN.
//
// Layout (little-endian):
//
//	0..3  can_id (with flags: EFF/RTR/ERR)
//	4     can_dlc (data length code)
//	5..7  padding (set to zero)
//	8..15 data bytes
func (f Frame) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], f.rawID())
	buf[4] = f.Len
	copy(buf[8:16], f.Data[:])
	return buf, nil
}

// UnmarshalBinary decodes a frame from the Linux SocketCAN can_frame layout.
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("canbus: need 16 bytes, got %d", len(data))
	}
	f.setRawID(binary.LittleEndian.Uint32(data[0:4]))
	f.Len = data[4]
	copy(f.Data[:], data[8:16])
	return f.Validate()
}

// rawID returns the identifier with the EFF/RTR flag bits applied, as used by
// the SocketCAN can_frame layout.
func (f Frame) rawID() uint32 {
	id := f.ID
	if f.Extended {
		id |= canEffFlag
	}
	if f.RTR {
		id |= canRtrFlag
	}
	return id
}

func (f *Frame) setRawID(id uint32) {
	f.Extended = id&canEffFlag != 0
	f.RTR = id&canRtrFlag != 0
	if f.Extended {
		f.ID = id & canEffMask
	} else {
		f.ID = id & canStdMask
	}
}
