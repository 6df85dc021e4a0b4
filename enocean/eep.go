package enocean

// RORG identifies an EnOcean radio telegram's payload schema.
type RORG byte

const (
	RORGRPS       RORG = 0xF6
	RORG1BS       RORG = 0xD5
	RORG4BS       RORG = 0xA5
	RORGSmartAck  RORG = 0xC6
)

// MinLearnDBM gates RPS teach-in: telegrams received weaker than this are
// ignored for learning purposes (too unreliable to trust the address).
const MinLearnDBM = -50

// Status bits carried in a radio telegram's status byte.
const (
	statusT21 = 0x20
	statusNU  = 0x10
)

// bit reports whether bit index i (0 = LSB) is set in b.
func bit(b byte, i uint) bool { return b&(1<<i) != 0 }

// field extracts bits [lsBit..msBit] (inclusive, 0 = LSB) from b as an
// unsigned integer right-aligned at bit 0.
func field(b byte, msBit, lsBit uint) byte {
	width := msBit - lsBit + 1
	mask := byte(1<<width) - 1
	return (b >> lsBit) & mask
}

// EEP is a (RORG, FUNC, TYPE) profile triple.
type EEP struct {
	Rorg RORG
	Func byte
	Type byte
}

// ClassifyRPS derives an approximate EEP from an RPS telegram's status and
// first userdata byte, per the T21/NU/D0.bit7 truth table.
// RPS carries no explicit learn bit, so this is always a best-effort guess,
// never a certain classification.
func ClassifyRPS(status, data0 byte) (eep EEP, ok bool) {
	t21 := status&statusT21 != 0
	nu := status&statusNU != 0
	d7 := bit(data0, 7)
	switch {
	case t21 && !nu && d7:
		return EEP{RORGRPS, 0x10, 0x00}, true // window handle, F6-10-00
	case t21 && !nu && !d7:
		return EEP{RORGRPS, 0x02, 0x00}, true // 2-rocker, F6-02-xx
	case !t21:
		return EEP{RORGRPS, 0x03, 0x00}, true // 4-rocker, F6-03-xx
	}
	return EEP{}, false
}

// Is1BSTeachIn reports whether a 1BS userdata byte carries teach-in
// information: userData[0].bit3 inverted.
func Is1BSTeachIn(data0 byte) bool { return !bit(data0, 3) }

// Is4BSTeachIn reports whether a 4BS userdata block is a teach-in
// telegram: userData[3].bit3 inverted.
func Is4BSTeachIn(userData [4]byte) bool { return !bit(userData[3], 3) }

// Classify4BS decodes a 4BS teach-in telegram's EEP and manufacturer code.
// FUNC is userData[0].bits7..2, TYPE is userData[0].bits1..0 concatenated
// with userData[1].bits7..3, manufacturer is userData[1].bits2..0
// concatenated with userData[2].
func Classify4BS(userData [4]byte) (eep EEP, manufacturer uint16) {
	d0, d1, d2 := userData[0], userData[1], userData[2]
	funcCode := field(d0, 7, 2)
	typeHi := field(d0, 1, 0)
	typeLo := field(d1, 7, 3)
	eep = EEP{Rorg: RORG4BS, Func: funcCode, Type: typeHi<<5 | typeLo}
	mfrHi := field(d1, 2, 0)
	manufacturer = uint16(mfrHi)<<8 | uint16(d2)
	return eep, manufacturer
}

// ClassifySmartAckLearn decodes a Smart Ack Learn Request's manufacturer
// code and EEP: manufacturer is userData[0].bits2..0 concatenated with
// userData[1]; EEP is userData[2..4].
func ClassifySmartAckLearn(userData [5]byte) (eep EEP, manufacturer uint16) {
	mfrHi := field(userData[0], 2, 0)
	manufacturer = uint16(mfrHi)<<8 | uint16(userData[1])
	eep = EEP{Rorg: RORG(userData[2]), Func: userData[3], Type: userData[4]}
	return eep, manufacturer
}

// RockerAction is one half of an RPS N-message action field: which
// rocker sub-device and half, and whether it's a press or a release.
type RockerAction struct {
	Rocker  int // sub-device index, 0-based
	Up      bool
	Pressed bool
}

// DecodeRPSRocker decodes an RPS rocker telegram's userdata byte into zero,
// one, or two rocker actions. nu is
// status.NU. On a U-message (nu==false) with a press, the event is
// ambiguous and ignored; on release, every rocker's every half releases.
func DecodeRPSRocker(data0 byte, nu bool) []RockerAction {
	if !nu {
		pressed := bit(data0, 4)
		if pressed {
			return nil // U-message press is ambiguous, ignore
		}
		var out []RockerAction
		for r := 0; r < 4; r++ {
			out = append(out, RockerAction{Rocker: r, Up: true, Pressed: false})
			out = append(out, RockerAction{Rocker: r, Up: false, Pressed: false})
		}
		return out
	}
	// N-message: two 3-bit action fields at d[6:4] and d[2:0]; d[0] gates
	// whether the second action is valid.
	first := field(data0, 6, 4)
	second := field(data0, 2, 0)
	secondValid := bit(data0, 0)
	decodeOne := func(a byte) RockerAction {
		return RockerAction{
			Rocker:  int(field(a, 2, 1)),
			Up:      a&0x01 == 0,
			Pressed: bit(data0, 4),
		}
	}
	out := []RockerAction{decodeOne(first)}
	if secondValid {
		out = append(out, decodeOne(second))
	}
	return out
}

// RockerState mirrors per-sub-device, per-half pressed state to suppress
// duplicate edges when the same RPS telegram is received on multiple
// sub-telegrams.
type RockerState struct {
	pressed [4][2]bool // [rocker][up?1:0]
}

// Apply folds a decoded action into the mirror, returning true if this is
// a genuine edge (a state change) the caller should act on.
func (s *RockerState) Apply(a RockerAction) bool {
	half := 0
	if a.Up {
		half = 1
	}
	if s.pressed[a.Rocker][half] == a.Pressed {
		return false
	}
	s.pressed[a.Rocker][half] = a.Pressed
	return true
}

// SensorHandlerKind selects how SensorDescriptor.Decode interprets a
// bit-field once extracted.
type SensorHandlerKind int

const (
	HandlerStd      SensorHandlerKind = iota // raw engineering value, linear
	HandlerInv                               // linear, bit-inverted before scaling
	HandlerStdInput                          // binary input level, no scaling
)

// SensorDescriptor is one row of the 4BS decode table: which
// (FUNC, TYPE) this row matches, which sub-device/behaviour it targets,
// and how to extract and scale the value.
type SensorDescriptor struct {
	Func, Type         byte
	SubdeviceIdx       int
	PrimaryGroup       int
	BehaviourKind      string
	KindParam          int
	Min, Max           float64
	MsBit, LsBit       uint
	UpdateIntervalSec  int
	Handler            SensorHandlerKind
}

// Decode extracts this descriptor's bit-field from a 4BS userdata block
// and scales it into an engineering value (or a 0/1 input level for
// HandlerStdInput).
func (d SensorDescriptor) Decode(userData [4]byte) float64 {
	// userData is stored DB3..DB0 (index 0 = DB3); bit positions in the
	// descriptor are expressed against the full 32-bit telegram, byte 0
	// = DB3 as the most-significant byte.
	raw32 := uint32(userData[0])<<24 | uint32(userData[1])<<16 | uint32(userData[2])<<8 | uint32(userData[3])
	width := d.MsBit - d.LsBit + 1
	mask := uint32(1<<width) - 1
	raw := (raw32 >> d.LsBit) & mask

	switch d.Handler {
	case HandlerStdInput:
		if raw != 0 {
			return 1
		}
		return 0
	case HandlerInv:
		raw = mask - raw
		fallthrough
	default:
		return float64(raw)/float64(mask)*(d.Max-d.Min) + d.Min
	}
}
