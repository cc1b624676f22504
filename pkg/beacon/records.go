package beacon

import "strconv"

// Hardware dimensions of the BEACON digitizer.
const (
	NumChan           = 8
	NumBuffer         = 4
	MaxWaveformLength = 1024
	MaxBoards         = 1
	NumBeams          = 24
	NumScalers        = 3
)

// SamplePeriodNs is the time between two waveform samples.
const SamplePeriodNs = 2.0

// TrigType is what caused a trigger.
type TrigType uint8

const (
	TrigNone TrigType = iota
	TrigSW
	TrigRF
	TrigExt
)

func (t TrigType) String() string {
	switch t {
	case TrigNone:
		return "none"
	case TrigSW:
		return "sw"
	case TrigRF:
		return "rf"
	case TrigExt:
		return "ext"
	default:
		return "TrigType(" + strconv.Itoa(int(t)) + ")"
	}
}

// Pol is the polarization of the beam that triggered.
type Pol uint8

const (
	PolH Pol = iota
	PolV
)

func (p Pol) String() string {
	switch p {
	case PolH:
		return "H"
	case PolV:
		return "V"
	default:
		return "Pol(" + strconv.Itoa(int(p)) + ")"
	}
}

// Header is written once per trigger and describes the matching [Event].
type Header struct {
	EventNumber         uint64
	TrigNumber          uint64
	BufferLength        uint16
	PretriggerSamples   uint16
	ReadoutTime         uint32
	ReadoutTimeNs       uint32
	ApproxTriggerTime   uint32
	ApproxTriggerTimeNs uint32
	TriggeredBeams      uint32
	BeamMask            uint32
	BeamPower           uint32
	Deadtime            uint32
	BufferNumber        uint8
	ChannelMask         uint8
	ChannelReadMask     uint8
	GateFlag            uint8
	BufferMask          uint8
	BoardID             uint8
	TrigType            TrigType
	TrigPol             Pol
	Calpulser           uint8
	SyncProblem         uint8
}

func (h Header) String() string {
	return "<Header " + strconv.FormatUint(h.EventNumber, 10) + ">"
}

// Status is a periodic snapshot of trigger rates and thresholds.
type Status struct {
	GlobalScalers     [NumScalers]uint16
	BeamScalers       [NumScalers][NumBeams]uint16
	Deadtime          uint32
	ReadoutTime       uint32
	ReadoutTimeNs     uint32
	TriggerThresholds [NumBeams]uint32
	LatchedPPSTime    uint64
	BoardID           uint8
	DynamicBeamMask   uint32
}

func (s Status) String() string {
	return "<Status at " + strconv.FormatUint(uint64(s.ReadoutTime), 10) + "." +
		strconv.FormatUint(uint64(s.ReadoutTimeNs), 10) + ">"
}

// Event holds the digitized waveforms of one trigger. Only the first
// BufferLength samples of each channel are meaningful.
type Event struct {
	EventNumber  uint64
	BufferLength uint16
	BoardID      [MaxBoards]uint8
	Data         [MaxBoards][NumChan][MaxWaveformLength]uint8
}

func (e Event) String() string {
	return "<Event " + strconv.FormatUint(e.EventNumber, 10) + ">"
}

// Channel returns the samples of one channel, trimmed to the buffer length.
// The slice aliases e. Out of range boards or channels return nil.
func (e *Event) Channel(board, channel int) []uint8 {
	if board < 0 || board >= MaxBoards || channel < 0 || channel >= NumChan {
		return nil
	}

	n := min(int(e.BufferLength), MaxWaveformLength)

	return e.Data[board][channel][:n]
}
