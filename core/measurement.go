package core

// Measurement is the most recent distance sample. One record exists for
// the program lifetime; the range task overwrites it once per data-ready
// interrupt and everything else reads snapshots.
type Measurement struct {
	DistanceMM uint16
	Status     uint8
	Seq        uint32
	Clock      uint32
}

// Status byte values. Nonzero codes below 255 are the sensor's own range
// status codes, passed through unchanged.
const (
	StatusValid uint8 = 0
	StatusNone  uint8 = 255 // no sample taken yet
)

var lastMeasurement = Measurement{Status: StatusNone}

// StoreMeasurement publishes a new sample. Only the range task calls this.
func StoreMeasurement(m Measurement) {
	state := disableInterrupts()
	lastMeasurement = m
	restoreInterrupts(state)
}

// SnapshotMeasurement returns a consistent copy of the latest sample.
func SnapshotMeasurement() Measurement {
	state := disableInterrupts()
	m := lastMeasurement
	restoreInterrupts(state)
	return m
}
