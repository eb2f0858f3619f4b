package core

import (
	"errors"
	"rangenode/protocol"
	"sync/atomic"
)

// RangeSensor is the abstract distance sensor behind the range task.
// Target code wires the concrete driver and its bus.
type RangeSensor interface {
	// StartRanging begins continuous back-to-back measurements; each
	// completed one asserts the sensor's data-ready line.
	StartRanging() error

	// StopRanging halts measurements and with them the interrupts.
	StopRanging() error

	// ReadSample reads the completed measurement after a data-ready event
	// and clears the sensor interrupt. Sensor errors surface through the
	// status byte, zero meaning a valid range.
	ReadSample() (distanceMM uint16, status uint8)
}

// Global singleton used by core code.
var rangeSensor RangeSensor

// SetRangeSensor is called by target-specific code to register its sensor.
func SetRangeSensor(s RangeSensor) {
	rangeSensor = s
}

// MustRangeSensor returns the configured sensor or panics if missing.
func MustRangeSensor() RangeSensor {
	if rangeSensor == nil {
		panic("range sensor not configured")
	}
	return rangeSensor
}

// RangeTask reads the sensor after each data-ready interrupt. Highest
// priority: a pending sample is read before any reporting runs.
var RangeTask = &Task{
	Name:     "range",
	Priority: PriorityHigh,
	Run:      rangeTaskRun,
}

var (
	rangingActive uint32 // atomic bool
	totalSamples  uint32 // range task context only
	validSamples  uint32 // range task context only

	// measurementHook runs after each stored sample (scope strobe, LED).
	measurementHook func()
)

// SetMeasurementHook installs a function run by the range task after every
// stored sample.
func SetMeasurementHook(fn func()) {
	measurementHook = fn
}

// DataReadyISR pends the range task. This is the only work done in the
// pin interrupt handler; all I2C traffic happens in task context.
func DataReadyISR() {
	RangeTask.Pend()
}

// BindDataReady configures the sensor's data-ready line: the pin idles
// high through the pull-up and the sensor drives it low when a sample
// completes, so the interrupt fires on the falling edge.
func BindDataReady(pin GPIOPin) error {
	if err := MustGPIO().ConfigureInputPullUp(pin); err != nil {
		return err
	}
	return MustGPIO().ConfigureFallingInterrupt(pin, DataReadyISR)
}

// RangingActive reports whether continuous measurement is running.
func RangingActive() bool {
	return atomic.LoadUint32(&rangingActive) != 0
}

// StartRanging begins continuous measurements. A missing sensor (probe
// failed at boot) is an error, not a panic: the command surface stays up.
func StartRanging() error {
	if rangeSensor == nil {
		return errors.New("range sensor unavailable")
	}

	RegisterTask(RangeTask)
	if err := rangeSensor.StartRanging(); err != nil {
		return err
	}
	atomic.StoreUint32(&rangingActive, 1)
	return nil
}

// StopRanging halts continuous measurements.
func StopRanging() error {
	if rangeSensor == nil {
		return errors.New("range sensor unavailable")
	}

	atomic.StoreUint32(&rangingActive, 0)
	return rangeSensor.StopRanging()
}

func rangeTaskRun() {
	if !RangingActive() {
		// Stray pend after ranging_stop; the sensor is quiet, skip.
		return
	}

	dist, status := MustRangeSensor().ReadSample()

	totalSamples++
	if status == StatusValid {
		validSamples++
	}

	StoreMeasurement(Measurement{
		DistanceMM: dist,
		Status:     status,
		Seq:        totalSamples,
		Clock:      GetTime(),
	})

	if measurementHook != nil {
		measurementHook()
	}

	if TraceEnabled() {
		Trace("received range: " + utoa(uint32(dist)) + "mm status=" + utoa(uint32(status)))
	}
}

// InitRangingCommands registers the ranging command set and its responses.
func InitRangingCommands() {
	RegisterCommand("query_range", "", handleQueryRange)
	RegisterCommand("ranging_start", "", handleRangingStart)
	RegisterCommand("ranging_stop", "", handleRangingStop)
	RegisterCommand("get_status", "", handleGetStatus)
	RegisterCommand("set_report_interval", "ms=%u", handleSetReportInterval)

	RegisterResponse("range_state", "seq=%u dist=%u status=%c clock=%u")
	RegisterResponse("ranging_status", "running=%c interval_ms=%u total=%u valid=%u")
}

// sendRangeState emits one measurement snapshot as a telemetry frame.
func sendRangeState(m Measurement) {
	SendResponse("range_state", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, m.Seq)
		protocol.EncodeVLQUint(output, uint32(m.DistanceMM))
		protocol.EncodeVLQUint(output, uint32(m.Status))
		protocol.EncodeVLQUint(output, m.Clock)
	})
}

func handleQueryRange(data *[]byte) error {
	sendRangeState(SnapshotMeasurement())
	return nil
}

func handleRangingStart(data *[]byte) error {
	if err := StartRanging(); err != nil {
		return err
	}
	Info("ranging started")
	return nil
}

func handleRangingStop(data *[]byte) error {
	if err := StopRanging(); err != nil {
		return err
	}
	Info("ranging stopped")
	return nil
}

func handleGetStatus(data *[]byte) error {
	running := uint32(0)
	if RangingActive() {
		running = 1
	}

	SendResponse("ranging_status", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, running)
		protocol.EncodeVLQUint(output, ReportIntervalMS())
		protocol.EncodeVLQUint(output, totalSamples)
		protocol.EncodeVLQUint(output, validSamples)
	})

	return nil
}
