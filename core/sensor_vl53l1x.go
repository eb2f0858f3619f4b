package core

import (
	"errors"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/vl53l1x"
)

// VL53L1X sensor tuning: 2.8V I/O mode, long-distance mode, 50ms timing
// budget, continuous period just above the budget so a measurement is
// always ready when the period elapses.
const (
	vl53TimingBudgetUS = 50000
	vl53ContinuousMS   = 55
	vl53TimeoutMS      = 500
)

// rangeStatusNames maps the sensor's range status codes to display names,
// published in the dictionary so the host can print them.
var rangeStatusNames = []string{
	"valid",
	"sigma_fail",
	"signal_fail",
	"min_range_clipped",
	"out_of_bounds",
	"hardware_fail",
	"no_wrap_check",
	"wrap_target_fail",
	"processing_fail",
	"xtalk_fail",
	"sync_int",
	"merged_pulse",
	"lack_of_signal",
	"min_range_fail",
}

// VL53L1XSensor adapts the TinyGo VL53L1X driver to the RangeSensor
// interface. The driver owns the register protocol; this wrapper owns the
// configuration sequence and unit clamping.
type VL53L1XSensor struct {
	dev vl53l1x.Device
}

// NewVL53L1X wraps an already configured I2C bus. Call Setup before
// ranging.
func NewVL53L1X(bus drivers.I2C) *VL53L1XSensor {
	return &VL53L1XSensor{dev: vl53l1x.New(bus)}
}

// Setup initializes the sensor and publishes the status code enumeration.
func (s *VL53L1XSensor) Setup() error {
	if !s.dev.Connected() {
		return errors.New("vl53l1x: not responding")
	}
	if !s.dev.Configure(true) {
		return errors.New("vl53l1x: configure failed")
	}

	s.dev.SetTimeout(vl53TimeoutMS)

	if !s.dev.SetDistanceMode(vl53l1x.LONG) {
		return errors.New("vl53l1x: set distance mode failed")
	}
	if !s.dev.SetMeasurementTimingBudget(vl53TimingBudgetUS) {
		return errors.New("vl53l1x: set timing budget failed")
	}

	RegisterEnumeration("range_status", rangeStatusNames)
	return nil
}

// StartRanging begins continuous measurements.
func (s *VL53L1XSensor) StartRanging() error {
	s.dev.StartContinuous(vl53ContinuousMS)
	return nil
}

// StopRanging halts continuous measurements.
func (s *VL53L1XSensor) StopRanging() error {
	s.dev.StopContinuous()
	return nil
}

// ReadSample reads the completed measurement. Data ready was already
// signaled, so the read does not wait; the driver clears the sensor
// interrupt as part of it.
func (s *VL53L1XSensor) ReadSample() (uint16, uint8) {
	s.dev.Read(false)

	dist := s.dev.Distance()
	if dist < 0 {
		dist = 0
	} else if dist > 0xFFFF {
		dist = 0xFFFF
	}

	return uint16(dist), uint8(s.dev.Status())
}
