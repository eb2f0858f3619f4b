//go:build rp2040

package main

import (
	"errors"
	"machine"
	"rangenode/core"
	"sync"
)

// RPI2CDriver implements core.I2CDriver on top of TinyGo's machine.I2C.
type RPI2CDriver struct {
	mu sync.Mutex

	// The RP2040 has I2C0 and I2C1.
	buses      map[core.I2CBusID]*machine.I2C
	configured map[core.I2CBusID]bool
}

func NewRPI2CDriver() *RPI2CDriver {
	return &RPI2CDriver{
		buses:      make(map[core.I2CBusID]*machine.I2C),
		configured: make(map[core.I2CBusID]bool),
	}
}

// ConfigureBus initializes an I2C bus at the given frequency with the
// board wiring from config.go.
func (d *RPI2CDriver) ConfigureBus(bus core.I2CBusID, frequencyHz uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.configured[bus] {
		i2c, exists := d.buses[bus]
		if !exists {
			return errors.New("I2C bus internal state error")
		}
		return i2c.SetBaudRate(frequencyHz)
	}

	var i2c *machine.I2C
	var sda, scl machine.Pin

	switch bus {
	case sensorBus:
		i2c = machine.I2C0
		sda, scl = sensorSDA, sensorSCL
	case displayBus:
		i2c = machine.I2C1
		sda, scl = displaySDA, displaySCL
	default:
		return errors.New("unsupported I2C bus ID")
	}

	err := i2c.Configure(machine.I2CConfig{
		Frequency: frequencyHz,
		SDA:       sda,
		SCL:       scl,
	})
	if err != nil {
		return err
	}

	d.buses[bus] = i2c
	d.configured[bus] = true
	return nil
}

// Write transmits data to a device on the given bus.
func (d *RPI2CDriver) Write(bus core.I2CBusID, addr core.I2CAddress, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, exists := d.buses[bus]
	if !exists {
		return errors.New("I2C bus not configured")
	}

	return i2c.Tx(uint16(addr), data, nil)
}

// Read reads from a device, writing the register bytes first when given;
// Tx issues a repeated start between the two phases.
func (d *RPI2CDriver) Read(bus core.I2CBusID, addr core.I2CAddress, regData []byte, readLen uint8) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, exists := d.buses[bus]
	if !exists {
		return nil, errors.New("I2C bus not configured")
	}

	readBuf := make([]byte, readLen)
	if len(regData) > 0 {
		if err := i2c.Tx(uint16(addr), regData, readBuf); err != nil {
			return nil, err
		}
	} else {
		if err := i2c.Tx(uint16(addr), nil, readBuf); err != nil {
			return nil, err
		}
	}
	return readBuf, nil
}

// GetMachineBus returns the underlying machine.I2C so TinyGo sensor
// drivers can use the bus directly.
func (d *RPI2CDriver) GetMachineBus(bus core.I2CBusID) (interface{}, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i2c, exists := d.buses[bus]
	if !exists {
		return nil, errors.New("I2C bus not configured")
	}
	return i2c, nil
}
