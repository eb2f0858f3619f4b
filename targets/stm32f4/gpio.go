//go:build stm32f4disco

package main

import (
	"machine"
	"rangenode/core"
)

// STM32GPIODriver implements core.GPIODriver. Pin values carry TinyGo's
// port*16+pin encoding, so config constants pass through unchanged.
type STM32GPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

func NewSTM32GPIODriver() *STM32GPIODriver {
	return &STM32GPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

func (d *STM32GPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configuredPins[pin] = machinePin
	return nil
}

func (d *STM32GPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	d.configuredPins[pin] = machinePin
	return nil
}

func (d *STM32GPIODriver) ConfigureInputPullDown(pin core.GPIOPin) error {
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}

	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	d.configuredPins[pin] = machinePin
	return nil
}

// ConfigureFallingInterrupt attaches isr to the pin's falling edge via
// EXTI. The pin must already be configured as an input.
func (d *STM32GPIODriver) ConfigureFallingInterrupt(pin core.GPIOPin, isr func()) error {
	machinePin := machine.Pin(pin)
	return machinePin.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		isr()
	})
}

func (d *STM32GPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}

	machinePin.Set(value)
	return nil
}

func (d *STM32GPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return false, nil
	}
	return machinePin.Get(), nil
}
