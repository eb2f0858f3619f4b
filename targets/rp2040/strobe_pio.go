//go:build rp2040

package main

// Measurement strobe on a PIO state machine. Each stored sample fires a
// fixed-width pulse on strobePin, so a scope or logic analyzer can line
// range data up against the sensor's interrupt timing without the CPU in
// the path.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// Pulse width written into the state machine, in microseconds.
const strobeWidthUS = 10

// buildStrobeProgram assembles the pulse generator.
//
// Word format: bits 0-31 hold the pulse width in timer ticks.
//
//  1. Pull a width word from the FIFO
//  2. Drive the pin high for that many ticks
//  3. Drive the pin low and wait for the next word
func buildStrobeProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),          // 0: pull block
		asm.Out(rp2pio.OutDestX, 32).Encode(),   // 1: out x, 32 (width)
		asm.Set(rp2pio.SetDestPins, 1).Encode(), // 2: set pins, 1
		// hold_loop:
		asm.Jmp(3, rp2pio.JmpXNZeroDec).Encode(), // 3: jmp x--, 3
		asm.Set(rp2pio.SetDestPins, 0).Encode(),  // 4: set pins, 0
		// .wrap
	}
}

const strobePIOOrigin = 0 // Load at offset 0 for correct jump addresses

// MeasurementStrobe owns one PIO state machine driving the strobe pin.
type MeasurementStrobe struct {
	pio *rp2pio.PIO
	sm  rp2pio.StateMachine
	pin machine.Pin
}

// NewMeasurementStrobe claims state machine 0 on PIO0 and loads the pulse
// program.
func NewMeasurementStrobe(pin machine.Pin) (*MeasurementStrobe, error) {
	s := &MeasurementStrobe{
		pio: rp2pio.PIO0,
		pin: pin,
	}
	s.sm = s.pio.StateMachine(0)
	s.sm.TryClaim()

	program := buildStrobeProgram()
	offset, err := s.pio.AddProgram(program, strobePIOOrigin)
	if err != nil {
		return nil, err
	}

	s.pin.Configure(machine.PinConfig{Mode: s.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(s.pin, 1)

	// Shift right, autopull disabled (the program pulls explicitly).
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// 125MHz / 125 = 1MHz: one hold-loop pass per microsecond.
	cfg.SetClkDivIntFrac(125, 0)

	s.sm.Init(offset, cfg)

	// Pin direction must be set after Init.
	s.sm.SetPindirsConsecutive(s.pin, 1, true)
	s.sm.SetPinsConsecutive(s.pin, 1, false)

	s.sm.SetEnabled(true)
	return s, nil
}

// Fire queues one pulse. Runs in task context, so a full FIFO drops the
// pulse instead of blocking the dispatcher.
func (s *MeasurementStrobe) Fire() {
	if s.sm.IsTxFIFOFull() {
		return
	}
	s.sm.TxPut(strobeWidthUS)
}
