//go:build stm32f4disco

package main

import (
	"runtime/volatile"
	"unsafe"
)

// Independent watchdog (IWDG) peripheral registers. It clocks from the
// ~32kHz LSI and keeps counting through core lockups, which is the point.
const (
	iwdgBase = 0x40003000
	iwdgKR   = iwdgBase + 0x00 // key register
	iwdgPR   = iwdgBase + 0x04 // prescaler
	iwdgRLR  = iwdgBase + 0x08 // reload value, 12-bit
)

// Key register commands.
const (
	iwdgKeyUnlock = 0x5555
	iwdgKeyReload = 0xAAAA
	iwdgKeyStart  = 0xCCCC
)

var (
	iwdgKey    = (*volatile.Register32)(unsafe.Pointer(uintptr(iwdgKR)))
	iwdgPresc  = (*volatile.Register32)(unsafe.Pointer(uintptr(iwdgPR)))
	iwdgReload = (*volatile.Register32)(unsafe.Pointer(uintptr(iwdgRLR)))
)

// STM32Watchdog implements core.WatchdogDriver on the IWDG. Once started
// the hardware offers no way to stop it.
type STM32Watchdog struct{}

func (STM32Watchdog) Start(timeoutMS uint32) error {
	// Prescaler /32 gives a 1kHz count: one reload tick per millisecond.
	reload := timeoutMS
	if reload > 0 {
		reload--
	}
	if reload > 0xFFF {
		reload = 0xFFF
	}

	iwdgKey.Set(iwdgKeyUnlock)
	iwdgPresc.Set(3) // /32
	iwdgReload.Set(reload)
	iwdgKey.Set(iwdgKeyReload)
	iwdgKey.Set(iwdgKeyStart)
	return nil
}

func (STM32Watchdog) Feed() {
	iwdgKey.Set(iwdgKeyReload)
}
