//go:build rp2040

package main

import (
	"machine"
	"rangenode/core"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

var (
	display  ssd1306.Device
	terminal *tinyterm.Terminal
)

// InitDisplay brings up the SSD1306 readout on the display bus and hooks
// it to the report task.
func InitDisplay(i2cDriver *RPI2CDriver) error {
	if err := i2cDriver.ConfigureBus(displayBus, displayBusHz); err != nil {
		return err
	}

	busAny, err := i2cDriver.GetMachineBus(displayBus)
	if err != nil {
		return err
	}
	bus := busAny.(*machine.I2C)

	display = ssd1306.NewI2C(bus)
	display.Configure(ssd1306.Config{
		Width:    128,
		Height:   64,
		Address:  displayAddr,
		VccState: ssd1306.SWITCHCAPVCC,
	})
	display.ClearDisplay()

	terminal = tinyterm.NewTerminal(&display)
	terminal.Configure(&tinyterm.Config{
		Font:       &proggy.TinySZ8pt7b,
		FontHeight: 10,
		FontOffset: 6,
	})

	terminal.Write([]byte("rangenode\n"))

	core.SetReportHook(displayReport)
	return nil
}

// displayReport writes one readout line per report period. The terminal
// scrolls old lines off the top.
func displayReport(m core.Measurement) {
	if terminal == nil {
		return
	}

	var line string
	switch m.Status {
	case core.StatusValid:
		line = utoa(uint32(m.DistanceMM)) + " mm\n"
	case core.StatusNone:
		line = "waiting...\n"
	default:
		line = "err " + utoa(uint32(m.Status)) + "\n"
	}
	terminal.Write([]byte(line))
}
