package bms

import (
	"fmt"

	"github.com/TheCacophonyProject/bms-controller/afe"
	"github.com/TheCacophonyProject/bms-controller/canstatus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

type hardware struct {
	transport  *afe.SPITransport
	packs      []*Pack
	shunt      afe.ADC
	ignition   gpio.PinIn
	chargePort gpio.PinIO
	spiPort    spi.PortCloser
}

func (h *hardware) Close() {
	if h.spiPort != nil {
		h.spiPort.Close()
	}
}

// openHardware opens the SPI front ends, the ADCs and the vehicle inputs.
// Pack i uses chip select i and enable line i of the transport.
func openHardware(conf *Config) (*hardware, error) {
	log.Debug("Initializing host")
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	h := &hardware{}

	port, err := spireg.Open(conf.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port '%s': %w", conf.SPIPort, err)
	}
	h.spiPort = port
	conn, err := port.Connect(afe.SPIFrequency, afe.SPIMode, 8)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to configure SPI port: %w", err)
	}

	chipSelects := make([]gpio.PinOut, len(conf.ChipSelectPins))
	for i, name := range conf.ChipSelectPins {
		if chipSelects[i], err = outPin(name); err != nil {
			h.Close()
			return nil, err
		}
	}
	srPins := make([]gpio.PinOut, 3)
	for i, name := range []string{conf.ShiftDataPin, conf.ShiftClockPin, conf.ShiftLatchPin} {
		if srPins[i], err = outPin(name); err != nil {
			h.Close()
			return nil, err
		}
	}
	sr, err := afe.NewShiftRegister(srPins[0], srPins[1], srPins[2])
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to initialize shift register: %w", err)
	}
	h.transport, err = afe.NewSPITransport(conn, chipSelects, sr, conf.EnableLines, log)
	if err != nil {
		h.Close()
		return nil, err
	}

	bus, err := i2creg.Open(conf.I2CBus)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to open I2C bus '%s': %w", conf.I2CBus, err)
	}
	adcs := afe.NewADS1115(bus)
	for i := 0; i < NumPacks; i++ {
		adc, err := adcs.SingleEnded(conf.CellADCAddresses[i], conf.CellADCChannels[i])
		if err != nil {
			h.Close()
			return nil, err
		}
		h.packs = append(h.packs, NewPack(i, i, adc))
	}
	if conf.ShuntADCAddress != 0 {
		if h.shunt, err = adcs.Differential23(conf.ShuntADCAddress); err != nil {
			h.Close()
			return nil, err
		}
	}

	if h.ignition, err = inPin(conf.IgnitionPin, gpio.NoEdge); err != nil {
		h.Close()
		return nil, err
	}
	if h.chargePort, err = inPin(conf.ChargePortPin, gpio.BothEdges); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func outPin(name string) (gpio.PinOut, error) {
	log.Debugf("Initializing pin '%s'", name)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("GPIO pin %s not found", name)
	}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("failed to set pin %s as output: %w", name, err)
	}
	return pin, nil
}

func inPin(name string, edge gpio.Edge) (gpio.PinIO, error) {
	log.Debugf("Initializing pin '%s'", name)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("GPIO pin %s not found", name)
	}
	if err := pin.In(gpio.PullDown, edge); err != nil {
		return nil, fmt.Errorf("failed to set pin %s as input: %w", name, err)
	}
	return pin, nil
}

// openCAN opens the configured CAN backend.
func openCAN(conf *Config) (canstatus.Sender, error) {
	switch conf.CANBackend {
	case CANBackendSocketCAN:
		log.Infof("Using CAN interface '%s'", conf.CANInterface)
		return canstatus.OpenSocketCAN(conf.CANInterface)
	case CANBackendSLCAN:
		log.Infof("Using SLCAN adapter '%s'", conf.SLCANDevice)
		return canstatus.OpenSLCAN(conf.SLCANDevice, conf.SLCANBaud, canstatus.BitRate)
	default:
		return nil, fmt.Errorf("unknown CAN backend '%s'", conf.CANBackend)
	}
}
