package afe

import (
	"fmt"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

const (
	// ADCFullScale is the ADS1115 range at a gain of 2/3.
	ADCFullScale = 6.144 * 2
	// ADCResolution is in bits.
	ADCResolution = 16
	// ADCScale converts a raw code to volts.
	ADCScale = ADCFullScale / (1 << ADCResolution)

	adcMaxVoltage = 6144 * physic.MilliVolt
	adcDataRate   = 860 * physic.Hertz
)

// ADC reads one signed conversion code.
type ADC interface {
	ReadCode() (int32, error)
}

// CodeToVolts converts a raw ADS1115 code to volts.
func CodeToVolts(code int32) float64 {
	return float64(code) * ADCScale
}

// PinADC adapts a periph analog pin to ADC.
type PinADC struct {
	Pin analog.PinADC
}

func (p PinADC) ReadCode() (int32, error) {
	s, err := p.Pin.Read()
	if err != nil {
		return 0, err
	}
	return s.Raw, nil
}

// ADS1115 keeps one device per I2C address so channels on the same chip share it.
type ADS1115 struct {
	bus  i2c.Bus
	devs map[uint16]*ads1x15.Dev
}

func NewADS1115(bus i2c.Bus) *ADS1115 {
	return &ADS1115{bus: bus, devs: map[uint16]*ads1x15.Dev{}}
}

func (a *ADS1115) dev(address uint16) (*ads1x15.Dev, error) {
	if d, ok := a.devs[address]; ok {
		return d, nil
	}
	d, err := ads1x15.NewADS1115(a.bus, &ads1x15.Opts{I2cAddress: address})
	if err != nil {
		return nil, fmt.Errorf("failed to open ADS1115 at 0x%X: %w", address, err)
	}
	a.devs[address] = d
	return d, nil
}

// SingleEnded returns an ADC reading one input against ground.
func (a *ADS1115) SingleEnded(address uint16, channel int) (ADC, error) {
	channels := []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}
	if channel < 0 || channel >= len(channels) {
		return nil, fmt.Errorf("ADS1115 has no channel %d", channel)
	}
	return a.pin(address, channels[channel])
}

// Differential23 returns an ADC reading input 2 against input 3.
func (a *ADS1115) Differential23(address uint16) (ADC, error) {
	return a.pin(address, ads1x15.Channel2Minus3)
}

func (a *ADS1115) pin(address uint16, channel ads1x15.Channel) (ADC, error) {
	d, err := a.dev(address)
	if err != nil {
		return nil, err
	}
	p, err := d.PinForChannel(channel, adcMaxVoltage, adcDataRate, ads1x15.BestQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to configure ADS1115 0x%X channel %v: %w", address, channel, err)
	}
	return PinADC{Pin: p}, nil
}
