package bms

import (
	"fmt"
	"os"
	"path/filepath"

	goconfig "github.com/TheCacophonyProject/go-config"
	"github.com/google/go-cmp/cmp"
	"github.com/rjeczalik/notify"
)

const (
	configKey = "bms"

	CANBackendSocketCAN = "socketcan"
	CANBackendSLCAN     = "slcan"
)

// Config is the board wiring, read from the "bms" section of the device config.
type Config struct {
	SPIPort        string   `mapstructure:"spi-port"`
	ChipSelectPins []string `mapstructure:"chip-select-pins"`

	// 74HC595 carrying the pack enable lines.
	ShiftDataPin  string `mapstructure:"shift-data-pin"`
	ShiftClockPin string `mapstructure:"shift-clock-pin"`
	ShiftLatchPin string `mapstructure:"shift-latch-pin"`
	EnableLines   []int  `mapstructure:"enable-lines"`

	IgnitionPin     string `mapstructure:"ignition-pin"`
	ChargePortPin   string `mapstructure:"charge-port-pin"`
	DebounceSamples int    `mapstructure:"debounce-samples"`

	I2CBus           string   `mapstructure:"i2c-bus"`
	CellADCAddresses []uint16 `mapstructure:"cell-adc-addresses"`
	CellADCChannels  []int    `mapstructure:"cell-adc-channels"`

	// ShuntADCAddress of 0 disables current sensing.
	ShuntADCAddress uint16 `mapstructure:"shunt-adc-address"`

	CANBackend   string `mapstructure:"can-backend"`
	CANInterface string `mapstructure:"can-interface"`
	SLCANDevice  string `mapstructure:"slcan-device"`
	SLCANBaud    int    `mapstructure:"slcan-baud"`

	// RadioDevice is the rfkill type switched with the mode, empty leaves the radio alone.
	RadioDevice string `mapstructure:"radio-device"`
}

func DefaultConfig() Config {
	return Config{
		SPIPort:          "",
		ChipSelectPins:   []string{"GPIO27", "GPIO26"},
		ShiftDataPin:     "GPIO23",
		ShiftClockPin:    "GPIO24",
		ShiftLatchPin:    "GPIO25",
		EnableLines:      []int{2, 3},
		IgnitionPin:      "GPIO5",
		ChargePortPin:    "GPIO6",
		DebounceSamples:  2,
		I2CBus:           "",
		CellADCAddresses: []uint16{0x48, 0x48},
		CellADCChannels:  []int{0, 1},
		ShuntADCAddress:  0x4B,
		CANBackend:       CANBackendSocketCAN,
		CANInterface:     "can0",
		SLCANDevice:      "/dev/ttyACM0",
		SLCANBaud:        115200,
		RadioDevice:      "wifi",
	}
}

// Validate checks there is wiring for every pack.
func (c Config) Validate() error {
	if len(c.ChipSelectPins) != NumPacks {
		return fmt.Errorf("need %d chip select pins, have %d", NumPacks, len(c.ChipSelectPins))
	}
	if len(c.EnableLines) != NumPacks {
		return fmt.Errorf("need %d enable lines, have %d", NumPacks, len(c.EnableLines))
	}
	if len(c.CellADCAddresses) != NumPacks || len(c.CellADCChannels) != NumPacks {
		return fmt.Errorf("need an ADC address and channel for each of the %d packs", NumPacks)
	}
	switch c.CANBackend {
	case CANBackendSocketCAN, CANBackendSLCAN:
	default:
		return fmt.Errorf("unknown CAN backend '%s'", c.CANBackend)
	}
	if c.DebounceSamples < 1 {
		return fmt.Errorf("debounce samples must be at least 1, have %d", c.DebounceSamples)
	}
	return nil
}

func ParseConfig(configDir string) (*Config, error) {
	conf, err := goconfig.New(configDir)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	if err := conf.Unmarshal(configKey, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", configKey, err)
	}
	return &c, nil
}

// checkConfigChanges compares the config from when first loaded to a new
// config each time the config file is written. On a difference the program
// exits and systemd restarts it with the new wiring.
func checkConfigChanges(conf *Config, configDir string) error {
	configFilePath := filepath.Join(configDir, goconfig.ConfigFileName)
	fsEvents := make(chan notify.EventInfo, 1)
	if err := notify.Watch(configFilePath, fsEvents, notify.InCloseWrite, notify.InMovedTo); err != nil {
		return err
	}
	defer notify.Stop(fsEvents)

	for {
		<-fsEvents
		newConfig, err := ParseConfig(configDir)
		if err != nil {
			log.Error("Error reloading config: ", err)
			continue
		}
		diff := cmp.Diff(conf, newConfig)
		log.Debug("Config diff: ", diff)
		if diff != "" {
			log.Info("Config changed. Exiting to allow systemctl to restart service.")
			os.Exit(0)
		}
		log.Info("No relevant changes detected in config file.")
	}
}
