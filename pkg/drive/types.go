package drive

import (
	"fmt"
	"time"

	"github.com/atspaeth/Neurobot/pkg/hsr"
)

// Sample is one timestamped snapshot of every input channel.
// Immutable once produced.
type Sample struct {
	// Time is the host time the reading corresponds to, derived from
	// the coprocessor clock and the start epoch.
	Time time.Time
	// Gen is the shared-memory generation the sample was read at.
	// Strictly increasing across one run.
	Gen uint32
	// Raw holds the unscaled 12-bit ADC readings.
	Raw [hsr.AnalogChannels]uint16
	// ADC holds the readings normalized to [0,1].
	ADC [hsr.AnalogChannels]float32
	// Digital holds the digital input bits.
	Digital uint32
}

// Command is a tuple of actuator setpoints. Duty values are signed
// fractional activations in [-1,1]; the configured PWM ceiling scales
// them down before they reach the hardware.
type Command struct {
	Duty    [hsr.PWMChannels]float32
	Digital uint32
}

// AnalogChannel configures one analog input.
type AnalogChannel struct {
	Pin     int
	Enabled bool
}

// PWMChannel configures one PWM output.
type PWMChannel struct {
	Pin     int
	Enabled bool
}

// Period limits accepted by the firmware.
const (
	MinPeriod = 100 * time.Microsecond
	MaxPeriod = time.Second
)

// DefaultPeriod matches the period the robot normally runs at.
const DefaultPeriod = 500 * time.Microsecond

// DefaultPWMMax is the default PWM ceiling in percent. The gear motors
// strip at high duty, so the ceiling is deliberately low.
const DefaultPWMMax = 20

// ChannelConfig maps logical channels to pins and fixes the loop
// timing. Immutable while the driver is running.
type ChannelConfig struct {
	Period time.Duration
	PWMMax float32 // percent of full duty allowed through
	Analog [hsr.AnalogChannels]AnalogChannel
	PWM    [hsr.PWMChannels]PWMChannel
}

// DefaultConfig returns the wiring of the stock board: four analog
// position inputs and four PWM outputs, all enabled.
func DefaultConfig() ChannelConfig {
	conf := ChannelConfig{
		Period: DefaultPeriod,
		PWMMax: DefaultPWMMax,
	}
	for i := range conf.Analog {
		conf.Analog[i] = AnalogChannel{Pin: i, Enabled: true}
	}
	for i := range conf.PWM {
		conf.PWM[i] = PWMChannel{Pin: 8 + i, Enabled: true}
	}
	return conf
}

// ConfigError kinds.
const (
	ConfigOutOfRange = "out of range"
	ConfigConflict   = "conflict"
)

// ConfigError reports an invalid channel configuration. No hardware
// write happens before validation passes.
type ConfigError struct {
	Kind   string
	Detail string
}

// Error implements error.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Kind, e.Detail)
}

// Validate checks the configuration against hardware limits.
func (c *ChannelConfig) Validate() error {
	if c.Period < MinPeriod || c.Period > MaxPeriod {
		return &ConfigError{Kind: ConfigOutOfRange,
			Detail: fmt.Sprintf("period %v outside [%v, %v]", c.Period, MinPeriod, MaxPeriod)}
	}
	if c.PWMMax <= 0 || c.PWMMax > 100 {
		return &ConfigError{Kind: ConfigOutOfRange,
			Detail: fmt.Sprintf("pwm ceiling %v%% outside (0, 100]", c.PWMMax)}
	}
	pins := make(map[int]string)
	for i, ch := range c.Analog {
		if !ch.Enabled {
			continue
		}
		name := fmt.Sprintf("analog%d", i)
		if prev, ok := pins[ch.Pin]; ok {
			return &ConfigError{Kind: ConfigConflict,
				Detail: fmt.Sprintf("%s and %s both mapped to pin %d", prev, name, ch.Pin)}
		}
		pins[ch.Pin] = name
	}
	for i, ch := range c.PWM {
		if !ch.Enabled {
			continue
		}
		name := fmt.Sprintf("pwm%d", i)
		if prev, ok := pins[ch.Pin]; ok {
			return &ConfigError{Kind: ConfigConflict,
				Detail: fmt.Sprintf("%s and %s both mapped to pin %d", prev, name, ch.Pin)}
		}
		pins[ch.Pin] = name
	}
	return nil
}

// EnableMask encodes enabled channels for the control block.
func (c *ChannelConfig) EnableMask() uint32 {
	var mask uint32
	for i, ch := range c.Analog {
		if ch.Enabled {
			mask |= 1 << (hsr.EnableAnalogShift + uint(i))
		}
	}
	for i, ch := range c.PWM {
		if ch.Enabled {
			mask |= 1 << (hsr.EnablePWMShift + uint(i))
		}
	}
	return mask
}
