package drive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*ChannelConfig)
		kind   string
	}{
		{
			name:   "defaults",
			modify: func(*ChannelConfig) {},
		},
		{
			name:   "period too short",
			modify: func(c *ChannelConfig) { c.Period = 50 * time.Microsecond },
			kind:   ConfigOutOfRange,
		},
		{
			name:   "period too long",
			modify: func(c *ChannelConfig) { c.Period = 2 * time.Second },
			kind:   ConfigOutOfRange,
		},
		{
			name:   "zero pwm ceiling",
			modify: func(c *ChannelConfig) { c.PWMMax = 0 },
			kind:   ConfigOutOfRange,
		},
		{
			name:   "pwm ceiling above full duty",
			modify: func(c *ChannelConfig) { c.PWMMax = 101 },
			kind:   ConfigOutOfRange,
		},
		{
			name:   "duplicate analog pins",
			modify: func(c *ChannelConfig) { c.Analog[1].Pin = c.Analog[0].Pin },
			kind:   ConfigConflict,
		},
		{
			name:   "analog and pwm share a pin",
			modify: func(c *ChannelConfig) { c.PWM[0].Pin = c.Analog[2].Pin },
			kind:   ConfigConflict,
		},
		{
			name: "duplicate pin on disabled channel",
			modify: func(c *ChannelConfig) {
				c.Analog[1].Pin = c.Analog[0].Pin
				c.Analog[1].Enabled = false
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := DefaultConfig()
			tc.modify(&conf)
			err := conf.Validate()
			if tc.kind == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			cerr, ok := err.(*ConfigError)
			require.True(t, ok)
			require.Equal(t, tc.kind, cerr.Kind)
		})
	}
}

func TestEnableMask(t *testing.T) {
	conf := DefaultConfig()
	require.Equal(t, uint32(0x0f0f), conf.EnableMask())

	conf.Analog[3].Enabled = false
	conf.PWM[0].Enabled = false
	require.Equal(t, uint32(0x0e07), conf.EnableMask())
}
