package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPinModeNames(t *testing.T) {
	for mode, name := range pinModeNames {
		require.Equal(t, name, mode.String())
		if mode == ModeUnknown {
			continue
		}
		parsed, err := ParsePinMode(name)
		require.NoError(t, err)
		require.Equal(t, mode, parsed)
	}
	require.Equal(t, "Mode(0x42)", PinMode(0x42).String())
	_, err := ParsePinMode("laser")
	require.Error(t, err)
	_, err = ParsePinMode("unknown")
	require.Error(t, err)
}

func TestModeCapabilityMaxValue(t *testing.T) {
	require.Equal(t, 1, ModeCapability{Mode: ModeOutput, Resolution: 1}.MaxValue())
	require.Equal(t, 255, ModeCapability{Mode: ModePWM, Resolution: 8}.MaxValue())
	require.Equal(t, 1023, ModeCapability{Mode: ModeAnalog, Resolution: 10}.MaxValue())
	require.Equal(t, Max14Bit, ModeCapability{Mode: ModeServo, Resolution: 0}.MaxValue())
	require.Equal(t, Max14Bit, ModeCapability{Mode: ModeI2C, Resolution: 20}.MaxValue())
}
