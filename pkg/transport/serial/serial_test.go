package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenMissingName(t *testing.T) {
	_, err := Open("", 57600)
	require.ErrorContains(t, err, "missing port name")
}

func TestOpenNoSuchPort(t *testing.T) {
	_, err := Open("/dev/firmata-no-such-port", 57600)
	require.ErrorContains(t, err, "/dev/firmata-no-such-port")
}
