package registry

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/gateway"
	"github.com/tamzrod/spectro-coordinator/internal/native/sim"
)

func newRegistry(lib *sim.Library) *Registry {
	log := eventlog.New(eventlog.WithConsole(io.Discard))
	return New(gateway.New(lib), log)
}

func unit(serial string, pixels int) sim.Device {
	return sim.Device{Serial: serial, Model: "WP-785", Pixels: pixels, ExcitationNM: 785}
}

func TestOpenAll_ContiguousIndices(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		r := newRegistry(sim.Default(n))

		got, err := r.OpenAll()
		require.NoError(t, err)
		assert.Equal(t, n, got)
		assert.Equal(t, n, r.Len())

		for i, s := range r.Devices() {
			assert.Equal(t, i, s.Index())
		}
	}
}

func TestOpenAll_RejectsZeroPixels(t *testing.T) {
	lib := sim.New(
		unit("A", 1024),
		unit("BROKEN", 0),
		unit("C", 2048),
	)
	r := newRegistry(lib)

	n, err := r.OpenAll()
	require.NoError(t, err)
	require.Equal(t, 2, n)

	devs := r.Devices()
	assert.Equal(t, "A", devs[0].SerialNumber())
	assert.Equal(t, 0, devs[0].Index())
	assert.Equal(t, 0, devs[0].NativeIndex())

	assert.Equal(t, "C", devs[1].SerialNumber())
	assert.Equal(t, 1, devs[1].Index())
	assert.Equal(t, 2, devs[1].NativeIndex())

	for _, s := range devs {
		assert.NotEqual(t, "BROKEN", s.SerialNumber())
	}
	assert.Equal(t, int32(1), lib.CloseCalls.Load(), "rejected device closed individually")
}

func TestOpenAll_RequeriesCount(t *testing.T) {
	lib := sim.Default(3)
	lib.ReportedCount = 2
	r := newRegistry(lib)

	n, err := r.OpenAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOpenAll_Twice(t *testing.T) {
	lib := sim.Default(2)
	r := newRegistry(lib)

	_, err := r.OpenAll()
	require.NoError(t, err)

	n, err := r.OpenAll()
	assert.ErrorIs(t, err, ErrAlreadyOpen)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(1), lib.OpenAllCalls.Load())
}

func TestCloseAll(t *testing.T) {
	lib := sim.Default(2)
	r := newRegistry(lib)

	assert.ErrorIs(t, r.CloseAll(), ErrNotOpen)

	_, err := r.OpenAll()
	require.NoError(t, err)
	devs := r.Devices()

	require.NoError(t, r.CloseAll())
	assert.Equal(t, int32(1), lib.CloseAllCalls.Load())
	assert.Equal(t, 0, r.Len())
	assert.False(t, r.IsOpen())
	for _, s := range devs {
		assert.True(t, s.Closed())
	}

	// reopening after a close is a fresh discovery
	n, err := r.OpenAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDevice_Unknown(t *testing.T) {
	r := newRegistry(sim.Default(1))
	_, err := r.OpenAll()
	require.NoError(t, err)

	s, err := r.Device(0)
	require.NoError(t, err)
	assert.Equal(t, "WP-01000", s.SerialNumber())

	_, err = r.Device(1)
	assert.ErrorIs(t, err, ErrUnknownDevice)
	_, err = r.Device(-1)
	assert.ErrorIs(t, err, ErrUnknownDevice)
}
