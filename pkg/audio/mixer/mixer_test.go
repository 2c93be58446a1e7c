// ABOUTME: Tests for the mixer implementations
// ABOUTME: Covers the software curve and hardware volume caching
package mixer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio/filter"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"", TypeHardware},
		{"software", TypeSoftware},
		{"null", TypeNull},
		{"none", TypeNone},
	}
	for _, tt := range tests {
		got, err := ParseType(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseType("alsa")
	assert.Error(t, err)
}

func TestPercentToSoftwareVolume(t *testing.T) {
	assert.Equal(t, 0, PercentToSoftwareVolume(0))
	assert.Equal(t, pcm.VolumeOne, PercentToSoftwareVolume(100))
	assert.Equal(t, pcm.VolumeOne, PercentToSoftwareVolume(150))

	prev := 0
	for v := 1; v < 100; v++ {
		got := PercentToSoftwareVolume(v)
		assert.GreaterOrEqual(t, got, prev, "curve must be monotonic at %d", v)
		prev = got
	}
	assert.Less(t, PercentToSoftwareVolume(50), pcm.VolumeOne/2, "curve is exponential")
}

func TestSoftwareMixerDrivesFilter(t *testing.T) {
	vol := filter.NewVolume()
	m := NewSoftware(vol)
	require.NoError(t, m.Open())

	require.NoError(t, m.SetVolume(0))
	assert.Equal(t, 0, vol.GetVolume())

	require.NoError(t, m.SetVolume(100))
	assert.Equal(t, pcm.VolumeOne, vol.GetVolume())

	require.NoError(t, m.SetVolume(-5))
	got, err := m.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

type fakeDevice struct {
	volume int
	err    error
	sets   int
}

func (d *fakeDevice) SetVolume(v int) error {
	if d.err != nil {
		return d.err
	}
	d.sets++
	d.volume = v
	return nil
}

func (d *fakeDevice) GetVolume() (int, error) {
	return d.volume, d.err
}

func TestHardwareMixerCachesWhileClosed(t *testing.T) {
	dev := &fakeDevice{volume: 100}
	m := NewHardware(dev)

	require.NoError(t, m.SetVolume(30))
	assert.Equal(t, 0, dev.sets)
	got, err := m.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	require.NoError(t, m.Open())
	assert.Equal(t, 30, dev.volume)

	dev.volume = 55
	got, err = m.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 55, got)

	m.Close()
	require.NoError(t, m.SetVolume(70))
	assert.Equal(t, 55, dev.volume)
}

func TestHardwareMixerOpenError(t *testing.T) {
	dev := &fakeDevice{err: errors.New("no device")}
	m := NewHardware(dev)
	assert.Error(t, m.Open())
}

func TestNullMixer(t *testing.T) {
	m := NewNull()
	require.NoError(t, m.SetVolume(120))
	got, err := m.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 100, got)
}
