// ABOUTME: Tests for the route, volume, replay gain and normalize filters
// ABOUTME: Covers routing tables, gain math and the mixer hook
package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/pcm"
)

func TestParseRoutes(t *testing.T) {
	tests := []struct {
		name    string
		routes  string
		sources []int
		minIn   int
		wantErr bool
	}{
		{"identity", "0>0, 1>1", []int{0, 1}, 2, false},
		{"swap", "0>1,1>0", []int{1, 0}, 2, false},
		{"mono to stereo", "0>0, 0>1", []int{0, 0}, 1, false},
		{"gap", "1>2", []int{-1, -1, 1}, 2, false},
		{"garbage", "0-1", nil, 0, true},
		{"too many channels", "0>8", nil, 0, true},
		{"not a number", "a>1", nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, minIn, err := ParseRoutes(tt.routes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sources, sources)
			assert.Equal(t, tt.minIn, minIn)
		})
	}
}

func TestRouteFilterSilencesMissingSources(t *testing.T) {
	r, err := NewRoute("0>0, 3>1, 1>2")
	require.NoError(t, err)

	in := cd
	out, err := r.Open(&in)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), out.Channels)

	// two stereo frames: (1,2) and (3,4), 16 bit little-endian
	src := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	got, err := r.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 3, 0, 0, 0, 4, 0}, got)
}

func TestVolumeFilter(t *testing.T) {
	v := NewVolume()
	in := cd
	_, err := v.Open(&in)
	require.NoError(t, err)

	src := []byte{0xe8, 0x03, 0x18, 0xfc} // 1000, -1000
	got, err := v.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	v.SetVolume(pcm.VolumeOne / 2)
	got, err = v.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf4, 0x01, 0x0c, 0xfe}, got)
	assert.Equal(t, []byte{0xe8, 0x03, 0x18, 0xfc}, src, "source is left untouched")

	v.SetVolume(5000)
	assert.Equal(t, pcm.VolumeOne, v.GetVolume())
}

type fakeMixer struct {
	volumes []int
}

func (m *fakeMixer) SetVolume(v int) error {
	m.volumes = append(m.volumes, v)
	return nil
}

func TestReplayGainVolume(t *testing.T) {
	rg := NewReplayGain(DefaultReplayGainConfig(), audio.ReplayGainTrack)
	assert.Equal(t, pcm.FloatToVolume(1.0), rg.Volume(), "missing info uses the missing preamp")

	info := audio.NewReplayGainInfo()
	info.Track = audio.ReplayGainTuple{Gain: -6.0206, Peak: 0.5}
	rg.SetInfo(&info)
	assert.Equal(t, 512, rg.Volume())

	rg.SetMode(audio.ReplayGainOff)
	assert.Equal(t, pcm.VolumeOne, rg.Volume())

	rg.SetMode(audio.ReplayGainAlbum)
	assert.Equal(t, 512, rg.Volume(), "album mode falls back to the track tuple")

	rg.SetInfo(nil)
	assert.Equal(t, pcm.VolumeOne, rg.Volume())
}

func TestReplayGainFilterScalesPCM(t *testing.T) {
	rg := NewReplayGain(DefaultReplayGainConfig(), audio.ReplayGainTrack)
	info := audio.NewReplayGainInfo()
	info.Track = audio.ReplayGainTuple{Gain: -6.0206, Peak: 0.5}
	rg.SetInfo(&info)

	in := cd
	_, err := rg.Open(&in)
	require.NoError(t, err)

	got, err := rg.Filter([]byte{0xe8, 0x03})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf4, 0x01}, got)
}

func TestReplayGainDrivesMixer(t *testing.T) {
	rg := NewReplayGain(DefaultReplayGainConfig(), audio.ReplayGainTrack)
	m := &fakeMixer{}
	rg.SetMixer(m, 80)

	info := audio.NewReplayGainInfo()
	info.Track = audio.ReplayGainTuple{Gain: -6.0206, Peak: 0.5}
	rg.SetInfo(&info)

	require.NotEmpty(t, m.volumes)
	assert.Equal(t, 40, m.volumes[len(m.volumes)-1])

	in := cd
	_, err := rg.Open(&in)
	require.NoError(t, err)
	src := []byte{0xe8, 0x03}
	got, err := rg.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, got, "with a mixer attached PCM is not scaled")
}

func TestCompressorBoostsQuietAudio(t *testing.T) {
	c := NewCompressor(DefaultCompressorConfig())

	buf := make([]byte, 2048)
	for i := 0; i < 50; i++ {
		for j := 0; j < len(buf); j += 2 {
			buf[j], buf[j+1] = 0xe8, 0x03 // 1000
		}
		c.Process(buf)
	}

	assert.Greater(t, c.Gain(), 1<<10)
	last := int16(uint16(buf[len(buf)-2]) | uint16(buf[len(buf)-1])<<8)
	assert.Greater(t, last, int16(1000))
}

func TestCompressorLeavesLoudAudio(t *testing.T) {
	c := NewCompressor(DefaultCompressorConfig())

	buf := make([]byte, 64)
	for j := 0; j < len(buf); j += 2 {
		buf[j], buf[j+1] = 0x30, 0x75 // 30000
	}
	want := append([]byte(nil), buf...)
	c.Process(buf)

	assert.Equal(t, want, buf)
	assert.Equal(t, 1<<10, c.Gain())
}
