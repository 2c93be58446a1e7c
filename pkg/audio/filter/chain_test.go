// ABOUTME: Tests for filter chains, conversion and parsing
// ABOUTME: Uses recording fake filters to verify open/close rollback
package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

type fakeFilter struct {
	openErr  error
	wantIn   *audio.Format
	outFmt   *audio.Format
	opened   int
	closed   int
	filtered int
	suffix   byte
}

func (f *fakeFilter) Open(in *audio.Format) (audio.Format, error) {
	if f.openErr != nil {
		return audio.Format{}, f.openErr
	}
	f.opened++
	if f.wantIn != nil {
		*in = *f.wantIn
	}
	if f.outFmt != nil {
		return *f.outFmt, nil
	}
	return *in, nil
}

func (f *fakeFilter) Filter(src []byte) ([]byte, error) {
	f.filtered++
	if f.suffix != 0 {
		return append(append([]byte(nil), src...), f.suffix), nil
	}
	return src, nil
}

func (f *fakeFilter) Close() { f.closed++ }

var cd = audio.NewFormat(44100, audio.FormatS16, 2)

func TestChainOpenAndFilter(t *testing.T) {
	mono := audio.NewFormat(44100, audio.FormatS16, 1)
	a := &fakeFilter{suffix: 'a'}
	b := &fakeFilter{suffix: 'b', outFmt: &mono}

	chain := NewChain()
	chain.Append("a", a)
	chain.Append("b", b)
	assert.Equal(t, []string{"a", "b"}, chain.Names())

	in := cd
	out, err := chain.Open(&in)
	require.NoError(t, err)
	assert.Equal(t, mono, out)
	assert.Equal(t, cd, in, "the chain itself never rewrites its input")

	got, err := chain.Filter([]byte{'x'})
	require.NoError(t, err)
	assert.Equal(t, []byte("xab"), got)

	chain.Close()
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
}

func TestChainRollbackOnOpenFailure(t *testing.T) {
	a := &fakeFilter{}
	b := &fakeFilter{}
	c := &fakeFilter{openErr: errors.New("device busy")}

	chain := NewChain()
	chain.Append("a", a)
	chain.Append("b", b)
	chain.Append("c", c)

	in := cd
	_, err := chain.Open(&in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, audio.ErrFilterOpen))
	assert.Contains(t, err.Error(), "device busy")

	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
	assert.Equal(t, 0, c.closed)

	// Closing afterwards must not close anything twice
	chain.Close()
	assert.Equal(t, 1, a.closed)
}

func TestChainRejectsFormatRewrite(t *testing.T) {
	float := audio.NewFormat(44100, audio.FormatFloat, 2)
	a := &fakeFilter{}
	picky := &fakeFilter{wantIn: &float}

	chain := NewChain()
	chain.Append("a", a)
	chain.Append("picky", picky)

	in := cd
	_, err := chain.Open(&in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, audio.ErrFilterOpen))
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, picky.closed)
}

func TestAutoConvertInsertsConversion(t *testing.T) {
	hires := audio.NewFormat(44100, audio.FormatS24P32, 2)
	chain := NewChain()
	chain.Append("normalize", NewAutoConvert(NewNormalize(DefaultCompressorConfig()), resample.Linear))

	in := hires
	out, err := chain.Open(&in)
	require.NoError(t, err)
	assert.Equal(t, cd, out)

	// two 24 bit stereo frames become two 16 bit stereo frames
	got, err := chain.Filter(make([]byte, 16))
	require.NoError(t, err)
	assert.Len(t, got, 8)
	chain.Close()
}

func TestAutoConvertPassThrough(t *testing.T) {
	inner := &fakeFilter{}
	ac := NewAutoConvert(inner, resample.Linear)

	in := cd
	_, err := ac.Open(&in)
	require.NoError(t, err)
	assert.Nil(t, ac.convert)

	ac.Close()
	assert.Equal(t, 1, inner.closed)
}

func TestConvertSet(t *testing.T) {
	c := NewConvert(resample.Fallback)
	in := cd
	out, err := c.Open(&in)
	require.NoError(t, err)
	assert.Equal(t, cd, out)

	src := []byte{1, 0, 2, 0}
	got, err := c.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)

	require.NoError(t, c.Set(audio.NewFormat(44100, audio.FormatS32, 2)))
	got, err = c.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 1, 0, 0, 0, 2, 0}, got)

	err = c.Set(audio.NewFormat(44100, audio.FormatS16, 5))
	assert.True(t, errors.Is(err, audio.ErrUnsupportedConversion))

	require.NoError(t, c.Set(cd))
	got, err = c.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, got)
	c.Close()
}

func TestParseChain(t *testing.T) {
	blocks := map[string]audio.Params{
		"swap":  {"plugin": "route", "routes": "0>1, 1>0"},
		"bogus": {"plugin": "does-not-exist"},
		"bare":  {},
	}
	lookup := func(name string) (audio.Params, bool) {
		p, ok := blocks[name]
		return p, ok
	}

	t.Run("empty list", func(t *testing.T) {
		chain := NewChain()
		require.NoError(t, ParseChain(chain, "  ", lookup, resample.Linear))
		assert.Equal(t, []string{"null"}, chain.Names())
	})

	t.Run("route", func(t *testing.T) {
		chain := NewChain()
		require.NoError(t, ParseChain(chain, "swap", lookup, resample.Linear))
		require.Equal(t, 1, chain.Len())

		in := cd
		_, err := chain.Open(&in)
		require.NoError(t, err)
		got, err := chain.Filter([]byte{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, []byte{3, 4, 1, 2}, got)
	})

	errorCases := []string{"missing", "bogus", "bare"}
	for _, names := range errorCases {
		t.Run(names, func(t *testing.T) {
			assert.Error(t, ParseChain(NewChain(), names, lookup, resample.Linear))
		})
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"null", "route", "normalize", "volume"} {
		_, ok := Lookup(name)
		assert.True(t, ok, name)
	}
	assert.Contains(t, Plugins(), "route")

	_, err := New("nope", nil)
	assert.Error(t, err)
}
