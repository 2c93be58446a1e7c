// ABOUTME: Wrapper that converts audio into whatever its inner filter accepts
// ABOUTME: Lets format-restricted filters sit anywhere in a chain
package filter

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// AutoConvert opens its inner filter and, if that filter wants a different
// input format, inserts a conversion in front of it
type AutoConvert struct {
	inner   Filter
	kind    resample.Kind
	convert *Convert
}

// NewAutoConvert wraps inner
func NewAutoConvert(inner Filter, kind resample.Kind) *AutoConvert {
	return &AutoConvert{inner: inner, kind: kind}
}

// Inner returns the wrapped filter
func (a *AutoConvert) Inner() Filter {
	return a.inner
}

func (a *AutoConvert) Open(in *audio.Format) (audio.Format, error) {
	wanted := *in
	out, err := a.inner.Open(&wanted)
	if err != nil {
		return audio.Format{}, err
	}

	a.convert = nil
	if wanted == *in {
		return out, nil
	}

	convert := NewConvert(a.kind)
	from := *in
	if _, err := convert.Open(&from); err != nil {
		a.inner.Close()
		return audio.Format{}, err
	}
	if err := convert.Set(wanted); err != nil {
		convert.Close()
		a.inner.Close()
		return audio.Format{}, fmt.Errorf("cannot convert for filter: %w", err)
	}

	a.convert = convert
	return out, nil
}

func (a *AutoConvert) Filter(src []byte) ([]byte, error) {
	if a.convert != nil {
		var err error
		src, err = a.convert.Filter(src)
		if err != nil {
			return nil, err
		}
	}
	return a.inner.Filter(src)
}

func (a *AutoConvert) Reset() {
	if a.convert != nil {
		a.convert.Reset()
	}
	Reset(a.inner)
}

func (a *AutoConvert) Close() {
	if a.convert != nil {
		a.convert.Close()
		a.convert = nil
	}
	a.inner.Close()
}
