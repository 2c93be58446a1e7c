// ABOUTME: Device-side PCM export: 24 bit packing, shifting, byte swapping
// ABOUTME: Also wraps DSD into 24 bit PCM frames (DoP) for USB DACs
package pcm

import (
	"github.com/Resonate-Protocol/playd/pkg/audio"
)

// ExportParams selects the transformations applied by Export
type ExportParams struct {
	// Pack24 turns S24P32 samples into 3 byte samples
	Pack24 bool
	// Shift8 moves S24P32 samples into the high 24 bits
	Shift8 bool
	// ReverseEndian emits big-endian samples
	ReverseEndian bool
	// DSDUSB wraps DSD into S24P32 frames with DoP markers
	DSDUSB bool
}

// Export converts PCM from the pipeline into the layout a device wants
type Export struct {
	params   ExportParams
	channels int

	// sample format after DoP, before pack/shift
	format audio.SampleFormat

	pack24  bool
	shift8  bool
	reverse bool
	dop     bool

	marker bool

	dopBuf     Buffer
	packBuf    Buffer
	reverseBuf Buffer
}

// Open prepares exporting audio of format
func (e *Export) Open(format audio.Format, params ExportParams) {
	e.params = params
	e.channels = int(format.Channels)
	e.format = format.Format
	e.dop = params.DSDUSB && format.Format == audio.FormatDSD
	if e.dop {
		e.format = audio.FormatS24P32
	}

	e.pack24 = params.Pack24 && e.format == audio.FormatS24P32
	e.shift8 = !e.pack24 && params.Shift8 && e.format == audio.FormatS24P32
	e.reverse = params.ReverseEndian && e.format.Size() > 1
	e.marker = false
}

// SampleFormat returns the sample format of exported audio. Packed and
// shifted 24 bit samples still report S24P32.
func (e *Export) SampleFormat() audio.SampleFormat {
	return e.format
}

// OutputRate returns the sample rate the device must be configured with
func (e *Export) OutputRate(rate uint32) uint32 {
	if e.dop {
		return rate / 2
	}
	return rate
}

// FrameSize returns the size of one exported frame for the pipeline format f
func (e *Export) FrameSize(f audio.Format) int {
	if e.pack24 {
		return 3 * int(f.Channels)
	}
	if e.dop {
		return 4 * int(f.Channels)
	}
	return f.FrameSize()
}

// CalcSourceSize converts a number of exported bytes back into pipeline bytes
func (e *Export) CalcSourceSize(size int) int {
	if e.pack24 {
		size = size / 3 * 4
	}
	if e.dop {
		size /= 2
	}
	return size
}

// Export transforms src. The result may alias src.
func (e *Export) Export(src []byte) []byte {
	if e.dop {
		src = e.dsdToUSB(src)
	}

	if e.pack24 {
		src = Pack24(&e.packBuf, src)
	} else if e.shift8 {
		Shift8(src)
	}

	if e.reverse {
		size := e.format.Size()
		if e.pack24 {
			size = 3
		}
		src = ReverseEndian(&e.reverseBuf, size, src)
	}

	return src
}

func (e *Export) dsdToUSB(src []byte) []byte {
	ch := e.channels
	inFrames := len(src) / ch
	outFrames := inFrames / 2
	dst := e.dopBuf.Get(outFrames * ch * 4)

	for f := 0; f < outFrames; f++ {
		var marker uint32 = 0xff050000
		if e.marker {
			marker = 0xfffa0000
		}
		e.marker = !e.marker

		in := src[f*2*ch:]
		for c := 0; c < ch; c++ {
			v := marker | uint32(in[c])<<8 | uint32(in[ch+c])
			putS32(dst, f*ch+c, int32(v))
		}
	}

	return dst
}

// Pack24 converts S24P32 samples into 3 byte little-endian samples
func Pack24(buf *Buffer, src []byte) []byte {
	n := len(src) / 4
	dst := buf.Get(n * 3)
	for i := 0; i < n; i++ {
		copy(dst[i*3:i*3+3], src[i*4:i*4+3])
	}
	return dst
}

// Unpack24 converts 3 byte little-endian samples into sign-extended S24P32
func Unpack24(buf *Buffer, src []byte) []byte {
	n := len(src) / 3
	dst := buf.Get(n * 4)
	for i := 0; i < n; i++ {
		v := audio.SampleFrom24Bit([3]byte{src[i*3], src[i*3+1], src[i*3+2]})
		putS32(dst, i, v)
	}
	return dst
}

// Shift8 shifts 32 bit samples left by 8 bits in place
func Shift8(buf []byte) {
	n := len(buf) / 4
	for i := 0; i < n; i++ {
		putS32(buf, i, getS32(buf, i)<<8)
	}
}

// ReverseEndian reverses the byte order of every sampleSize byte sample
func ReverseEndian(buf *Buffer, sampleSize int, src []byte) []byte {
	if sampleSize <= 1 {
		return src
	}

	n := len(src) / sampleSize
	dst := buf.Get(n * sampleSize)
	for i := 0; i < n; i++ {
		s := src[i*sampleSize : (i+1)*sampleSize]
		d := dst[i*sampleSize : (i+1)*sampleSize]
		for j := range s {
			d[sampleSize-1-j] = s[j]
		}
	}
	return dst
}
