// ABOUTME: Filter package overview
// ABOUTME: Per-output PCM stages composed into chains
// Package filter implements the PCM processing stages that run between the
// shared chunk queue and an output device.
//
// A Filter negotiates formats in Open and then transforms buffers. Filters
// compose into a Chain; format-restricted filters are wrapped in AutoConvert,
// and every output chain ends in a Convert whose target format is chosen
// once the device negotiated its own.
//
// Example:
//
//	chain := filter.NewChain()
//	if err := filter.ParseChain(chain, "swap", lookup, resample.Cubic); err != nil {
//		return err
//	}
//	convert := filter.NewConvert(resample.Cubic)
//	chain.Append("convert", convert)
//	out, err := chain.Open(&format)
package filter
