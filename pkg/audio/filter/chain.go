// ABOUTME: Ordered composition of filters that behaves like one filter
// ABOUTME: Opening is all or nothing; children opened so far are rolled back
package filter

import (
	"fmt"

	"github.com/Resonate-Protocol/playd/pkg/audio"
)

type chainChild struct {
	name   string
	filter Filter
	open   bool
}

// Chain runs its children in order, feeding each the output of the previous one
type Chain struct {
	children []*chainChild
}

// NewChain creates an empty chain
func NewChain() *Chain {
	return &Chain{}
}

// Append adds a filter at the end of the chain
func (c *Chain) Append(name string, f Filter) {
	c.children = append(c.children, &chainChild{name: name, filter: f})
}

// Len returns the number of children
func (c *Chain) Len() int {
	return len(c.children)
}

// Names returns the child names in order
func (c *Chain) Names() []string {
	names := make([]string, len(c.children))
	for i, child := range c.children {
		names[i] = child.name
	}
	return names
}

// Open opens every child. A child that asks for a different input format
// fails the open unless it is a conversion filter. On failure the children
// opened so far are closed again.
func (c *Chain) Open(in *audio.Format) (audio.Format, error) {
	format := *in

	for _, child := range c.children {
		requested := format
		out, err := child.filter.Open(&requested)
		if err != nil {
			c.closeOpened()
			return audio.Format{}, fmt.Errorf("failed to open filter %q: %w: %w",
				child.name, audio.ErrFilterOpen, err)
		}
		child.open = true

		if requested != format {
			if _, isConvert := child.filter.(*Convert); !isConvert {
				c.closeOpened()
				return audio.Format{}, fmt.Errorf("audio format %s not supported by filter %q: %w",
					format, child.name, audio.ErrFilterOpen)
			}
		}

		format = out
	}

	return format, nil
}

func (c *Chain) closeOpened() {
	for _, child := range c.children {
		if child.open {
			child.filter.Close()
			child.open = false
		}
	}
}

// Filter runs src through every child; the first error aborts
func (c *Chain) Filter(src []byte) ([]byte, error) {
	var err error
	for _, child := range c.children {
		src, err = child.filter.Filter(src)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", child.name, err)
		}
	}
	return src, nil
}

// Close closes every opened child
func (c *Chain) Close() {
	c.closeOpened()
}

// Reset resets every child with state
func (c *Chain) Reset() {
	for _, child := range c.children {
		Reset(child.filter)
	}
}
