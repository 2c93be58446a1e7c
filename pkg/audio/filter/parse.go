// ABOUTME: Builds a filter chain from a comma separated list of filter names
// ABOUTME: Each name refers to a configuration block carrying a "plugin" key
package filter

import (
	"fmt"
	"strings"

	"github.com/Resonate-Protocol/playd/pkg/audio"
	"github.com/Resonate-Protocol/playd/pkg/audio/resample"
)

// BlockLookup resolves a filter name to its configuration block
type BlockLookup func(name string) (audio.Params, bool)

// ParseChain appends the filters listed in names to chain. Every filter is
// wrapped in an AutoConvert. An empty list appends a single null filter.
func ParseChain(chain *Chain, names string, lookup BlockLookup, kind resample.Kind) error {
	names = strings.TrimSpace(names)
	if names == "" {
		chain.Append("null", Null{})
		return nil
	}

	for _, name := range strings.Split(names, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		params, ok := lookup(name)
		if !ok {
			return fmt.Errorf("filter template not found: %s", name)
		}

		plugin := params.Get("plugin", "")
		if plugin == "" {
			return fmt.Errorf("filter %q has no plugin", name)
		}

		f, err := New(plugin, params)
		if err != nil {
			return fmt.Errorf("filter %q: %w", name, err)
		}

		chain.Append(name, NewAutoConvert(f, kind))
	}

	return nil
}
