// ABOUTME: Key/value configuration block handed to filter and output plugins
// ABOUTME: Provides typed getters with defaults
package audio

import (
	"fmt"
	"strconv"
	"strings"
)

// Params is a plugin configuration block such as a filter or output section
type Params map[string]string

// Get returns the value for key or def when missing
func (p Params) Get(key, def string) string {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// GetInt parses key as an integer
func (p Params) GetInt(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid integer for %q: %w", key, err)
	}
	return n, nil
}

// GetBool parses key as a boolean ("yes"/"no" are accepted too)
func (p Params) GetBool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1", "on":
		return true, nil
	case "no", "false", "0", "off":
		return false, nil
	}
	return def, fmt.Errorf("invalid boolean for %q: %q", key, v)
}
