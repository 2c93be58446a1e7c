// ABOUTME: Tests for version constants
// ABOUTME: Checks the values announced over zeroconf and printed by -version
package version

import (
	"regexp"
	"testing"
)

func TestConstants(t *testing.T) {
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	// Product ends up in the default zeroconf name "<host>-<product>"
	serviceSafe := regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

	tests := []struct {
		name  string
		value string
		re    *regexp.Regexp
	}{
		{"version", Version, semver},
		{"product", Product, serviceSafe},
		{"manufacturer", Manufacturer, regexp.MustCompile(`^\S.*\S$`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.re.MatchString(tt.value) {
				t.Errorf("expected %s to match %s, got %q", tt.name, tt.re, tt.value)
			}
		})
	}
}
