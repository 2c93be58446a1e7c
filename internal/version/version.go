// ABOUTME: Version information for the playback daemon
// ABOUTME: Announced over zeroconf and printed by -version
package version

const (
	// Version is the release of this build
	Version = "0.3.0"

	// Product is the daemon's name
	Product = "playd"

	// Manufacturer appears in device information
	Manufacturer = "Resonate"
)
