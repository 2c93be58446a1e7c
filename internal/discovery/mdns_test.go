// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers TXT records and service entry parsing without the network
package discovery

import (
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestNewManagerGeneratesInstanceID(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test Player", Port: 6600})
	_, err := uuid.Parse(mgr.InstanceID())
	assert.NoError(t, err)

	other := NewManager(Config{ServiceName: "Test Player", Port: 6600})
	assert.NotEqual(t, mgr.InstanceID(), other.InstanceID())
}

func TestTXTRecord(t *testing.T) {
	mgr := NewManager(Config{InstanceID: "abc", Version: "1.2.3"})
	assert.Equal(t, []string{"id=abc", "version=1.2.3"}, mgr.txt())

	bare := NewManager(Config{InstanceID: "abc"})
	assert.Equal(t, []string{"id=abc"}, bare.txt())
}

func TestPeerFromEntry(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:       "kitchen._mpd._tcp.local.",
		AddrV4:     net.ParseIP("192.168.1.20"),
		Port:       6600,
		InfoFields: []string{"version=1", "id=1234"},
	}

	peer := peerFromEntry(entry)
	assert.Equal(t, Peer{Name: entry.Name, Host: "192.168.1.20", Port: 6600, InstanceID: "1234"}, peer)
}
