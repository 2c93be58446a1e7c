// ABOUTME: mDNS advertisement and browsing of playback daemons
// ABOUTME: Announces _mpd._tcp with the instance id in the TXT record
package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"
)

// ServiceType is the zeroconf service announced by the daemon
const ServiceType = "_mpd._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int

	// InstanceID identifies this daemon across restarts; generated when empty
	InstanceID string

	// Version is announced in the TXT record
	Version string
}

// Manager handles mDNS operations
type Manager struct {
	config Config
	server *mdns.Server
}

// Peer describes a daemon found on the network
type Peer struct {
	Name       string
	Host       string
	Port       int
	InstanceID string
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.InstanceID == "" {
		config.InstanceID = uuid.New().String()
	}
	return &Manager{config: config}
}

// InstanceID returns the id announced in the TXT record
func (m *Manager) InstanceID() string {
	return m.config.InstanceID
}

func (m *Manager) txt() []string {
	txt := []string{"id=" + m.config.InstanceID}
	if m.config.Version != "" {
		txt = append(txt, "version="+m.config.Version)
	}
	return txt
}

// Advertise announces this daemon until ctx is done
func (m *Manager) Advertise(ctx context.Context) error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		m.txt(),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	m.server = server

	logrus.WithFields(logrus.Fields{
		"name": m.config.ServiceName,
		"port": m.config.Port,
		"id":   m.config.InstanceID,
	}).Info("Advertising zeroconf service")

	<-ctx.Done()
	return server.Shutdown()
}

// Browse queries the network for other daemons for at most timeout
func Browse(ctx context.Context, timeout time.Duration) ([]Peer, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []Peer)

	go func() {
		var peers []Peer
		for entry := range entries {
			peers = append(peers, peerFromEntry(entry))
		}
		done <- peers
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true

	queryErr := make(chan error, 1)
	go func() {
		queryErr <- mdns.Query(params)
		close(entries)
	}()

	var err error
	select {
	case err = <-queryErr:
	case <-ctx.Done():
		// Query returns after timeout regardless
		err = <-queryErr
	}
	peers := <-done
	if err != nil {
		return peers, fmt.Errorf("mdns query failed: %w", err)
	}
	return peers, nil
}

func peerFromEntry(entry *mdns.ServiceEntry) Peer {
	peer := Peer{Name: entry.Name, Port: entry.Port}
	if entry.AddrV4 != nil {
		peer.Host = entry.AddrV4.String()
	} else if entry.AddrV6 != nil {
		peer.Host = entry.AddrV6.String()
	}
	for _, field := range entry.InfoFields {
		if len(field) > 3 && field[:3] == "id=" {
			peer.InstanceID = field[3:]
		}
	}
	return peer
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
