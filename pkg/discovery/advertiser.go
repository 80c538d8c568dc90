package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// DefaultPort is advertised when DeviceInfo has no port.
const DefaultPort = 1883

// Advertiser announces the device on the local network.
type Advertiser interface {
	// Advertise registers the device, replacing any earlier registration.
	Advertise(ctx context.Context, info *DeviceInfo) error

	// Update replaces the TXT records of the active registration.
	Update(info *DeviceInfo) error

	// Stop withdraws the registration.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL of the published records. Zero uses the zeroconf default.
	TTL time.Duration
}

// registerFunc matches zeroconf.Register.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (*zeroconf.Server, error)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	config   AdvertiserConfig
	register registerFunc

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{
		config: config,
		register: func(instance, service, domain string, port int, text []string, ifaces []net.Interface, opts ...zeroconf.ServerOption) (*zeroconf.Server, error) {
			return zeroconf.Register(instance, service, domain, port, text, ifaces, opts...)
		},
	}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *MDNSAdvertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}

	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Advertise implements Advertiser.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *DeviceInfo) error {
	if err := ValidateInstanceName(info.Instance); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := int(info.Port)
	if port == 0 {
		port = DefaultPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := a.register(
		info.Instance,
		ServiceType,
		Domain,
		port,
		TXTRecordsToStrings(EncodeTXT(info)),
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceType, err)
	}
	a.server = server
	return nil
}

// Update implements Advertiser.
func (a *MDNSAdvertiser) Update(info *DeviceInfo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotAdvertising
	}
	a.server.SetText(TXTRecordsToStrings(EncodeTXT(info)))
	return nil
}

// Stop implements Advertiser.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

var _ Advertiser = (*MDNSAdvertiser)(nil)
