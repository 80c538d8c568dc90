package discovery

import (
	"context"
	"net"

	"github.com/enbility/zeroconf/v3"
)

// Service is a device found on the network.
type Service struct {
	DeviceInfo

	Host      string
	Addresses []string
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// Browse searches for farmhub devices until ctx is done. Services are
// aggregated by instance name: a device seen on several interfaces is
// reported once, with the addresses merged. Entries with invalid TXT
// records are skipped. The returned channel is closed when ctx is done.
func Browse(ctx context.Context, config BrowserConfig) <-chan *Service {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)

		services := make(map[string]*Service)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := serviceFromEntry(entry)
				if svc == nil {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, svc.Addresses)
					continue
				}
				services[entry.Instance] = svc
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if existing, found := services[entry.Instance]; found {
					existing.Addresses = removeAddresses(existing.Addresses, entryAddresses(entry))
					if len(existing.Addresses) == 0 {
						delete(services, entry.Instance)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, browserOptions(config)...)
	}()

	return out
}

func browserOptions(config BrowserConfig) []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if config.Interface != "" {
		iface, err := net.InterfaceByName(config.Interface)
		if err == nil {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func serviceFromEntry(entry *zeroconf.ServiceEntry) *Service {
	return newService(entry.HostName, entry.Port, entry.Text, entryAddresses(entry))
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// newService builds a Service from the parts of a DNS-SD answer, or
// returns nil if the TXT records are not those of a farmhub device.
func newService(host string, port int, text []string, addrs []string) *Service {
	info, err := DecodeTXT(StringsToTXTRecords(text))
	if err != nil {
		return nil
	}
	info.Port = uint16(port)
	return &Service{
		DeviceInfo: *info,
		Host:       host,
		Addresses:  addrs,
	}
}

// mergeAddresses adds new addresses to existing list, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, addr := range existing {
		seen[addr] = true
	}
	for _, addr := range added {
		if !seen[addr] {
			existing = append(existing, addr)
			seen[addr] = true
		}
	}
	return existing
}

// removeAddresses drops gone from addresses.
func removeAddresses(addresses, gone []string) []string {
	toRemove := make(map[string]bool, len(gone))
	for _, addr := range gone {
		toRemove[addr] = true
	}
	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if !toRemove[addr] {
			result = append(result, addr)
		}
	}
	return result
}
