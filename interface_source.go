package dnspipe

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
)

// newInterfaceSource builds a source that reports the addresses assigned to
// a network interface on this host, or to all interfaces when none is named.
// Loopback addresses are always skipped.
func newInterfaceSource(_ string, cfg SourceConfig) (Provider, error) {
	return interfaceSource{iface: cfg.Iface}, nil
}

type interfaceSource struct {
	iface string
}

func (s interfaceSource) Addresses(ctx context.Context) ([]AddressUpdate, error) {
	var addrs []net.Addr
	if s.iface == "" {
		var err error
		addrs, err = net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting interface addresses: %w", err)
		}
	} else {
		iface, err := net.InterfaceByName(s.iface)
		if err != nil {
			return nil, fmt.Errorf("error getting interface %s by name: %w", s.iface, err)
		}
		addrs, err = iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("error looking up addresses for interface %s: %w", s.iface, err)
		}
	}

	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	var out []AddressUpdate
	var mErr *multierror.Error
	for _, addr := range addrs {
		ip, err := parseInterfaceAddr(addr.String())
		if err != nil {
			mErr = multierror.Append(mErr, err)
			continue
		}
		if ip.IsLoopback() {
			continue
		}
		out = append(out, NewAddressUpdate(ip))
	}
	if err := mErr.ErrorOrNil(); err != nil {
		log.Warn().Err(err).Str("iface", s.iface).Msg("some interface addresses could not be parsed")
	}
	return out, nil
}

// parseInterfaceAddr parses one OS-reported interface address.
// The OS reports link-local IPv6 addresses with a zone attached
// (fe80::1%eth0), which DNS records have no use for, so the zone is dropped.
func parseInterfaceAddr(s string) (netip.Addr, error) {
	if i := strings.IndexByte(s, '%'); i >= 0 {
		if slash := strings.IndexByte(s, '/'); slash > i {
			s = s[:i] + s[slash:]
		} else {
			s = s[:i]
		}
	}
	if strings.Contains(s, "/") {
		prefix, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("error parsing local ip %s: %w", s, err)
		}
		return prefix.Addr(), nil
	}
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing local ip %s: %w", s, err)
	}
	return ip, nil
}
