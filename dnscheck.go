package dnspipe

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/miekg/dns"
)

// Lookuper answers DNS address queries for the default change detection path.
// Implementations return the decoded addresses of every record of the
// requested type, or an empty slice when the name has none.
type Lookuper interface {
	LookupAddrs(ctx context.Context, name string, rrtype uint16) ([]netip.Addr, error)
}

// CheckAgainstDNS is the default change detection policy for updaters whose
// registrar has no better way to read its own state:
// resolve hostname for the record type matching the candidate's family,
// and report an update as needed when no record of that type exists or any
// existing record decodes to a different address.
//
// Registrars with an API that can read the authoritative state directly
// should use it instead; public DNS is never as timely an answer.
func CheckAgainstDNS(ctx context.Context, l Lookuper, hostname string, addr AddressUpdate) (bool, error) {
	rrtype, ok := addr.RecordType()
	if !ok {
		return false, userErrorf("unsupported address family %s for %s", addr.Family, hostname)
	}
	found, err := l.LookupAddrs(ctx, hostname, rrtype)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", hostname, err)
	}
	if len(found) == 0 {
		return true, nil
	}
	for _, a := range found {
		if a.Unmap() != addr.Addr {
			return true, nil
		}
	}
	return false, nil
}

const resolvConfPath = "/etc/resolv.conf"

// SystemLookuper resolves names through the nameservers configured for the host.
func SystemLookuper() Lookuper {
	return &systemLookuper{confPath: resolvConfPath}
}

type systemLookuper struct {
	client   dns.Client
	confPath string
}

func (l *systemLookuper) LookupAddrs(ctx context.Context, name string, rrtype uint16) ([]netip.Addr, error) {
	conf, err := dns.ClientConfigFromFile(l.confPath)
	if err != nil {
		return nil, fmt.Errorf("reading resolver config: %w", err)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), rrtype)

	var lastErr error
	for _, server := range conf.Servers {
		r, _, err := l.client.ExchangeContext(ctx, m, net.JoinHostPort(server, conf.Port))
		if err != nil {
			lastErr = err
			continue
		}
		if r.Rcode != dns.RcodeSuccess && r.Rcode != dns.RcodeNameError {
			lastErr = fmt.Errorf("server %s answered %s for %s", server, dns.RcodeToString[r.Rcode], name)
			continue
		}
		return decodeAddrs(r.Answer, rrtype), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no nameservers configured in %s", l.confPath)
	}
	return nil, lastErr
}

func decodeAddrs(answers []dns.RR, rrtype uint16) []netip.Addr {
	var out []netip.Addr
	for _, rr := range answers {
		if rr.Header().Rrtype != rrtype {
			continue
		}
		var ip net.IP
		switch rec := rr.(type) {
		case *dns.A:
			ip = rec.A
		case *dns.AAAA:
			ip = rec.AAAA
		default:
			continue
		}
		if a, ok := netip.AddrFromSlice(ip); ok {
			out = append(out, a.Unmap())
		}
	}
	return out
}

// dnsNamesEqual compares two domain names the way the DNS does:
// case-insensitively and ignoring a trailing root dot.
func dnsNamesEqual(a, b string) bool {
	return dns.CanonicalName(a) == dns.CanonicalName(b)
}
