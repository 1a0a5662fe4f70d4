package dnspipe

import (
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// Family identifies the address family of an AddressUpdate.
type Family uint8

const (
	FamilyOther Family = iota
	FamilyIPv4
	FamilyIPv6
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyOther:
		return "other"
	default:
		return fmt.Sprintf("unknown_%d", uint8(f))
	}
}

// rank orders families for sorting: IPv4 first, then IPv6, then everything else.
func (f Family) rank() int {
	switch f {
	case FamilyIPv4:
		return 0
	case FamilyIPv6:
		return 1
	default:
		return 2
	}
}

// AddressUpdate is one address reported by a provider during a check cycle.
// The address it carries may or may not have actually changed;
// providers report what they currently see and reconciliation decides what to do with it.
//
// AddressUpdate values are immutable and comparable;
// two updates are equal when their family and address match.
type AddressUpdate struct {
	Family Family
	Addr   netip.Addr
}

// NewAddressUpdate builds an update from addr,
// classifying the family from the address itself.
// IPv4-mapped IPv6 addresses are unmapped and treated as IPv4.
func NewAddressUpdate(addr netip.Addr) AddressUpdate {
	addr = addr.Unmap()
	switch {
	case addr.Is4():
		return AddressUpdate{Family: FamilyIPv4, Addr: addr}
	case addr.Is6():
		return AddressUpdate{Family: FamilyIPv6, Addr: addr}
	default:
		return AddressUpdate{Family: FamilyOther, Addr: addr}
	}
}

// ParseAddressUpdate parses s as an IP address and wraps it in an update.
func ParseAddressUpdate(s string) (AddressUpdate, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return AddressUpdate{}, fmt.Errorf("unable to parse IP: %w", err)
	}
	return NewAddressUpdate(addr), nil
}

func (u AddressUpdate) String() string {
	return u.Addr.String()
}

// RecordType returns the DNS resource record type that stores this kind of address.
// ok is false for families that have no corresponding record type.
func (u AddressUpdate) RecordType() (rrtype uint16, ok bool) {
	switch u.Family {
	case FamilyIPv4:
		return dns.TypeA, true
	case FamilyIPv6:
		return dns.TypeAAAA, true
	default:
		return dns.TypeNone, false
	}
}

// Compare orders updates by family rank (IPv4 before IPv6 before anything else),
// then by the numeric value of the address within a family.
// It returns -1, 0, or 1 in the manner of netip.Addr.Compare.
func (u AddressUpdate) Compare(v AddressUpdate) int {
	if ur, vr := u.Family.rank(), v.Family.rank(); ur != vr {
		if ur < vr {
			return -1
		}
		return 1
	}
	return u.Addr.Compare(v.Addr)
}

// isGlobal reports whether the address is globally routable,
// i.e. not reserved for private, loopback, link-local, multicast, or unspecified use.
func (u AddressUpdate) isGlobal() bool {
	a := u.Addr
	if !a.IsValid() {
		return false
	}
	switch {
	case a.IsPrivate(),
		a.IsLoopback(),
		a.IsLinkLocalUnicast(),
		a.IsLinkLocalMulticast(),
		a.IsMulticast(),
		a.IsUnspecified():
		return false
	}
	return true
}
