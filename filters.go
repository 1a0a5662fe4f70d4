package dnspipe

import (
	"fmt"
	"sort"
	"strconv"
)

// FilterConstructor builds a filter from the literal string arguments that
// appeared in a subscription expression.
// Constructors must validate their arguments and fail here,
// at wiring time, rather than when the filter first runs.
type FilterConstructor func(args ...string) (Filter, error)

func newFamilyFilter(family Family) FilterConstructor {
	return func(args ...string) (Filter, error) {
		if len(args) != 0 {
			return nil, fmt.Errorf("%s filter takes no arguments", family)
		}
		return FilterFunc(func(addresses []AddressUpdate) []AddressUpdate {
			var out []AddressUpdate
			for _, a := range addresses {
				if a.Family == family {
					out = append(out, a)
				}
			}
			return out
		}), nil
	}
}

// newPrivateFilter keeps only addresses inside the designated private-use
// blocks for their family. Addresses that are not IPv4 or IPv6 are excluded.
func newPrivateFilter(args ...string) (Filter, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("private filter takes no arguments")
	}
	return FilterFunc(func(addresses []AddressUpdate) []AddressUpdate {
		var out []AddressUpdate
		for _, a := range addresses {
			if a.Family != FamilyIPv4 && a.Family != FamilyIPv6 {
				continue
			}
			if a.Addr.IsPrivate() {
				out = append(out, a)
			}
		}
		return out
	}), nil
}

// newPublicFilter keeps only globally routable IPv4 or IPv6 addresses.
func newPublicFilter(args ...string) (Filter, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("public filter takes no arguments")
	}
	return FilterFunc(func(addresses []AddressUpdate) []AddressUpdate {
		var out []AddressUpdate
		for _, a := range addresses {
			if a.Family != FamilyIPv4 && a.Family != FamilyIPv6 {
				continue
			}
			if a.isGlobal() {
				out = append(out, a)
			}
		}
		return out
	}), nil
}

// newNthFilter selects the single address at the given index.
// Negative indices count from the end of the list.
// An index outside the list produces an empty result.
func newNthFilter(args ...string) (Filter, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("nth filter requires exactly one argument, got %d", len(args))
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("nth filter index %q is not an integer", args[0])
	}
	return nthFilter(index), nil
}

func nthFilter(index int) Filter {
	return FilterFunc(func(addresses []AddressUpdate) []AddressUpdate {
		i := index
		if i < 0 {
			i += len(addresses)
		}
		if i < 0 || i >= len(addresses) {
			return nil
		}
		return []AddressUpdate{addresses[i]}
	})
}

func newFirstFilter(args ...string) (Filter, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("first filter takes no arguments")
	}
	return nthFilter(0), nil
}

func newLastFilter(args ...string) (Filter, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("last filter takes no arguments")
	}
	return nthFilter(-1), nil
}

// newSortedFilter sorts addresses by their binary value, smallest first.
// IPv4 addresses sort before IPv6 addresses, and addresses of any other
// family go to the end while keeping their relative order.
func newSortedFilter(args ...string) (Filter, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("sorted filter takes no arguments")
	}
	return FilterFunc(func(addresses []AddressUpdate) []AddressUpdate {
		out := make([]AddressUpdate, len(addresses))
		copy(out, addresses)
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i], out[j]
			if a.Family.rank() == 2 && b.Family.rank() == 2 {
				// Addresses without a comparable binary value keep their
				// relative order at the end of the list.
				return false
			}
			return a.Compare(b) < 0
		})
		return out
	}), nil
}
