package dnspipe

import (
	"context"
)

// Provider is anything that can report the current set of addresses it represents.
//
// A call may involve a network request, system call, or other blocking operation,
// so providers accept a context.
// Providers should not cache results unless the underlying service requires it,
// for example to respect an external rate limit.
//
// Examples of providers include: an interface on the host,
// a public IP checker, and a filter bound to another provider.
type Provider interface {
	Addresses(ctx context.Context) ([]AddressUpdate, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx context.Context) ([]AddressUpdate, error)

func (f ProviderFunc) Addresses(ctx context.Context) ([]AddressUpdate, error) {
	return f(ctx)
}

// Filter narrows or reorders a list of address updates.
//
// Filters are pure: the same input and construction arguments always produce
// the same output, and the input slice is never modified.
// Problems with the input list itself ("no address at that index") are not errors;
// filters return an empty result instead.
type Filter interface {
	Apply(addresses []AddressUpdate) []AddressUpdate
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(addresses []AddressUpdate) []AddressUpdate

func (f FilterFunc) Apply(addresses []AddressUpdate) []AddressUpdate {
	return f(addresses)
}

// Bind turns a filter into a provider by attaching its input to the output of parent.
// Each Addresses call pulls parent first and then applies the filter,
// which is what allows filters to be chained all the way back to an original source.
func Bind(f Filter, parent Provider) Provider {
	return ProviderFunc(func(ctx context.Context) ([]AddressUpdate, error) {
		addrs, err := parent.Addresses(ctx)
		if err != nil {
			return nil, err
		}
		return f.Apply(addrs), nil
	})
}
