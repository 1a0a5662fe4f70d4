package dnspipe

import (
	"context"
)

// newStaticSource builds a source that always reports a fixed list of
// addresses. Useful for hosts whose address is known out of band,
// and for trying out subscription expressions.
func newStaticSource(name string, cfg SourceConfig) (Provider, error) {
	if len(cfg.Addresses) == 0 {
		return nil, userErrorf("static source %q requires at least one address", name)
	}
	updates := make([]AddressUpdate, 0, len(cfg.Addresses))
	for _, s := range cfg.Addresses {
		u, err := ParseAddressUpdate(s)
		if err != nil {
			return nil, userErrorf("static source %q: address %q: %v", name, s, err)
		}
		updates = append(updates, u)
	}
	return staticSource(updates), nil
}

type staticSource []AddressUpdate

func (s staticSource) Addresses(context.Context) ([]AddressUpdate, error) {
	out := make([]AddressUpdate, len(s))
	copy(out, s)
	return out, nil
}
