package dnspipe

import (
	"context"
)

// Updater represents one configuration of a dynamic DNS service:
// its own credentials, its own target hostname,
// and the subscriptions that feed it candidate addresses.
// An updater is generally responsible for a single name within a single service.
//
// A new registrar integration implements this interface and registers a
// constructor for it with Registry.RegisterUpdaterType.
type Updater interface {
	// Name is the instance name given to this updater in the configuration.
	Name() string

	// Hostname is the DNS name this updater manages.
	Hostname() string

	// Subscribe attaches a provider chain to this updater.
	// Subscriptions are attached once during startup wiring;
	// nothing is scheduled as part of this call.
	Subscribe(p Provider)

	// Subscriptions returns the attached provider chains in the order
	// they were subscribed.
	Subscriptions() []Provider

	// NeedsUpdate reports whether the managed name currently holds a
	// different address than addr and therefore needs an update.
	// It returns an error when the answer cannot be determined.
	NeedsUpdate(ctx context.Context, addr AddressUpdate) (bool, error)

	// Update asks the service to set the managed name to addr.
	// It does not check whether the change is necessary;
	// that is NeedsUpdate's job.
	Update(ctx context.Context, addr AddressUpdate) error
}

// SubscriptionList implements the subscription bookkeeping half of Updater
// and is meant to be embedded by registrar implementations.
type SubscriptionList struct {
	providers []Provider
}

func (s *SubscriptionList) Subscribe(p Provider) {
	s.providers = append(s.providers, p)
}

func (s *SubscriptionList) Subscriptions() []Provider {
	return s.providers
}
