package dnspipe

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Action describes what happened to one candidate address during a cycle.
type Action uint8

const (
	// ActionUnchanged means the registrar already held the address.
	ActionUnchanged Action = iota
	// ActionUpdated means the registrar was told the new address.
	ActionUpdated
	// ActionFailed means the check or the update itself returned an error.
	ActionFailed
)

func (a Action) String() string {
	switch a {
	case ActionUnchanged:
		return "unchanged"
	case ActionUpdated:
		return "updated"
	case ActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-address result of a reconciliation cycle.
type Outcome struct {
	Addr   AddressUpdate
	Action Action
	Err    error
}

// RunCycle performs one reconciliation cycle for the updater:
// it pulls every subscription, narrows the candidates to at most one address
// per family, and pushes each surviving address that the registrar does not
// already hold.
//
// An error while checking or pushing one address never aborts the others;
// it is recorded in that address's outcome and the cycle moves on.
// Subscriptions are pulled, and addresses processed, in configured order,
// so outcomes and log lines are deterministic for a given input.
func RunCycle(ctx context.Context, u Updater) []Outcome {
	logger := log.With().Str("updater", u.Name()).Logger()
	logger.Debug().Str("hostname", u.Hostname()).Msg("starting update cycle")

	var all []AddressUpdate
	for i, sub := range u.Subscriptions() {
		addrs, err := sub.Addresses(ctx)
		if err != nil {
			// A dead source is a transient condition;
			// the remaining subscriptions may still have usable addresses
			// and the next cycle retries naturally.
			logger.Error().Err(err).Int("subscription", i).Msg("subscription failed to provide addresses")
			continue
		}
		all = append(all, addrs...)
	}
	logger.Debug().Int("count", len(all)).Msg("addresses received from subscriptions")

	candidates := dedupByFamily(all)
	if len(candidates) != len(all) {
		logger.Warn().Msg("some addresses were removed; subscriptions provided multiple within the same family")
	}

	outcomes := make([]Outcome, 0, len(candidates))
	for _, addr := range candidates {
		outcomes = append(outcomes, applyOne(ctx, u, addr, logger))
	}

	logger.Debug().Msg("update cycle finished")
	return outcomes
}

// dedupByFamily keeps at most one address per family.
// The first address seen for a family wins,
// unless a later one is globally routable while the kept one is not.
// Relative order of the surviving addresses follows first appearance.
func dedupByFamily(all []AddressUpdate) []AddressUpdate {
	kept := make(map[Family]int, 2)
	var out []AddressUpdate
	for _, a := range all {
		i, seen := kept[a.Family]
		if !seen {
			kept[a.Family] = len(out)
			out = append(out, a)
			continue
		}
		if a.isGlobal() && !out[i].isGlobal() {
			out[i] = a
		}
	}
	return out
}

func applyOne(ctx context.Context, u Updater, addr AddressUpdate, logger zerolog.Logger) Outcome {
	needs, err := u.NeedsUpdate(ctx, addr)
	if err != nil {
		logger.Error().Err(err).Stringer("address", addr.Addr).Msg("unable to determine whether address needs updating")
		return Outcome{Addr: addr, Action: ActionFailed, Err: err}
	}
	if !needs {
		logger.Debug().Stringer("address", addr.Addr).Msg("update not needed")
		return Outcome{Addr: addr, Action: ActionUnchanged}
	}
	if err := u.Update(ctx, addr); err != nil {
		logger.Error().Err(err).Stringer("address", addr.Addr).Msg("update failed")
		return Outcome{Addr: addr, Action: ActionFailed, Err: err}
	}
	logger.Info().Stringer("address", addr.Addr).Str("hostname", u.Hostname()).Msg("address updated")
	return Outcome{Addr: addr, Action: ActionUpdated}
}
