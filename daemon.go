package dnspipe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Build wires the configuration into running objects:
// it constructs every source, registers each under its instance name,
// constructs every updater, and attaches the subscription provider graphs.
//
// Any error here is fatal to startup;
// a misconfigured pipeline is never partially usable.
func (c *Config) Build(reg *Registry) ([]Updater, error) {
	for _, name := range sortedKeys(c.Sources) {
		sc := c.Sources[name]
		ctor, ok := reg.sourceType(sc.Type)
		if !ok {
			return nil, userErrorf("could not find a source with the type %q", sc.Type)
		}
		src, err := ctor(name, sc)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", name, err)
		}
		if err := reg.AddSource(name, src); err != nil {
			return nil, err
		}
	}

	var updaters []Updater
	for _, name := range sortedKeys(c.Updaters) {
		uc := c.Updaters[name]
		ctor, ok := reg.updaterType(uc.Type)
		if !ok {
			return nil, userErrorf("could not find an updater with the type %q", uc.Type)
		}
		u, err := ctor(name, uc)
		if err != nil {
			return nil, err
		}
		for _, expr := range uc.Subscriptions {
			p, err := BuildProvider(expr, reg)
			if err != nil {
				return nil, fmt.Errorf("updater %q: subscription %q: %w", name, expr, err)
			}
			u.Subscribe(p)
		}
		updaters = append(updaters, u)
	}
	return updaters, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RunDaemon runs reconciliation cycles for every updater at the given
// interval until ctx is cancelled.
//
// Each updater gets its own loop: cycles for one updater run strictly one
// after another and never overlap, while distinct updaters proceed
// concurrently since they share no state.
func RunDaemon(ctx context.Context, updaters []Updater, interval time.Duration) error {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, u := range updaters {
		u := u
		g.Go(func() error {
			RunCycle(ctx, u)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					log.Debug().Str("updater", u.Name()).Msg("stopping update loop")
					return nil
				case <-ticker.C:
					RunCycle(ctx, u)
				}
			}
		})
	}
	return g.Wait()
}
