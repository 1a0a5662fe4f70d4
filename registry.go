package dnspipe

import (
	"fmt"
)

// SourceConstructor builds a named source instance from its config stanza.
type SourceConstructor func(name string, cfg SourceConfig) (Provider, error)

// UpdaterConstructor builds a named updater instance from its config stanza.
type UpdaterConstructor func(name string, cfg UpdaterConfig) (Updater, error)

// Registry is the static registration table that subscription expressions
// are resolved against. It maps source instance names to providers,
// filter type names to their constructors,
// and source/updater type names to the constructors used during config loading.
//
// The registry is a pure lookup table; it owns no other logic.
// Names are registered once during startup and never change afterwards.
type Registry struct {
	sources      map[string]Provider
	filters      map[string]FilterConstructor
	sourceTypes  map[string]SourceConstructor
	updaterTypes map[string]UpdaterConstructor
}

func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[string]Provider),
		filters:      make(map[string]FilterConstructor),
		sourceTypes:  make(map[string]SourceConstructor),
		updaterTypes: make(map[string]UpdaterConstructor),
	}
}

// DefaultRegistry returns a registry with every built-in filter,
// source type, and updater type already registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	// Registration can only fail on a name conflict,
	// which would be a programming error for the built-in set.
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(r.RegisterFilter("ipv4", newFamilyFilter(FamilyIPv4)))
	must(r.RegisterFilter("ipv6", newFamilyFilter(FamilyIPv6)))
	must(r.RegisterFilter("private", newPrivateFilter))
	must(r.RegisterFilter("public", newPublicFilter))
	must(r.RegisterFilter("nth", newNthFilter))
	must(r.RegisterFilter("first", newFirstFilter))
	must(r.RegisterFilter("last", newLastFilter))
	must(r.RegisterFilter("sorted", newSortedFilter))

	must(r.RegisterSourceType("interface", newInterfaceSource))
	must(r.RegisterSourceType("web", newWebSource))
	must(r.RegisterSourceType("static", newStaticSource))

	must(r.RegisterUpdaterType("cloudflare", newCloudflareUpdater))

	return r
}

// RegisterFilter associates a filter type name with its constructor.
func (r *Registry) RegisterFilter(name string, ctor FilterConstructor) error {
	if _, exists := r.filters[name]; exists {
		return fmt.Errorf("filter %q is already registered", name)
	}
	r.filters[name] = ctor
	return nil
}

// RegisterSourceType associates a source type name with its constructor.
func (r *Registry) RegisterSourceType(name string, ctor SourceConstructor) error {
	if _, exists := r.sourceTypes[name]; exists {
		return fmt.Errorf("source type %q is already registered", name)
	}
	r.sourceTypes[name] = ctor
	return nil
}

// RegisterUpdaterType associates an updater type name with its constructor.
func (r *Registry) RegisterUpdaterType(name string, ctor UpdaterConstructor) error {
	if _, exists := r.updaterTypes[name]; exists {
		return fmt.Errorf("updater type %q is already registered", name)
	}
	r.updaterTypes[name] = ctor
	return nil
}

// AddSource registers a fully-built source instance under the name that
// subscription expressions will refer to it by.
// Instance names share a namespace with filter type names;
// a source named like a filter would be unreachable from expressions.
func (r *Registry) AddSource(name string, p Provider) error {
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %q is already registered", name)
	}
	if _, exists := r.filters[name]; exists {
		return fmt.Errorf("source %q conflicts with a filter of the same name", name)
	}
	r.sources[name] = p
	return nil
}

func (r *Registry) source(name string) (Provider, bool) {
	p, ok := r.sources[name]
	return p, ok
}

func (r *Registry) filter(name string) (FilterConstructor, bool) {
	f, ok := r.filters[name]
	return f, ok
}

func (r *Registry) sourceType(name string) (SourceConstructor, bool) {
	c, ok := r.sourceTypes[name]
	return c, ok
}

func (r *Registry) updaterType(name string) (UpdaterConstructor, bool) {
	c, ok := r.updaterTypes[name]
	return c, ok
}
