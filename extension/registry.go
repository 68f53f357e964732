package extension

import (
	"errors"
	"fmt"

	"pkt.systems/pslog"
)

var (
	ErrProtectedProvider = errors.New("built-in provider cannot be removed")
	ErrUnknownProvider   = errors.New("provider index out of range")
)

type entry struct {
	p       Provider
	enabled bool
}

// Registry is an ordered list of providers, each with an enabled flag.
// Built-in providers occupy the leading positions and cannot be removed.
//
// Hooks run synchronously on the caller's goroutine. A hook that panics is
// recovered, logged, and counted as contributing nothing.
type Registry struct {
	entries  []entry
	builtins int
	log      pslog.Logger
}

type Option func(*Registry)

func WithLogger(log pslog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry returns a registry whose protected leading entries are
// builtins, all enabled.
func NewRegistry(builtins []Provider, opts ...Option) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	for _, p := range builtins {
		r.entries = append(r.entries, entry{p: p, enabled: true})
	}
	r.builtins = len(r.entries)
	return r
}

func (r *Registry) Len() int      { return len(r.entries) }
func (r *Registry) Builtins() int { return r.builtins }

// Register appends p, enabled, and returns its index.
func (r *Registry) Register(p Provider) int {
	r.entries = append(r.entries, entry{p: p, enabled: true})
	if r.log != nil {
		r.log.Info("provider registered", "name", p.Name(), "version", p.Version(), "index", len(r.entries)-1)
	}
	return len(r.entries) - 1
}

// SetEnabled flips the flag at i. Out of range is a no-op.
func (r *Registry) SetEnabled(i int, enabled bool) {
	if i < 0 || i >= len(r.entries) {
		return
	}
	r.entries[i].enabled = enabled
}

// Enabled reports the flag at i; false when out of range.
func (r *Registry) Enabled(i int) bool {
	if i < 0 || i >= len(r.entries) {
		return false
	}
	return r.entries[i].enabled
}

func (r *Registry) Provider(i int) (Provider, bool) {
	if i < 0 || i >= len(r.entries) {
		return nil, false
	}
	return r.entries[i].p, true
}

// IndexOf returns the index of the first provider called name.
func (r *Registry) IndexOf(name string) (int, bool) {
	for i, e := range r.entries {
		if e.p.Name() == name {
			return i, true
		}
	}
	return -1, false
}

// Unregister removes the provider at i together with its flag.
func (r *Registry) Unregister(i int) error {
	if i < 0 || i >= len(r.entries) {
		return fmt.Errorf("%w: %d", ErrUnknownProvider, i)
	}
	if i < r.builtins {
		return fmt.Errorf("%w: %s", ErrProtectedProvider, r.entries[i].p.Name())
	}
	name := r.entries[i].p.Name()
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	if r.log != nil {
		r.log.Info("provider unregistered", "name", name)
	}
	return nil
}

// ActiveTheme returns the theme of the first enabled provider that has one.
func (r *Registry) ActiveTheme() (Theme, bool) {
	for _, e := range r.entries {
		if !e.enabled {
			continue
		}
		t, ok := e.p.(Themer)
		if !ok {
			continue
		}
		var (
			theme Theme
			has   bool
		)
		r.guard(e.p, "theme", func() { theme, has = t.Theme() })
		if has {
			return theme, true
		}
	}
	return Theme{}, false
}

// CollectCompletions concatenates the suggestions of every enabled provider
// in registration order. Duplicates are kept.
func (r *Registry) CollectCompletions(snap Snapshot, cursor int) []string {
	var out []string
	for _, e := range r.entries {
		if !e.enabled {
			continue
		}
		c, ok := e.p.(Completer)
		if !ok {
			continue
		}
		var got []string
		r.guard(e.p, "completions", func() { got = c.Completions(snap, cursor) })
		out = append(out, got...)
	}
	return out
}

// Highlight runs every enabled highlighter against snap.
func (r *Registry) Highlight(snap Snapshot, p Painter) {
	for _, e := range r.entries {
		if !e.enabled {
			continue
		}
		h, ok := e.p.(Highlighter)
		if !ok {
			continue
		}
		r.guard(e.p, "highlight", func() { h.Highlight(snap, p) })
	}
}

func (r *Registry) guard(p Provider, hook string, fn func()) {
	defer func() {
		if v := recover(); v != nil && r.log != nil {
			r.log.Error("provider panicked", "name", p.Name(), "hook", hook, "panic", fmt.Sprint(v))
		}
	}()
	fn()
}

// Status describes one registry entry for a provider manager view.
type Status struct {
	Index       int
	Name        string
	Version     string
	Description string
	Enabled     bool
	Builtin     bool
}

func (r *Registry) Statuses() []Status {
	out := make([]Status, len(r.entries))
	for i, e := range r.entries {
		out[i] = Status{
			Index:       i,
			Name:        e.p.Name(),
			Version:     e.p.Version(),
			Description: e.p.Description(),
			Enabled:     e.enabled,
			Builtin:     i < r.builtins,
		}
	}
	return out
}
