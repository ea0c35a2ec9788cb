// internal/channels/registry.go
package channels

// Registry maps a subscription's channel name to its implementation. The
// set of channels is closed and assembled at startup.
type Registry struct {
	byName map[string]Notifier
}

func NewRegistry(notifiers ...Notifier) *Registry {
	r := &Registry{byName: make(map[string]Notifier, len(notifiers))}
	for _, n := range notifiers {
		r.byName[n.Name()] = n
	}
	return r
}

func (r *Registry) Register(n Notifier) {
	r.byName[n.Name()] = n
}

func (r *Registry) Get(name string) (Notifier, bool) {
	n, ok := r.byName[name]
	return n, ok
}

// GetInteractive returns the channel's interactive capability when it has
// one.
func (r *Registry) GetInteractive(name string) (Interactive, bool) {
	n, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	i, ok := n.(Interactive)
	return i, ok
}

// Names lists the registered channel names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
