package machine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/datamill-io/datamill/internal/codec"
)

// Module is the interface built-in machine collections implement to be
// registered as a unit.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered machine specs, meta-machine chains and
// target type codecs for one engine instance. It is an explicit value
// owned by the embedding application, not a hidden global.
type Registry struct {
	specs    map[string]*Spec
	metas    map[string]*MetaSpec
	codecs   map[string]codec.Codec
	handlers map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs:    map[string]*Spec{},
		metas:    map[string]*MetaSpec{},
		codecs:   map[string]codec.Codec{},
		handlers: map[string]Func{},
	}
}

// Register adds a machine spec. Registering an invalid spec or a duplicate
// name is a programmer error.
func (r *Registry) Register(s *Spec) {
	if err := s.Validate(); err != nil {
		panic(err)
	}
	if _, exists := r.specs[s.Name]; exists {
		panic(fmt.Sprintf("machine %q already registered", s.Name))
	}
	if _, exists := r.metas[s.Name]; exists {
		panic(fmt.Sprintf("name %q already registered as a meta-machine", s.Name))
	}
	slog.Debug("Registering machine.", "name", s.Name)
	r.specs[s.Name] = s
}

// RegisterMeta adds a meta-machine chain under its own name.
func (r *Registry) RegisterMeta(m *MetaSpec) {
	if err := m.Validate(); err != nil {
		panic(err)
	}
	if _, exists := r.metas[m.Name]; exists {
		panic(fmt.Sprintf("meta-machine %q already registered", m.Name))
	}
	if _, exists := r.specs[m.Name]; exists {
		panic(fmt.Sprintf("name %q already registered as a machine", m.Name))
	}
	slog.Debug("Registering meta-machine.", "name", m.Name, "stages", len(m.Stages))
	r.metas[m.Name] = m
}

// RegisterHandler publishes a bare processing function under a name, for
// manifest-declared machines to bind to.
func (r *Registry) RegisterHandler(name string, fn Func) {
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler %q already registered", name))
	}
	slog.Debug("Registering handler.", "name", name)
	r.handlers[name] = fn
}

// Handlers returns the published handler functions by name.
func (r *Registry) Handlers() map[string]Func {
	out := make(map[string]Func, len(r.handlers))
	for k, v := range r.handlers {
		out[k] = v
	}
	return out
}

// RegisterCodec binds a codec to a target type name.
func (r *Registry) RegisterCodec(typeName string, c codec.Codec) {
	if _, exists := r.codecs[typeName]; exists {
		panic(fmt.Sprintf("codec for target type %q already registered", typeName))
	}
	r.codecs[typeName] = c
}

// Lookup finds a plain machine spec by name.
func (r *Registry) Lookup(name string) (*Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Stages resolves a registered name into its ordered stage list: a plain
// machine is a single stage, a meta-machine expands to its chain.
func (r *Registry) Stages(name string) ([]*Spec, error) {
	if s, ok := r.specs[name]; ok {
		return []*Spec{s}, nil
	}
	if m, ok := r.metas[name]; ok {
		return m.Stages, nil
	}
	return nil, fmt.Errorf("unknown machine %q", name)
}

// Codecs returns the registered target type codecs.
func (r *Registry) Codecs() map[string]codec.Codec {
	out := make(map[string]codec.Codec, len(r.codecs))
	for k, v := range r.codecs {
		out[k] = v
	}
	return out
}

// Names lists all registered machine and meta-machine names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs)+len(r.metas))
	for name := range r.specs {
		names = append(names, name)
	}
	for name := range r.metas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
