package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// Registry is the static, read-only provider table. It is built once at
// start-up and safe for concurrent use because it is never mutated.
type Registry struct {
	descriptors []Descriptor
	byID        map[string]int
	recommended map[Kind]string
}

// NewRegistry validates and freezes the descriptors. recommended maps a kind
// to the provider preferred by default; entries naming providers that are not
// registered are ignored so deployments can list a provider whose key is
// absent.
func NewRegistry(descriptors []Descriptor, recommended map[Kind]string) (*Registry, error) {
	reg := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		byID:        make(map[string]int, len(descriptors)),
		recommended: make(map[Kind]string),
	}
	for _, d := range descriptors {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, errors.New("registry: provider id is required")
		}
		if id != d.ID {
			return nil, fmt.Errorf("registry: provider id %q has surrounding whitespace", d.ID)
		}
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("registry: provider %q has unsupported kind %q", id, d.Kind)
		}
		if d.Backend == nil {
			return nil, fmt.Errorf("registry: provider %q has no backend", id)
		}
		if _, dup := reg.byID[id]; dup {
			return nil, fmt.Errorf("registry: duplicate provider id %q", id)
		}
		d.Capabilities = append([]string(nil), d.Capabilities...)
		reg.byID[id] = len(reg.descriptors)
		reg.descriptors = append(reg.descriptors, d)
	}
	for kind, id := range recommended {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		idx, ok := reg.byID[id]
		if !ok {
			continue
		}
		if reg.descriptors[idx].Kind != kind {
			return nil, fmt.Errorf("registry: recommended %s provider %q serves %s", kind, id, reg.descriptors[idx].Kind)
		}
		reg.recommended[kind] = id
	}
	return reg, nil
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.descriptors)
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	idx, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx], true
}

// ForKind returns the providers serving kind in registration order.
func (r *Registry) ForKind(kind Kind) []Descriptor {
	if r == nil {
		return nil
	}
	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// All returns every descriptor in registration order.
func (r *Registry) All() []Descriptor {
	if r == nil {
		return nil
	}
	return append([]Descriptor(nil), r.descriptors...)
}

// Recommended returns the default provider for kind, if one is registered.
func (r *Registry) Recommended(kind Kind) (string, bool) {
	if r == nil {
		return "", false
	}
	id, ok := r.recommended[kind]
	return id, ok
}
