// Package udp carries the unreliable fast path: the identity to endpoint
// registry and the datagram listener.
package udp

import (
	"net/netip"
	"sort"
)

// Endpoint is the last address a player's datagrams arrived from.
type Endpoint struct {
	ID   uint32
	Addr netip.AddrPort
}

// Outgoing is one datagram addressed to one endpoint.
type Outgoing struct {
	Addr    netip.AddrPort
	Payload []byte
}

// Registry maps player identities to their last-seen UDP address. It is not
// safe for concurrent use; the world mutates it under its own lock.
type Registry struct {
	endpoints map[uint32]netip.AddrPort
}

func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[uint32]netip.AddrPort)}
}

// Register records addr for id and reports whether it changed.
func (r *Registry) Register(id uint32, addr netip.AddrPort) bool {
	if !addr.IsValid() {
		return false
	}
	prev, ok := r.endpoints[id]
	r.endpoints[id] = addr
	return !ok || prev != addr
}

func (r *Registry) Remove(id uint32) {
	delete(r.endpoints, id)
}

func (r *Registry) Lookup(id uint32) (netip.AddrPort, bool) {
	addr, ok := r.endpoints[id]
	return addr, ok
}

func (r *Registry) Len() int {
	return len(r.endpoints)
}

// Endpoints lists registered endpoints ordered by identity.
func (r *Registry) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(r.endpoints))
	for id, addr := range r.endpoints {
		out = append(out, Endpoint{ID: id, Addr: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
