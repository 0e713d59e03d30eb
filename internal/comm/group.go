package comm

import "sync"

// Method implements routing for one network within a group (spec §4.E).
// The only method this module ships is central; direct is named in the
// spec as admissible without interface changes but is not implemented
// since nothing in scope here uses a non-star topology.
type Method interface {
	SendSingle(r *Registry, g *Group, conn ConnID, stanza Stanza)
	SendAll(r *Registry, g *Group, except ConnID, stanza Stanza)
}

// Group is one communication group: a name, a publisher, its members, and
// the target receiving dispatched stanzas (spec §4.E).
type Group struct {
	Name      string
	Publisher ConnID
	// IsPublisherLocal is true when this process is the star center for
	// the group (the server, for every session it hosts); false when this
	// process only joined a remote publisher's group.
	IsPublisherLocal bool
	Target           Target
	method           Method

	mu      sync.RWMutex
	members map[ConnID]struct{}
}

func NewGroup(name string, publisher ConnID, isPublisherLocal bool, target Target) *Group {
	return &Group{
		Name:             name,
		Publisher:        publisher,
		IsPublisherLocal: isPublisherLocal,
		Target:           target,
		method:           CentralMethod{},
		members:          make(map[ConnID]struct{}),
	}
}

func (g *Group) AddMember(conn ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[conn] = struct{}{}
}

func (g *Group) RemoveMember(conn ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members, conn)
}

func (g *Group) Members() []ConnID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]ConnID, 0, len(g.members))
	for c := range g.members {
		out = append(out, c)
	}
	return out
}

// SendSingle unicasts stanza to conn via the group's method.
func (g *Group) SendSingle(r *Registry, conn ConnID, stanza Stanza) {
	g.method.SendSingle(r, g, conn, stanza)
}

// SendAll multicasts stanza to every member except except, via the
// group's method.
func (g *Group) SendAll(r *Registry, except ConnID, stanza Stanza) {
	g.method.SendAll(r, g, except, stanza)
}

// CentralMethod is the star-topology method from spec §4.E: the publisher
// is the hub. At the publisher, send-all multicasts directly; at a
// non-publisher member, both send-single and send-all funnel through the
// publisher connection, which is responsible for re-broadcasting — this
// is what gives the group a total order at the cost of one extra hop.
type CentralMethod struct{}

func (CentralMethod) SendSingle(r *Registry, g *Group, conn ConnID, stanza Stanza) {
	if g.IsPublisherLocal {
		r.enqueue(conn, g.Name, stanza)
		return
	}
	r.enqueue(g.Publisher, g.Name, stanza)
}

func (CentralMethod) SendAll(r *Registry, g *Group, except ConnID, stanza Stanza) {
	if !g.IsPublisherLocal {
		r.enqueue(g.Publisher, g.Name, stanza)
		return
	}
	for _, m := range g.Members() {
		if m == except {
			continue
		}
		r.enqueue(m, g.Name, stanza)
	}
}
