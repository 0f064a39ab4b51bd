package hub

import "errors"

// ErrDuplicateRegistration is returned when a connection handle is
// registered twice without an intervening removal. Under a normal
// connection lifecycle this cannot happen and indicates a protocol
// violation by the transport layer.
var ErrDuplicateRegistration = errors.New("connection handle is already registered")

// Participant kinds.
const (
	KindHuman = "human"
	KindAgent = "agent"
)

// Participant is a registered human or agent connection. The Capabilities
// field is meaningful only for agents and is immutable for the connection's
// lifetime; ObserveMe is meaningful only for humans.
type Participant struct {
	ID           string
	Username     string
	Type         string
	Capabilities []string
	ObserveMe    bool
	Conn         Conn
}

// Registry tracks connected participants by connection handle. It is owned
// by the hub's event loop and needs no locking.
type Registry struct {
	humans map[string]*Participant
	agents map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{
		humans: make(map[string]*Participant),
		agents: make(map[string]*Participant),
	}
}

// Register stores a participant, failing with ErrDuplicateRegistration if
// the connection handle is already present in either kind.
func (r *Registry) Register(p *Participant) error {
	if _, ok := r.humans[p.ID]; ok {
		return ErrDuplicateRegistration
	}
	if _, ok := r.agents[p.ID]; ok {
		return ErrDuplicateRegistration
	}
	if p.Type == KindAgent {
		r.agents[p.ID] = p
	} else {
		r.humans[p.ID] = p
	}
	return nil
}

// Lookup returns the participant for a connection handle.
func (r *Registry) Lookup(id string) (*Participant, bool) {
	if p, ok := r.humans[id]; ok {
		return p, true
	}
	if p, ok := r.agents[id]; ok {
		return p, true
	}
	return nil, false
}

// Remove deletes and returns the participant for a connection handle.
// Removing an unregistered handle is a no-op.
func (r *Registry) Remove(id string) (*Participant, bool) {
	if p, ok := r.humans[id]; ok {
		delete(r.humans, id)
		return p, true
	}
	if p, ok := r.agents[id]; ok {
		delete(r.agents, id)
		return p, true
	}
	return nil, false
}

// Humans returns the connected human participants in no particular order.
func (r *Registry) Humans() []*Participant {
	out := make([]*Participant, 0, len(r.humans))
	for _, p := range r.humans {
		out = append(out, p)
	}
	return out
}

// Agents returns the connected agent participants in no particular order.
func (r *Registry) Agents() []*Participant {
	out := make([]*Participant, 0, len(r.agents))
	for _, p := range r.agents {
		out = append(out, p)
	}
	return out
}

// All returns humans followed by agents.
func (r *Registry) All() []*Participant {
	out := make([]*Participant, 0, len(r.humans)+len(r.agents))
	out = append(out, r.Humans()...)
	out = append(out, r.Agents()...)
	return out
}

func (r *Registry) HumanCount() int { return len(r.humans) }

func (r *Registry) AgentCount() int { return len(r.agents) }
