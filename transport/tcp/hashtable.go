package tcp

import "sync"

// EndpointRegistry is the out-of-scope socket hash table of spec sections 3
// and 5: "Hash tables (out of scope) are expected to provide their own
// locking; the core enters/leaves them via opaque hash_insert/hash_remove
// calls at well-defined FSM transitions." Dial/Listen (api.go) and child
// allocation (listener.go) call Insert when a socket is allocated, and
// free (socket.go) calls Remove on every path that frees one
type EndpointRegistry interface {
	Insert(id EndpointTuple, s *Socket)
	Remove(id EndpointTuple)
	Lookup(id EndpointTuple) (*Socket, bool)
}

// memRegistry is a minimal, self-locking EndpointRegistry, grounded on the
// small, single-purpose manager style of the teacher's ports.PortManager
// (transport/tcp used to reach a port/endpoint table exactly this way via
// stack.RegisterTransportEndpoint)
type memRegistry struct {
	mu      sync.Mutex
	sockets map[EndpointTuple]*Socket
}

// NewMemRegistry returns an in-memory EndpointRegistry suitable for tests
// and for single-process deployments without an external connection table
func NewMemRegistry() EndpointRegistry {
	return &memRegistry{sockets: make(map[EndpointTuple]*Socket)}
}

func (r *memRegistry) Insert(id EndpointTuple, s *Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[id] = s
}

func (r *memRegistry) Remove(id EndpointTuple) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sockets, id)
}

func (r *memRegistry) Lookup(id EndpointTuple) (*Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sockets[id]
	return s, ok
}
