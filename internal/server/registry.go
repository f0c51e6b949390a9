package server

import "github.com/barriernet/barriernet/internal/screen"

// Registry is the live connection set, indexed by id and by the screen name
// each connection claimed in its HelloBack (§3 "Connection"). It is touched
// only from the reactor goroutine, so it carries no locking of its own.
type Registry struct {
	byID   map[ConnectionID]*Connection
	byName map[screen.Name]*Connection
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[ConnectionID]*Connection),
		byName: make(map[screen.Name]*Connection),
	}
}

// Add registers a connection under its id. It is not yet reachable by name
// until NameClaimed records the name it presented in HelloBack.
func (r *Registry) Add(c *Connection) {
	r.byID[c.ID] = c
}

// NameClaimed binds name to c, replacing any connection that previously
// claimed the same name. Callers are expected to have already closed or be
// about to close the rejected prior connection (EBSY, §4.3).
func (r *Registry) NameClaimed(c *Connection, name screen.Name) {
	c.Name = name
	r.byName[name] = c
}

// Remove drops a connection from both indices.
func (r *Registry) Remove(c *Connection) {
	delete(r.byID, c.ID)
	if existing, ok := r.byName[c.Name]; ok && existing == c {
		delete(r.byName, c.Name)
	}
}

// ByID looks up a connection by id.
func (r *Registry) ByID(id ConnectionID) (*Connection, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// ByName looks up a connection by the screen name it claimed.
func (r *Registry) ByName(name screen.Name) (*Connection, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// NameTaken reports whether name is already claimed by a live connection,
// the EBSY condition of §4.3.
func (r *Registry) NameTaken(name screen.Name) bool {
	_, ok := r.byName[name]
	return ok
}

// All returns every registered connection, for broadcast operations
// (CSEC, CALV).
func (r *Registry) All() []*Connection {
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	return len(r.byID)
}
