// Package registry tracks which connections are members of which channels
// and computes broadcast targets for the router.
package registry

import (
	"sync"

	"github.com/samber/lo"
)

// Connection is the registry's view of a peer connection. Identity is the
// value itself; two handles are the same member only if they compare equal.
type Connection interface {
	ID() string
	IsOpen() bool
	Send(payload []byte) error
}

// JoinResult describes a channel right after a join.
type JoinResult struct {
	Size   int
	Others []Connection
}

// Departure is one channel a leaving connection was removed from, with the
// members still in it.
type Departure struct {
	Channel   string
	Remaining []Connection
}

// Stats is a point-in-time summary of the registry.
type Stats struct {
	Channels int `json:"channels"`
	Members  int `json:"members"`
}

// Registry maps channel names to member sets. Channels are created on first
// join and are never removed, even once they are empty.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[Connection]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		channels: make(map[string]map[Connection]struct{}),
	}
}

// Join adds conn to channel, creating the channel if needed. Joining twice
// leaves the member set unchanged.
func (r *Registry) Join(channel string, conn Connection) JoinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.channels[channel]
	if !ok {
		members = make(map[Connection]struct{})
		r.channels[channel] = members
	}
	members[conn] = struct{}{}

	return JoinResult{
		Size:   len(members),
		Others: without(members, conn),
	}
}

// IsMember reports whether conn has joined channel.
func (r *Registry) IsMember(channel string, conn Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.channels[channel][conn]
	return ok
}

// BroadcastTargets returns every open member of channel except origin.
func (r *Registry) BroadcastTargets(channel string, origin Connection) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Filter(without(r.channels[channel], origin), func(c Connection, _ int) bool {
		return c.IsOpen()
	})
}

// Leave removes conn from every channel it belongs to.
func (r *Registry) Leave(conn Connection) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var departures []Departure
	for name, members := range r.channels {
		if _, ok := members[conn]; !ok {
			continue
		}
		delete(members, conn)
		departures = append(departures, Departure{
			Channel:   name,
			Remaining: lo.Keys(members),
		})
	}
	return departures
}

// Stats counts channels (empty ones included) and memberships.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Channels: len(r.channels),
		Members: lo.SumBy(lo.Values(r.channels), func(m map[Connection]struct{}) int {
			return len(m)
		}),
	}
}

func without(members map[Connection]struct{}, conn Connection) []Connection {
	return lo.Filter(lo.Keys(members), func(c Connection, _ int) bool {
		return c != conn
	})
}
