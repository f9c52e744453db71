package chat

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Rooms tracks which connections are subscribed to which ticket. Membership
// is per connection; presence is derived from how many of an identity's
// connections are in a room.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	byConn map[string]mapset.Set[string]
}

type room struct {
	members    map[string]string // connID -> identityID
	identities map[string]int    // identityID -> member connections
}

type JoinResult struct {
	Added bool
	// FirstOfIdentity is set when no other connection of the identity was
	// already in the room.
	FirstOfIdentity bool
	// Peers are the room's connections not owned by the joining identity,
	// taken in the same critical section as the join.
	Peers []string
}

type LeaveResult struct {
	Removed        bool
	IdentityID     string
	LastOfIdentity bool
	Peers          []string
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]*room),
		byConn: make(map[string]mapset.Set[string]),
	}
}

func (rs *Rooms) Join(ticketID, connID, identityID string) JoinResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[ticketID]
	if !ok {
		r = &room{members: make(map[string]string), identities: make(map[string]int)}
		rs.rooms[ticketID] = r
	}

	if _, joined := r.members[connID]; joined {
		return JoinResult{}
	}

	r.members[connID] = identityID
	r.identities[identityID]++

	joined, ok := rs.byConn[connID]
	if !ok {
		joined = mapset.NewThreadUnsafeSet[string]()
		rs.byConn[connID] = joined
	}
	joined.Add(ticketID)

	return JoinResult{
		Added:           true,
		FirstOfIdentity: r.identities[identityID] == 1,
		Peers:           r.peers(identityID),
	}
}

func (rs *Rooms) Leave(ticketID, connID string) LeaveResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	r, ok := rs.rooms[ticketID]
	if !ok {
		return LeaveResult{}
	}

	identityID, joined := r.members[connID]
	if !joined {
		return LeaveResult{}
	}

	delete(r.members, connID)
	r.identities[identityID]--
	last := r.identities[identityID] == 0
	if last {
		delete(r.identities, identityID)
	}

	if len(r.members) == 0 {
		delete(rs.rooms, ticketID)
	}

	if set, ok := rs.byConn[connID]; ok {
		set.Remove(ticketID)
		if set.Cardinality() == 0 {
			delete(rs.byConn, connID)
		}
	}

	return LeaveResult{
		Removed:        true,
		IdentityID:     identityID,
		LastOfIdentity: last,
		Peers:          r.peers(identityID),
	}
}

func (rs *Rooms) Members(ticketID string) []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[ticketID]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(r.members))
	for connID := range r.members {
		out = append(out, connID)
	}
	return out
}

// MembersExcept returns the room's connections other than connID.
func (rs *Rooms) MembersExcept(ticketID, connID string) []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[ticketID]
	if !ok {
		return nil
	}

	out := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != connID {
			out = append(out, id)
		}
	}
	return out
}

// Peers returns the room's connections not owned by identityID.
func (rs *Rooms) Peers(ticketID, identityID string) []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[ticketID]
	if !ok {
		return nil
	}
	return r.peers(identityID)
}

func (rs *Rooms) IsMember(ticketID, connID string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	r, ok := rs.rooms[ticketID]
	if !ok {
		return false
	}
	_, joined := r.members[connID]
	return joined
}

func (rs *Rooms) RoomsOf(connID string) []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	joined, ok := rs.byConn[connID]
	if !ok {
		return nil
	}
	return joined.ToSlice()
}

func (rs *Rooms) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms)
}

func (r *room) peers(identityID string) []string {
	out := make([]string, 0, len(r.members))
	for connID, owner := range r.members {
		if owner != identityID {
			out = append(out, connID)
		}
	}
	return out
}
