package fakegalley

import (
	"sync"

	"github.com/google/uuid"
)

// Connection statuses as brig reports them from each side.
const (
	connSent     = "sent"
	connPending  = "pending"
	connAccepted = "accepted"
)

// Access roles granted to new conversations.
var defaultAccessRoles = []string{"team_member", "non_team_member", "guest", "service"}

type user struct {
	ID    string
	Name  string
	Email string
}

type conversation struct {
	ID          string
	Creator     string
	Name        *string
	Members     []string
	Access      []string
	AccessRoles []string
}

type state struct {
	domain string

	mu            sync.Mutex
	users         map[string]user
	connections   map[[2]string]string
	conversations map[string]*conversation
}

func newState(domain string) *state {
	if domain == "" {
		domain = "example.com"
	}
	return &state{
		domain:        domain,
		users:         make(map[string]user),
		connections:   make(map[[2]string]string),
		conversations: make(map[string]*conversation),
	}
}

func (s *state) addUser(name, email string) user {
	u := user{ID: uuid.NewString(), Name: name, Email: email}
	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()
	return u
}

func (s *state) deleteUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return false
	}
	delete(s.users, id)
	for k := range s.connections {
		if k[0] == id || k[1] == id {
			delete(s.connections, k)
		}
	}
	return true
}

func (s *state) hasUser(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

// connect records a request from -> to. It reports whether one already existed.
func (s *state) connect(from, to string) (status string, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.connections[[2]string{from, to}]; ok {
		return st, true
	}
	s.connections[[2]string{from, to}] = connSent
	s.connections[[2]string{to, from}] = connPending
	return connSent, false
}

// accept marks the pending request from other to self as accepted on both sides.
func (s *state) accept(self, other string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.connections[[2]string{self, other}]
	if !ok || (st != connPending && st != connAccepted) {
		return false
	}
	s.connections[[2]string{self, other}] = connAccepted
	s.connections[[2]string{other, self}] = connAccepted
	return true
}

func (s *state) connected(a, b string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections[[2]string{a, b}] == connAccepted
}

func (s *state) addConversation(creator string, name *string, others []string) *conversation {
	c := &conversation{
		ID:          uuid.NewString(),
		Creator:     creator,
		Name:        name,
		Members:     append([]string{creator}, others...),
		Access:      []string{"invite"},
		AccessRoles: append([]string(nil), defaultAccessRoles...),
	}
	s.mu.Lock()
	s.conversations[c.ID] = c
	s.mu.Unlock()
	return c
}

func (s *state) conversation(id string) (*conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	return c, ok
}

func (s *state) deleteConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return false
	}
	delete(s.conversations, id)
	return true
}

func (s *state) counts() (users, conversations int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), len(s.conversations)
}

func (c *conversation) isMember(id string) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}
