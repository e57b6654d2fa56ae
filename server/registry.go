package server

import (
	"slices"
	"sync"
)

// registry tracks admitted users and the ban list. Critical sections cover membership only.
type registry struct {
	mu       sync.Mutex
	users    map[string]*User
	banned   map[string]struct{}
	maxUsers int // Unlimited or a limit >= 0
	stopped  bool
}

func newRegistry(maxUsers int, banned []string) *registry {
	r := &registry{
		users:    make(map[string]*User),
		banned:   make(map[string]struct{}, len(banned)),
		maxUsers: maxUsers,
	}
	for _, ip := range banned {
		if ip != "" {
			r.banned[ip] = struct{}{}
		}
	}
	return r
}

func (r *registry) admitLocked(ip string) error {
	switch {
	case r.stopped:
		return ErrServerStopped
	case r.isBannedLocked(ip):
		return ErrBanned
	case r.maxUsers != Unlimited && len(r.users) >= r.maxUsers:
		return ErrServerFull
	}
	return nil
}

func (r *registry) isBannedLocked(ip string) bool {
	_, ok := r.banned[ip]
	return ok
}

// admit reports whether a new connection from ip would be accepted right now.
func (r *registry) admit(ip string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admitLocked(ip)
}

// insert re-checks admission and adds u in one step.
func (r *registry) insert(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.admitLocked(u.IP()); err != nil {
		return err
	}
	r.users[u.ID()] = u
	return nil
}

// remove deletes u if it is still the registered user for its id.
func (r *registry) remove(u *User) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.users[u.ID()]; ok && cur == u {
		delete(r.users, u.ID())
		return true
	}
	return false
}

func (r *registry) get(id string) (*User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	return u, ok
}

func (r *registry) snapshot() []*User {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// ban adds ip to the ban list and returns the users currently connected from it.
func (r *registry) ban(ip string) []*User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banned[ip] = struct{}{}
	var out []*User
	for _, u := range r.users {
		if u.IP() == ip {
			out = append(out, u)
		}
	}
	return out
}

func (r *registry) unban(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.banned[ip]
	delete(r.banned, ip)
	return ok
}

func (r *registry) isBanned(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isBannedLocked(ip)
}

func (r *registry) bannedList() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.banned))
	for ip := range r.banned {
		out = append(out, ip)
	}
	r.mu.Unlock()
	slices.Sort(out)
	return out
}

func (r *registry) setMaxUsers(n int) {
	r.mu.Lock()
	r.maxUsers = n
	r.mu.Unlock()
}

func (r *registry) getMaxUsers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxUsers
}

// stop refuses further admission and returns the users to tear down.
func (r *registry) stop() []*User {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	return r.snapshot()
}

func (r *registry) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
