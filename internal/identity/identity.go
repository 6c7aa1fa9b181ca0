package identity

import (
	"strings"
	"sync"
)

// Identity is the verified (or guest) user bound to a live connection.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
	IsGuest     bool
}

// Registry holds one Identity per uid for the lifetime of its connection.
// Entries are added when a connection authenticates and must be removed when
// the owning connection goes away; a replacement login overwrites the entry.
type Registry struct {
	mu    sync.RWMutex
	byUID map[string]Identity
}

func NewRegistry() *Registry {
	return &Registry{byUID: make(map[string]Identity)}
}

func (r *Registry) Add(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUID[id.UID] = id
}

func (r *Registry) Get(uid string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUID[uid]
	return id, ok
}

func (r *Registry) Remove(uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byUID, uid)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUID)
}

// displayNameFromEmail derives a readable name from the local part of an
// email address: "jane.doe@example.com" becomes "jane doe".
func displayNameFromEmail(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at >= 0 {
		local = email[:at]
	}
	local = strings.ReplaceAll(local, ".", " ")
	local = strings.TrimSpace(local)
	if local == "" {
		return "Guest"
	}
	return local
}
