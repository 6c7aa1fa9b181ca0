package directory

import (
	"context"
	"sync"
)

// Static is an in-memory Directory. It backs tests and standalone runs where
// no database is configured.
type Static struct {
	mu     sync.RWMutex
	realms map[string]Realm
	skins  map[string]string
}

func NewStatic() *Static {
	return &Static{
		realms: make(map[string]Realm),
		skins:  make(map[string]string),
	}
}

func (s *Static) PutRealm(realm Realm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realms[realm.ID] = realm
}

func (s *Static) DeleteRealm(realmID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.realms, realmID)
}

func (s *Static) PutSkin(uid, skin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skins[uid] = skin
}

func (s *Static) LookupRealm(_ context.Context, realmID string) (Realm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	realm, ok := s.realms[realmID]
	if !ok {
		return Realm{}, ErrNotFound
	}
	return realm, nil
}

func (s *Static) LookupProfileSkin(_ context.Context, uid string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skin, ok := s.skins[uid]
	if !ok || skin == "" {
		return "", ErrNotFound
	}
	return skin, nil
}
