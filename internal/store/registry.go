package store

import "github.com/distributed-ci/dci-server/internal/model"

// The role registry is a read-mostly label->id cache consulted on every
// authorization decision. Role mutations invalidate it synchronously, so a
// committed rename is never followed by a stale read. Each Store owns its own
// cache; tests get an isolated registry per in-memory store.

// RoleID resolves a canonical role label to its persisted identifier.
// Unknown labels return ErrRoleNotFound.
func (s *Store) RoleID(label string) (string, error) {
	s.roleMu.RLock()
	id, ok := s.roleCache[label]
	s.roleMu.RUnlock()
	if !ok {
		return "", ErrRoleNotFound
	}
	return id, nil
}

// RoleLabel resolves a role id back to its label. Unknown ids return
// ErrRoleNotFound.
func (s *Store) RoleLabel(id string) (string, error) {
	s.roleMu.RLock()
	defer s.roleMu.RUnlock()
	for label, rid := range s.roleCache {
		if rid == id {
			return label, nil
		}
	}
	return "", ErrRoleNotFound
}

func (s *Store) reloadRoleCache() error {
	var rows []model.Role
	if err := s.db.Select(&rows, `SELECT * FROM roles WHERE state != 'archived'`); err != nil {
		return err
	}
	cache := make(map[string]string, len(rows))
	for _, r := range rows {
		cache[r.Label] = r.ID
	}
	s.roleMu.Lock()
	s.roleCache = cache
	s.roleMu.Unlock()
	return nil
}

func (s *Store) invalidateRoleCache() {
	// Reload immediately rather than lazily: callers that just committed a
	// role mutation expect the next RoleID call to see it.
	_ = s.reloadRoleCache()
}
