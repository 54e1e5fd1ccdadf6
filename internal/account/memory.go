package account

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded CredentialStore for development and tests.
type MemoryStore struct {
	mu        sync.Mutex
	users     map[string]*Identity
	roles     map[string]bool
	userRoles map[string]map[string]bool
	seq       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     map[string]*Identity{},
		roles:     map[string]bool{},
		userRoles: map[string]map[string]bool{},
		seq:       1,
	}
}

func (m *MemoryStore) FindByName(_ context.Context, userName string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userName]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) FindByEmail(_ context.Context, email string) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateIdentity(_ context.Context, id *Identity) (*Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id.UserName]; ok {
		return nil, ErrExists
	}
	for _, u := range m.users {
		if u.Email == id.Email {
			return nil, ErrExists
		}
	}
	u := *id
	u.ID = m.seq
	u.CreatedAt = time.Now()
	m.seq++
	m.users[u.UserName] = &u
	cp := u
	return &cp, nil
}

func (m *MemoryStore) SetRefreshToken(_ context.Context, userName, token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userName]
	if !ok {
		return ErrNotFound
	}
	u.RefreshToken = token
	u.RefreshTokenExpiry = expiry
	return nil
}

func (m *MemoryStore) SwapRefreshToken(_ context.Context, userName, current, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userName]
	if !ok {
		return false, ErrNotFound
	}
	if current == "" || u.RefreshToken != current {
		return false, nil
	}
	u.RefreshToken = next
	return true, nil
}

func (m *MemoryStore) Roles(_ context.Context, userName string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userName]; !ok {
		return nil, ErrNotFound
	}
	var out []string
	for r := range m.userRoles[userName] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) RoleExists(_ context.Context, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roles[role], nil
}

func (m *MemoryStore) CreateRole(_ context.Context, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[role] {
		return ErrExists
	}
	m.roles[role] = true
	return nil
}

func (m *MemoryStore) AddToRole(_ context.Context, userName, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userName]; !ok {
		return ErrNotFound
	}
	if !m.roles[role] {
		return ErrRoleNotFound
	}
	if m.userRoles[userName] == nil {
		m.userRoles[userName] = map[string]bool{}
	}
	m.userRoles[userName][role] = true
	return nil
}
