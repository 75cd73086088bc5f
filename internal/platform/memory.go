package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory keeps roles and role assignments in process. It backs the HTTP
// command surface when no external platform bridge is wired, and tests.
type Memory struct {
	mu       sync.Mutex
	nextID   int
	roles    map[string]map[string]Role     // guild -> name -> role
	assigned map[string]map[string][]string // guild -> member -> role ids
	members  map[string]map[string]string   // guild -> member -> display name
}

func NewMemory() *Memory {
	return &Memory{
		roles:    make(map[string]map[string]Role),
		assigned: make(map[string]map[string][]string),
		members:  make(map[string]map[string]string),
	}
}

// AddMember registers a displayable member.
func (m *Memory) AddMember(guildID, memberID, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[guildID] == nil {
		m.members[guildID] = make(map[string]string)
	}
	m.members[guildID][memberID] = displayName
}

func (m *Memory) FindRoleByName(_ context.Context, guildID, name string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role, ok := m.roles[guildID][name]; ok {
		return &role, nil
	}
	return nil, nil
}

func (m *Memory) CreateRole(_ context.Context, guildID, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.roles[guildID] == nil {
		m.roles[guildID] = make(map[string]Role)
	}
	if role, ok := m.roles[guildID][name]; ok {
		return role, nil
	}
	m.nextID++
	role := Role{ID: fmt.Sprintf("role-%d", m.nextID), Name: name}
	m.roles[guildID][name] = role
	return role, nil
}

func (m *Memory) AttachRole(_ context.Context, guildID, memberID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assigned[guildID] == nil {
		m.assigned[guildID] = make(map[string][]string)
	}
	for _, id := range m.assigned[guildID][memberID] {
		if id == role.ID {
			return nil
		}
	}
	m.assigned[guildID][memberID] = append(m.assigned[guildID][memberID], role.ID)
	return nil
}

func (m *Memory) DetachRole(_ context.Context, guildID, memberID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.assigned[guildID][memberID]
	for i, id := range ids {
		if id == role.ID {
			m.assigned[guildID][memberID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) ResolveMember(_ context.Context, guildID, memberID string) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.members[guildID][memberID]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return Member{ID: memberID, DisplayName: name}, nil
}

// MemberRoles returns the role names attached to a member, sorted.
func (m *Memory) MemberRoles(guildID, memberID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, id := range m.assigned[guildID][memberID] {
		for name, role := range m.roles[guildID] {
			if role.ID == id {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

var _ Platform = (*Memory)(nil)
