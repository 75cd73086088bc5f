package storage

import (
	"context"
	"sync"

	"guildgate/internal/model"
)

// Memory is an in-process ConfigStore and MembershipStore.
type Memory struct {
	mu      sync.RWMutex
	configs map[string]model.GuildConfig
	members map[string]*guildMembers
}

type guildMembers struct {
	order   []string
	records map[string]model.VerificationRecord
}

func NewMemory() *Memory {
	return &Memory{
		configs: make(map[string]model.GuildConfig),
		members: make(map[string]*guildMembers),
	}
}

func (m *Memory) GetGuildConfig(_ context.Context, guildKey string) (model.GuildConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[guildKey]
	if !ok {
		return model.GuildConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *Memory) SetGuildConfig(_ context.Context, cfg model.GuildConfig) error {
	if cfg.GuildKey == "" {
		return ErrInvalidGuildKey
	}
	m.mu.Lock()
	m.configs[cfg.GuildKey] = cfg
	m.mu.Unlock()
	return nil
}

func (m *Memory) UpsertVerification(_ context.Context, rec model.VerificationRecord) error {
	if rec.GuildKey == "" {
		return ErrInvalidGuildKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.members[rec.GuildKey]
	if !ok {
		g = &guildMembers{records: make(map[string]model.VerificationRecord)}
		m.members[rec.GuildKey] = g
	}
	if _, exists := g.records[rec.MemberID]; !exists {
		g.order = append(g.order, rec.MemberID)
	}
	g.records[rec.MemberID] = rec
	return nil
}

func (m *Memory) GetVerification(_ context.Context, guildKey, memberID string) (model.VerificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.members[guildKey]; ok {
		if rec, ok := g.records[memberID]; ok {
			return rec, nil
		}
	}
	return model.VerificationRecord{}, ErrNotFound
}

func (m *Memory) DeleteVerification(_ context.Context, guildKey, memberID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.members[guildKey]
	if !ok {
		return false, nil
	}
	if _, ok := g.records[memberID]; !ok {
		return false, nil
	}
	delete(g.records, memberID)
	for i, id := range g.order {
		if id == memberID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (m *Memory) ListVerified(_ context.Context, guildKey string) ([]model.VerificationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.members[guildKey]
	if !ok {
		return nil, nil
	}
	out := make([]model.VerificationRecord, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.records[id])
	}
	return out, nil
}
