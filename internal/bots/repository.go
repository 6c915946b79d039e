package bots

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines the interface for the local bot mirror.
type Repository interface {
	Create(ctx context.Context, bot *Bot) error
	GetByProviderID(ctx context.Context, providerID string) (*Bot, error)
	List(ctx context.Context) ([]*Bot, error)

	// Upsert writes the bot unconditionally, keyed on provider id. Used by
	// reconciliation to force the mirror to match the provider.
	Upsert(ctx context.Context, bot *Bot) error

	Update(ctx context.Context, providerID string, req *UpdateBotRequest) (*Bot, error)
	Delete(ctx context.Context, providerID string) error
}

// InMemoryRepository is a Repository backed by a mutex-guarded map.
type InMemoryRepository struct {
	mu   sync.RWMutex
	bots map[string]*Bot
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{bots: make(map[string]*Bot)}
}

func (r *InMemoryRepository) Create(ctx context.Context, bot *Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bots[bot.ProviderID]; ok {
		return ErrDuplicateProviderID
	}
	now := time.Now().UTC()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now
	clone := *bot
	r.bots[bot.ProviderID] = &clone
	return nil
}

func (r *InMemoryRepository) GetByProviderID(ctx context.Context, providerID string) (*Bot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bot, ok := r.bots[providerID]
	if !ok {
		return nil, ErrBotNotFound
	}
	clone := *bot
	return &clone, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*Bot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Bot, 0, len(r.bots))
	for _, bot := range r.bots {
		clone := *bot
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, bot *Bot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.bots[bot.ProviderID]; ok {
		bot.CreatedAt = existing.CreatedAt
	} else if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now
	clone := *bot
	r.bots[bot.ProviderID] = &clone
	return nil
}

func (r *InMemoryRepository) Update(ctx context.Context, providerID string, req *UpdateBotRequest) (*Bot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bot, ok := r.bots[providerID]
	if !ok {
		return nil, ErrBotNotFound
	}
	applyUpdate(bot, req)
	bot.UpdatedAt = time.Now().UTC()
	clone := *bot
	return &clone, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, providerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bots[providerID]; !ok {
		return ErrBotNotFound
	}
	delete(r.bots, providerID)
	return nil
}

func applyUpdate(bot *Bot, req *UpdateBotRequest) {
	if req.Name != nil {
		bot.Name = *req.Name
	}
	if req.Description != nil {
		bot.Description = *req.Description
	}
	if req.Prompt != nil {
		bot.Prompt = *req.Prompt
	}
	if req.FirstMessage != nil {
		bot.FirstMessage = *req.FirstMessage
	}
	if req.IsActive != nil {
		bot.IsActive = *req.IsActive
	}
	if req.Settings != nil {
		bot.Settings = *req.Settings
	}
	if req.PostCallSettings != nil {
		bot.PostCallSettings = *req.PostCallSettings
	}
}
