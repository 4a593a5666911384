package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lawncare/internal/types"
)

// ProviderConfigRepo stores vendor configs. It keeps at most one default
// per channel.
type ProviderConfigRepo struct {
	mu   sync.RWMutex
	rows map[string]types.ProviderConfig
}

func providerNotFound(id string) error {
	return types.NewAppError(types.ErrCodeNotFoundProviderConfig, fmt.Sprintf("provider config %s not found", id), nil)
}

// ListByChannel returns the channel's configs ordered by creation time.
func (r *ProviderConfigRepo) ListByChannel(_ context.Context, ch types.Channel) ([]types.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []types.ProviderConfig{}
	for _, cfg := range r.rows {
		if cfg.Channel == ch {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ProviderConfigRepo) Get(_ context.Context, id string) (*types.ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.rows[id]
	if !ok {
		return nil, providerNotFound(id)
	}
	return &cfg, nil
}

func (r *ProviderConfigRepo) Upsert(_ context.Context, cfg *types.ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.IsDefault {
		r.clearDefaults(cfg.Channel, cfg.ID)
	}
	r.rows[cfg.ID] = *cfg
	return nil
}

func (r *ProviderConfigRepo) SetDefault(_ context.Context, ch types.Channel, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.rows[id]
	if !ok || cfg.Channel != ch {
		return providerNotFound(id)
	}
	r.clearDefaults(ch, id)
	cfg.IsDefault = true
	r.rows[id] = cfg
	return nil
}

// clearDefaults unsets IsDefault on every config of ch except keep.
// Callers hold the write lock.
func (r *ProviderConfigRepo) clearDefaults(ch types.Channel, keep string) {
	for id, cfg := range r.rows {
		if id != keep && cfg.Channel == ch && cfg.IsDefault {
			cfg.IsDefault = false
			r.rows[id] = cfg
		}
	}
}

var _ types.ProviderConfigRepository = (*ProviderConfigRepo)(nil)
