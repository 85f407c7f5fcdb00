package infra

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// FallbackModel is used when discovery yields nothing.
	FallbackModel = "gemini-1.5-flash"

	modelCacheKey = "geminiModelCache"
)

// MetaStore is the slice of the config store the resolver persists through.
type MetaStore interface {
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
}

// ModelLister lists the model ids available to a key.
type ModelLister interface {
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}

// ModelResolver picks the model id for generateContent calls, caching the
// choice in memory and in the store.
type ModelResolver struct {
	mu     sync.Mutex
	cached string
	store  MetaStore
	lister ModelLister
	logger *zap.Logger
}

// NewModelResolver creates a resolver. store may be nil (memory-only cache).
func NewModelResolver(store MetaStore, lister ModelLister, logger *zap.Logger) *ModelResolver {
	return &ModelResolver{store: store, lister: lister, logger: logger}
}

// Resolve returns the model id to try first. It never fails: discovery is an
// optimisation, and every failure ends in FallbackModel.
func (r *ModelResolver) Resolve(ctx context.Context, apiKey string) string {
	r.mu.Lock()
	cached := r.cached
	r.mu.Unlock()
	if cached != "" {
		return cached
	}

	if r.store != nil {
		stored, err := r.store.GetMeta(ctx, modelCacheKey)
		if err != nil {
			r.logger.Warn("failed to read cached model id", zap.Error(err))
		} else if stored != "" {
			r.remember(stored)
			return stored
		}
	}

	ids, err := r.lister.ListModels(ctx, apiKey)
	if err != nil {
		r.logger.Debug("model discovery failed", zap.Error(err))
		return FallbackModel
	}
	found := pickModel(ids)
	if found == "" {
		return FallbackModel
	}

	r.remember(found)
	if r.store != nil {
		if err := r.store.SetMeta(ctx, modelCacheKey, found); err != nil {
			r.logger.Warn("failed to persist model id", zap.Error(err))
		}
	}
	r.logger.Info("resolved gemini model", zap.String("model", found))
	return found
}

// Invalidate forgets model if it is the cached choice, so the next Resolve
// runs discovery again.
func (r *ModelResolver) Invalidate(ctx context.Context, model string) {
	r.mu.Lock()
	if r.cached != model {
		r.mu.Unlock()
		return
	}
	r.cached = ""
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SetMeta(ctx, modelCacheKey, ""); err != nil {
			r.logger.Warn("failed to clear cached model id", zap.Error(err))
		}
	}
	r.logger.Info("cached gemini model invalidated", zap.String("model", model))
}

func (r *ModelResolver) remember(model string) {
	r.mu.Lock()
	r.cached = model
	r.mu.Unlock()
}

// pickModel prefers a flash variant, then a pro variant, then the first listed.
func pickModel(ids []string) string {
	for _, want := range []string{"flash", "pro"} {
		for _, id := range ids {
			if strings.Contains(id, want) {
				return id
			}
		}
	}
	if len(ids) > 0 {
		return ids[0]
	}
	return ""
}
