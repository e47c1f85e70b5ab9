package cache

import (
	"context"
	"time"

	"alshawaya/backend/internal/domain"
)

// CatalogCache holds the combined menu-item and deal snapshot the
// billing screen fetches on load. Implementations are best effort; a
// miss or error just falls through to the repository.
type CatalogCache interface {
	Get(ctx context.Context, key string) (*domain.CatalogResponse, bool, error)
	Set(ctx context.Context, key string, value *domain.CatalogResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*domain.CatalogResponse, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ *domain.CatalogResponse, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
