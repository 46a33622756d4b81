package engine

import (
	"context"

	"github.com/localmodels/modellake/internal/bundle"
)

// CreateBundle creates a new named, ordered file-list bundle.
func (e *Engine) CreateBundle(ctx context.Context, name string, items []bundle.Item) (bundle.Bundle, error) {
	return e.bundles.Create(ctx, name, items)
}

// ReplaceBundle overwrites an existing bundle's item list.
func (e *Engine) ReplaceBundle(ctx context.Context, id string, items []bundle.Item) (bundle.Bundle, error) {
	return e.bundles.Replace(ctx, id, items)
}

// GetBundle returns a bundle by ID.
func (e *Engine) GetBundle(ctx context.Context, id string) (bundle.Bundle, error) {
	return e.bundles.Get(ctx, id)
}

// GetBundleByName returns a bundle by its unique name.
func (e *Engine) GetBundleByName(ctx context.Context, name string) (bundle.Bundle, error) {
	return e.bundles.GetByName(ctx, name)
}

// ListBundles returns every bundle, ordered by name.
func (e *Engine) ListBundles(ctx context.Context) ([]bundle.Bundle, error) {
	return e.bundles.List(ctx)
}

// DeleteBundle removes a bundle; deleting an unknown ID is not an error.
func (e *Engine) DeleteBundle(ctx context.Context, id string) error {
	return e.bundles.Delete(ctx, id)
}
