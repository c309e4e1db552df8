package planner

import (
	"context"
	"strings"

	"eventbot/internal/storage"
)

// AddCategory registers a category option. It reports false when the name
// already exists.
func (p *Planner) AddCategory(ctx context.Context, scopeID int64, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, invalid("category name is required")
	}
	return p.store.AddCategoryOption(ctx, scopeID, name)
}

func (p *Planner) RemoveCategory(ctx context.Context, scopeID int64, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, invalid("category name is required")
	}
	n, err := p.store.RemoveCategoryOption(ctx, scopeID, name)
	return n > 0, err
}

func (p *Planner) ListCategories(ctx context.Context, scopeID int64, limit int) ([]storage.CategoryOption, error) {
	return p.store.ListCategoryOptions(ctx, scopeID, pageSize(limit, 25, 200))
}

func (p *Planner) HasCategory(ctx context.Context, scopeID int64, name string) (bool, error) {
	return p.store.HasCategoryOption(ctx, scopeID, strings.TrimSpace(name))
}

// SyncCategories adds every non-empty name; existing options are kept.
// It returns how many names were new.
func (p *Planner) SyncCategories(ctx context.Context, scopeID int64, names []string) (int, error) {
	added := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ok, err := p.store.AddCategoryOption(ctx, scopeID, name)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// PurgeCategories removes every category option of the scope.
func (p *Planner) PurgeCategories(ctx context.Context, scopeID int64) (int64, error) {
	return p.store.PurgeCategoryOptions(ctx, scopeID)
}
