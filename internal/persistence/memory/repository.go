// Package memory provides in-process store implementations for local
// development and tests, selected at construction time in place of Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kanaye321/inven-sub000/internal/domain"
)

// AssetRepository stores asset records in memory keyed by normalized tag.
type AssetRepository struct {
	mu    sync.RWMutex
	byID  map[string]domain.Asset
	byTag map[string]string // normalized tag -> id
}

// NewAssetRepository constructs an empty repository.
func NewAssetRepository() *AssetRepository {
	return &AssetRepository{
		byID:  make(map[string]domain.Asset),
		byTag: make(map[string]string),
	}
}

// GetByTag implements domain.AssetRepository. tag must be normalized.
func (r *AssetRepository) GetByTag(ctx context.Context, tag string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byTag[tag]
	if !ok {
		return nil, nil
	}
	asset := r.byID[id]
	return &asset, nil
}

// GetBySerial scans for a normalized serial-number match.
func (r *AssetRepository) GetBySerial(ctx context.Context, serial string) (*domain.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if serial == "" {
		return nil, nil
	}
	for _, asset := range r.byID {
		if domain.NormalizeKey(asset.SerialNumber) == serial {
			out := asset
			return &out, nil
		}
	}
	return nil, nil
}

// List returns assets ordered by creation time then id, with cursor paging.
func (r *AssetRepository) List(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Asset, *domain.Cursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]domain.Asset, 0, len(r.byID))
	for _, asset := range r.byID {
		all = append(all, asset)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	start := 0
	if cursor != nil {
		for i, asset := range all {
			if asset.CreatedAt.After(cursor.CreatedAt) || (asset.CreatedAt.Equal(cursor.CreatedAt) && asset.ID > cursor.ID) {
				start = i
				break
			}
			start = len(all)
		}
	}

	end := start + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	page := make([]domain.Asset, end-start)
	copy(page, all[start:end])

	var next *domain.Cursor
	if end < len(all) && len(page) > 0 {
		last := page[len(page)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return page, next, nil
}

// Create inserts a record, enforcing tag uniqueness.
func (r *AssetRepository) Create(ctx context.Context, asset domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := domain.NormalizeKey(asset.Tag)
	if _, exists := r.byTag[key]; exists {
		return domain.ErrDuplicateTag
	}
	r.byID[asset.ID] = asset
	r.byTag[key] = asset.ID
	return nil
}

// Update replaces the stored record, re-keying the tag index when it changed.
func (r *AssetRepository) Update(ctx context.Context, asset domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[asset.ID]
	if !ok {
		return domain.ErrNotFound
	}

	newKey := domain.NormalizeKey(asset.Tag)
	oldKey := domain.NormalizeKey(old.Tag)
	if newKey != oldKey {
		if owner, exists := r.byTag[newKey]; exists && owner != asset.ID {
			return domain.ErrDuplicateTag
		}
		delete(r.byTag, oldKey)
		r.byTag[newKey] = asset.ID
	}

	r.byID[asset.ID] = asset
	return nil
}

// Delete removes the record and its tag index entry.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	asset, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.byTag, domain.NormalizeKey(asset.Tag))
	delete(r.byID, id)
	return nil
}

// ActivityRepository appends audit records to an in-memory log.
type ActivityRepository struct {
	mu      sync.RWMutex
	entries []domain.Activity
	nextID  int64
}

// NewActivityRepository constructs an empty log.
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{}
}

// Append implements domain.ActivityRepository.
func (r *ActivityRepository) Append(ctx context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	activity.ID = r.nextID
	r.entries = append(r.entries, activity)
	return nil
}

// ListByAsset returns entries for the asset, newest first.
func (r *ActivityRepository) ListByAsset(ctx context.Context, assetID string, limit int) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Activity, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].EntityID != assetID {
			continue
		}
		out = append(out, r.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// AssigneeDirectory is a seeded set of known assignee identifiers.
type AssigneeDirectory struct {
	mu    sync.RWMutex
	known map[string]struct{}
}

// NewAssigneeDirectory constructs a directory seeded with the given ids.
func NewAssigneeDirectory(ids ...string) *AssigneeDirectory {
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return &AssigneeDirectory{known: known}
}

// Add registers an assignee id.
func (d *AssigneeDirectory) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known[id] = struct{}{}
}

// Exists implements domain.AssigneeDirectory.
func (d *AssigneeDirectory) Exists(ctx context.Context, assigneeID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.known[assigneeID]
	return ok, nil
}
