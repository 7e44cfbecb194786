package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AssetRepository captures persistence operations for asset records.
// Lookups return (nil, nil) when no record matches.
type AssetRepository interface {
	GetByTag(ctx context.Context, tag string) (*Asset, error)
	GetBySerial(ctx context.Context, serial string) (*Asset, error)
	List(ctx context.Context, cursor *Cursor, limit int) ([]Asset, *Cursor, error)
	Create(ctx context.Context, asset Asset) error
	Update(ctx context.Context, asset Asset) error
	Delete(ctx context.Context, id string) error
}

// ActivityRepository appends and reads the immutable audit log.
type ActivityRepository interface {
	Append(ctx context.Context, activity Activity) error
	ListByAsset(ctx context.Context, assetID string, limit int) ([]Activity, error)
}

// AssigneeDirectory resolves assignee identifiers against the user store.
type AssigneeDirectory interface {
	Exists(ctx context.Context, assigneeID string) (bool, error)
}

// Cursor models the pagination token for asset listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// Service is the lifecycle state machine over the asset and activity stores.
type Service struct {
	assets     AssetRepository
	activities ActivityRepository
	directory  AssigneeDirectory

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService constructs a Service.
func NewService(assets AssetRepository, activities ActivityRepository, directory AssigneeDirectory) *Service {
	return &Service{
		assets:     assets,
		activities: activities,
		directory:  directory,
		locks:      make(map[string]*sync.Mutex),
	}
}

// lockTag serialises mutations per asset tag so two concurrent checkouts
// cannot both pass the same precondition read. Lock entries are retained for
// the process lifetime; the tag space is bounded by inventory size.
func (s *Service) lockTag(tag string) func() {
	key := NormalizeKey(tag)

	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// CreateAssetInput captures the fields for a new asset record.
type CreateAssetInput struct {
	Tag          string
	Name         string
	Category     string
	Status       Status
	KnoxID       string
	SerialNumber string
	Model        string
	Manufacturer string
	Location     string
	Notes        string
}

// CreateAsset inserts a new record. The initial status defaults to available.
// A non-blank Knox ID triggers the automatic checkout rule immediately.
func (s *Service) CreateAsset(ctx context.Context, input CreateAssetInput, actorID string) (*Asset, error) {
	tag := strings.TrimSpace(input.Tag)
	if tag == "" {
		return nil, fmt.Errorf("tag is required")
	}

	unlock := s.lockTag(tag)
	defer unlock()

	existing, err := s.assets.GetByTag(ctx, NormalizeKey(tag))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateTag
	}

	status := input.Status
	if status == "" {
		status = StatusAvailable
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf("unknown status %q", input.Status)
	}

	now := time.Now().UTC()
	asset := Asset{
		ID:           uuid.NewString(),
		Tag:          tag,
		Name:         strings.TrimSpace(input.Name),
		Category:     strings.TrimSpace(input.Category),
		Status:       status,
		KnoxID:       strings.TrimSpace(input.KnoxID),
		SerialNumber: strings.TrimSpace(input.SerialNumber),
		Model:        input.Model,
		Manufacturer: input.Manufacturer,
		Location:     input.Location,
		Notes:        input.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	transition, fired := decideAutoCheckout(nil, asset)
	if fired {
		asset.Status = StatusDeployed
		asset.AssigneeID = transition.AssigneeID
		asset.CheckoutAt = &now
	}
	enforceInvariants(&asset)

	if asset.Assigned() && asset.AssigneeID == "" {
		return nil, fmt.Errorf("%w: status %q requires a checkout", ErrInvalidTransition, asset.Status)
	}

	if err := s.assets.Create(ctx, asset); err != nil {
		return nil, err
	}

	if err := s.appendActivity(ctx, ActionCreate, asset.ID, actorID, fmt.Sprintf("Created asset %s", asset.Tag)); err != nil {
		return nil, err
	}
	if fired {
		if err := s.appendActivity(ctx, ActionCheckout, asset.ID, "", transition.Note); err != nil {
			return nil, err
		}
	}

	return &asset, nil
}

// Checkout deploys an available asset to an assignee.
func (s *Service) Checkout(ctx context.Context, tag, assigneeID string, expectedCheckinAt *time.Time, note, actorID string) (*Asset, error) {
	unlock := s.lockTag(tag)
	defer unlock()

	asset, err := s.getByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if asset.Status != StatusAvailable {
		return nil, fmt.Errorf("%w: cannot check out asset in status %q", ErrInvalidTransition, asset.Status)
	}

	if assigneeID != SystemAssignee {
		ok, err := s.directory.Exists(ctx, assigneeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAssigneeNotFound
		}
	}

	now := time.Now().UTC()
	asset.Status = StatusDeployed
	asset.AssigneeID = assigneeID
	asset.CheckoutAt = &now
	asset.ExpectedCheckinAt = expectedCheckinAt
	asset.UpdatedAt = now

	if err := s.assets.Update(ctx, *asset); err != nil {
		return nil, err
	}

	if note == "" {
		note = fmt.Sprintf("Checked out to %s", assigneeID)
	}
	if err := s.appendActivity(ctx, ActionCheckout, asset.ID, actorID, note); err != nil {
		return nil, err
	}

	return asset, nil
}

// Checkin returns a deployed or overdue asset to the available pool, clearing
// the assignee, checkout dates, and Knox ID.
func (s *Service) Checkin(ctx context.Context, tag, actorID string) (*Asset, error) {
	unlock := s.lockTag(tag)
	defer unlock()

	asset, err := s.getByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	if !asset.Assigned() {
		return nil, fmt.Errorf("%w: cannot check in asset in status %q", ErrInvalidTransition, asset.Status)
	}

	previousAssignee := asset.AssigneeID
	asset.Status = StatusAvailable
	asset.UpdatedAt = time.Now().UTC()
	enforceInvariants(asset)

	if err := s.assets.Update(ctx, *asset); err != nil {
		return nil, err
	}

	note := fmt.Sprintf("Checked in from %s", previousAssignee)
	if err := s.appendActivity(ctx, ActionCheckin, asset.ID, actorID, note); err != nil {
		return nil, err
	}

	return asset, nil
}

// AssetPatch is a partial update; nil fields are left unchanged.
type AssetPatch struct {
	Tag               *string
	Name              *string
	Category          *string
	Status            *Status
	KnoxID            *string
	SerialNumber      *string
	Model             *string
	Manufacturer      *string
	Location          *string
	Notes             *string
	ExpectedCheckinAt *time.Time
}

// ApplyEdit applies a field patch to the asset identified by tag, re-validates
// tag uniqueness on tag changes, and evaluates the automatic checkout rule
// against the patched record.
func (s *Service) ApplyEdit(ctx context.Context, tag string, patch AssetPatch, actorID string) (*Asset, error) {
	unlock := s.lockTag(tag)
	defer unlock()

	old, err := s.getByTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	updated := *old
	applyPatch(&updated, patch)

	if !ValidStatus(updated.Status) {
		return nil, fmt.Errorf("unknown status %q", updated.Status)
	}

	if NormalizeKey(updated.Tag) != NormalizeKey(old.Tag) {
		if strings.TrimSpace(updated.Tag) == "" {
			return nil, fmt.Errorf("tag is required")
		}
		collision, err := s.assets.GetByTag(ctx, NormalizeKey(updated.Tag))
		if err != nil {
			return nil, err
		}
		if collision != nil && collision.ID != old.ID {
			return nil, ErrDuplicateTag
		}
	}

	now := time.Now().UTC()
	updated.UpdatedAt = now

	transition, fired := decideAutoCheckout(old, updated)
	if fired {
		updated.Status = StatusDeployed
		updated.AssigneeID = transition.AssigneeID
		if updated.CheckoutAt == nil {
			updated.CheckoutAt = &now
		}
	}
	enforceInvariants(&updated)

	if updated.Assigned() && updated.AssigneeID == "" {
		return nil, fmt.Errorf("%w: status %q requires a checkout", ErrInvalidTransition, updated.Status)
	}

	if err := s.assets.Update(ctx, updated); err != nil {
		return nil, err
	}

	if err := s.appendActivity(ctx, ActionUpdate, updated.ID, actorID, fmt.Sprintf("Updated asset %s", updated.Tag)); err != nil {
		return nil, err
	}
	if fired {
		if err := s.appendActivity(ctx, ActionCheckout, updated.ID, "", transition.Note); err != nil {
			return nil, err
		}
	}

	return &updated, nil
}

// Delete removes the record and appends a delete activity.
func (s *Service) Delete(ctx context.Context, tag, actorID string) error {
	unlock := s.lockTag(tag)
	defer unlock()

	asset, err := s.getByTag(ctx, tag)
	if err != nil {
		return err
	}

	if err := s.assets.Delete(ctx, asset.ID); err != nil {
		return err
	}

	return s.appendActivity(ctx, ActionDelete, asset.ID, actorID, fmt.Sprintf("Deleted asset %s", asset.Tag))
}

// GetAsset fetches a single record by tag.
func (s *Service) GetAsset(ctx context.Context, tag string) (*Asset, error) {
	return s.getByTag(ctx, tag)
}

// FindBySerial fetches a record by normalized serial number.
func (s *Service) FindBySerial(ctx context.Context, serial string) (*Asset, error) {
	key := NormalizeKey(serial)
	if key == "" {
		return nil, nil
	}
	return s.assets.GetBySerial(ctx, key)
}

// ListAssets returns assets with cursor pagination.
func (s *Service) ListAssets(ctx context.Context, cursor *Cursor, limit int) ([]Asset, *Cursor, error) {
	return s.assets.List(ctx, cursor, limit)
}

// ListActivities returns the audit trail for an asset, newest first.
func (s *Service) ListActivities(ctx context.Context, tag string, limit int) ([]Activity, error) {
	asset, err := s.getByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	return s.activities.ListByAsset(ctx, asset.ID, limit)
}

func (s *Service) getByTag(ctx context.Context, tag string) (*Asset, error) {
	key := NormalizeKey(tag)
	if key == "" {
		return nil, ErrNotFound
	}
	asset, err := s.assets.GetByTag(ctx, key)
	if err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, ErrNotFound
	}
	return asset, nil
}

func (s *Service) appendActivity(ctx context.Context, action ActivityAction, assetID, actorID, note string) error {
	return s.activities.Append(ctx, Activity{
		Action:     action,
		EntityType: "asset",
		EntityID:   assetID,
		ActorID:    actorID,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}

func applyPatch(asset *Asset, patch AssetPatch) {
	if patch.Tag != nil {
		asset.Tag = strings.TrimSpace(*patch.Tag)
	}
	if patch.Name != nil {
		asset.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Category != nil {
		asset.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Status != nil {
		asset.Status = *patch.Status
	}
	if patch.KnoxID != nil {
		asset.KnoxID = strings.TrimSpace(*patch.KnoxID)
	}
	if patch.SerialNumber != nil {
		asset.SerialNumber = strings.TrimSpace(*patch.SerialNumber)
	}
	if patch.Model != nil {
		asset.Model = *patch.Model
	}
	if patch.Manufacturer != nil {
		asset.Manufacturer = *patch.Manufacturer
	}
	if patch.Location != nil {
		asset.Location = *patch.Location
	}
	if patch.Notes != nil {
		asset.Notes = *patch.Notes
	}
	if patch.ExpectedCheckinAt != nil {
		asset.ExpectedCheckinAt = patch.ExpectedCheckinAt
	}
}
