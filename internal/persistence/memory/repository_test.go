package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kanaye321/inven-sub000/internal/domain"
)

func seedAsset(t *testing.T, repo *AssetRepository, id, tag, serial string, createdAt time.Time) domain.Asset {
	t.Helper()
	asset := domain.Asset{
		ID:           id,
		Tag:          tag,
		SerialNumber: serial,
		Status:       domain.StatusAvailable,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := repo.Create(context.Background(), asset); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}
	return asset
}

func TestAssetRepositoryTagLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository()
	seedAsset(t, repo, "id-1", "A1", "SN-1", time.Now().UTC())

	asset, err := repo.GetByTag(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByTag: %v", err)
	}
	if asset == nil || asset.ID != "id-1" {
		t.Fatalf("expected id-1, got %+v", asset)
	}

	missing, err := repo.GetByTag(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("miss must be (nil, nil), got (%v, %v)", missing, err)
	}
}

func TestAssetRepositorySerialLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository()
	seedAsset(t, repo, "id-1", "A1", " SN-42 ", time.Now().UTC())

	asset, err := repo.GetBySerial(ctx, "sn-42")
	if err != nil {
		t.Fatalf("GetBySerial: %v", err)
	}
	if asset == nil || asset.ID != "id-1" {
		t.Fatalf("expected id-1, got %+v", asset)
	}

	if asset, _ := repo.GetBySerial(ctx, ""); asset != nil {
		t.Fatal("blank serial must never match")
	}
}

func TestAssetRepositoryDuplicateTag(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository()
	seedAsset(t, repo, "id-1", "A1", "", time.Now().UTC())

	err := repo.Create(ctx, domain.Asset{ID: "id-2", Tag: " a1 ", Status: domain.StatusAvailable})
	if err != domain.ErrDuplicateTag {
		t.Fatalf("expected ErrDuplicateTag, got %v", err)
	}
}

func TestAssetRepositoryUpdateRekeysTag(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository()
	asset := seedAsset(t, repo, "id-1", "A1", "", time.Now().UTC())

	asset.Tag = "B1"
	if err := repo.Update(ctx, asset); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if found, _ := repo.GetByTag(ctx, "a1"); found != nil {
		t.Fatal("old tag key must be removed")
	}
	if found, _ := repo.GetByTag(ctx, "b1"); found == nil {
		t.Fatal("new tag key must resolve")
	}
}

func TestAssetRepositoryListPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository()

	base := time.Now().UTC()
	for i, tag := range []string{"A1", "A2", "A3"} {
		seedAsset(t, repo, tag+"-id", tag, "", base.Add(time.Duration(i)*time.Second))
	}

	page, next, err := repo.List(ctx, nil, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || next == nil {
		t.Fatalf("expected 2 items with cursor, got %d items", len(page))
	}
	if page[0].Tag != "A1" || page[1].Tag != "A2" {
		t.Fatalf("unexpected order: %s, %s", page[0].Tag, page[1].Tag)
	}

	page, next, err = repo.List(ctx, next, 2)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page) != 1 || page[0].Tag != "A3" || next != nil {
		t.Fatalf("unexpected final page: %+v (next=%v)", page, next)
	}
}

func TestActivityRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewActivityRepository()

	for _, action := range []domain.ActivityAction{domain.ActionCreate, domain.ActionCheckout, domain.ActionCheckin} {
		err := repo.Append(ctx, domain.Activity{
			Action:     action,
			EntityType: "asset",
			EntityID:   "id-1",
			OccurredAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	_ = repo.Append(ctx, domain.Activity{Action: domain.ActionCreate, EntityType: "asset", EntityID: "other"})

	entries, err := repo.ListByAsset(ctx, "id-1", 2)
	if err != nil {
		t.Fatalf("ListByAsset: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(entries))
	}
	if entries[0].Action != domain.ActionCheckin || entries[1].Action != domain.ActionCheckout {
		t.Fatalf("expected newest first, got %+v", entries)
	}
	if entries[0].ID <= entries[1].ID {
		t.Fatal("ids must be assigned in append order")
	}
}

func TestAssigneeDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewAssigneeDirectory("user-1")

	if ok, _ := dir.Exists(ctx, "user-1"); !ok {
		t.Fatal("seeded id must exist")
	}
	if ok, _ := dir.Exists(ctx, "user-2"); ok {
		t.Fatal("unknown id must not exist")
	}

	dir.Add("user-2")
	if ok, _ := dir.Exists(ctx, "user-2"); !ok {
		t.Fatal("added id must exist")
	}
}
