package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kanaye321/inven-sub000/internal/domain"
	"github.com/kanaye321/inven-sub000/internal/persistence/memory"
)

func newTestService(t *testing.T, assignees ...string) (*domain.Service, *memory.ActivityRepository) {
	t.Helper()
	activities := memory.NewActivityRepository()
	svc := domain.NewService(
		memory.NewAssetRepository(),
		activities,
		memory.NewAssigneeDirectory(assignees...),
	)
	return svc, activities
}

func mustCreate(t *testing.T, svc *domain.Service, input domain.CreateAssetInput) *domain.Asset {
	t.Helper()
	asset, err := svc.CreateAsset(context.Background(), input, "tester")
	require.NoError(t, err)
	return asset
}

func TestCheckoutRequiresAvailable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, "user-1", "user-2")

	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	asset, err := svc.Checkout(ctx, "A1", "user-1", nil, "", "tester")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeployed, asset.Status)
	require.Equal(t, "user-1", asset.AssigneeID)
	require.NotNil(t, asset.CheckoutAt)

	// Already deployed: second checkout must fail and leave the record unchanged.
	_, err = svc.Checkout(ctx, "A1", "user-2", nil, "", "tester")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	current, err := svc.GetAsset(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, "user-1", current.AssigneeID)
}

func TestCheckoutUnknownAssignee(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	_, err := svc.Checkout(context.Background(), "A1", "ghost", nil, "", "tester")
	require.ErrorIs(t, err, domain.ErrAssigneeNotFound)
}

func TestCheckoutUnknownAsset(t *testing.T) {
	svc, _ := newTestService(t, "user-1")

	_, err := svc.Checkout(context.Background(), "missing", "user-1", nil, "", "tester")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckinClearsCustody(t *testing.T) {
	ctx := context.Background()
	svc, activities := newTestService(t, "user-1")

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})
	_, err := svc.Checkout(ctx, "A1", "user-1", nil, "", "tester")
	require.NoError(t, err)

	knox := "K1"
	_, err = svc.ApplyEdit(ctx, "A1", domain.AssetPatch{KnoxID: &knox}, "tester")
	require.NoError(t, err)

	returned, err := svc.Checkin(ctx, "A1", "tester")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAvailable, returned.Status)
	require.Empty(t, returned.AssigneeID)
	require.Empty(t, returned.KnoxID)
	require.Nil(t, returned.CheckoutAt)
	require.Nil(t, returned.ExpectedCheckinAt)

	entries, err := activities.ListByAsset(ctx, asset.ID, 10)
	require.NoError(t, err)
	require.Equal(t, domain.ActionCheckin, entries[0].Action)
}

func TestCheckinRequiresCustody(t *testing.T) {
	ctx := context.Background()
	svc, activities := newTestService(t)

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})
	before, err := activities.ListByAsset(ctx, asset.ID, 10)
	require.NoError(t, err)

	_, err = svc.Checkin(ctx, "A1", "tester")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Record unchanged, no extra activity written.
	current, err := svc.GetAsset(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAvailable, current.Status)

	after, err := activities.ListByAsset(ctx, asset.ID, 10)
	require.NoError(t, err)
	require.Len(t, after, len(before))
}

func TestApplyEditAutoCheckout(t *testing.T) {
	ctx := context.Background()
	svc, activities := newTestService(t)

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	knox := "K1"
	updated, err := svc.ApplyEdit(ctx, "A1", domain.AssetPatch{KnoxID: &knox}, "tester")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeployed, updated.Status)
	require.Equal(t, domain.SystemAssignee, updated.AssigneeID)
	require.Equal(t, "K1", updated.KnoxID)

	entries, err := activities.ListByAsset(ctx, asset.ID, 10)
	require.NoError(t, err)
	// create, update, checkout
	require.Len(t, entries, 3)
	require.Equal(t, domain.ActionCheckout, entries[0].Action)
	require.Contains(t, entries[0].Note, "Asset automatically checked out to KnoxID: K1")
	require.Empty(t, entries[0].ActorID)
}

func TestApplyEditSameKnoxIDIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, activities := newTestService(t)

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1", KnoxID: "K1"})
	require.Equal(t, domain.StatusDeployed, asset.Status)

	knox := "K1"
	_, err := svc.ApplyEdit(ctx, "A1", domain.AssetPatch{KnoxID: &knox}, "tester")
	require.NoError(t, err)

	entries, err := activities.ListByAsset(ctx, asset.ID, 10)
	require.NoError(t, err)
	// create, checkout (from create), update; no second checkout
	require.Len(t, entries, 3)
	require.Equal(t, domain.ActionUpdate, entries[0].Action)
}

func TestApplyEditBlankingKnoxKeepsDeployment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1", KnoxID: "K1"})

	blank := ""
	updated, err := svc.ApplyEdit(ctx, "A1", domain.AssetPatch{KnoxID: &blank}, "tester")
	require.NoError(t, err)
	require.Equal(t, domain.StatusDeployed, updated.Status)
	require.Empty(t, updated.KnoxID)
	require.NotEmpty(t, updated.AssigneeID)
}

func TestApplyEditKeepsOverdueAssetOverdue(t *testing.T) {
	ctx := context.Background()
	svc, activities := newTestService(t)

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1", KnoxID: "K1"})
	require.Equal(t, domain.StatusDeployed, asset.Status)

	overdue := domain.StatusOverdue
	_, err := svc.ApplyEdit(ctx, "A1", domain.AssetPatch{Status: &overdue}, "tester")
	require.NoError(t, err)

	notes := "chased via email"
	updated, err := svc.ApplyEdit(ctx, "A1", domain.AssetPatch{Notes: &notes}, "tester")
	require.NoError(t, err)
	require.Equal(t, domain.StatusOverdue, updated.Status)
	require.Equal(t, "K1", updated.KnoxID)

	entries, err := activities.ListByAsset(ctx, asset.ID, 20)
	require.NoError(t, err)
	checkouts := 0
	for _, entry := range entries {
		if entry.Action == domain.ActionCheckout {
			checkouts++
		}
	}
	require.Equal(t, 1, checkouts, "only the creation checkout may be recorded")
}

func TestApplyEditRejectsBlankStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	blank := domain.Status("")
	_, err := svc.ApplyEdit(ctx, "A1", domain.AssetPatch{Status: &blank}, "tester")
	require.Error(t, err)

	current, err := svc.GetAsset(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusAvailable, current.Status)
}

func TestApplyEditDuplicateTag(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})
	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A2"})

	collide := "a1 "
	_, err := svc.ApplyEdit(ctx, "A2", domain.AssetPatch{Tag: &collide}, "tester")
	require.ErrorIs(t, err, domain.ErrDuplicateTag)
}

func TestCreateDuplicateTag(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	_, err := svc.CreateAsset(context.Background(), domain.CreateAssetInput{Tag: " a1"}, "tester")
	require.ErrorIs(t, err, domain.ErrDuplicateTag)
}

func TestCreateWithKnoxAutoCheckout(t *testing.T) {
	svc, activities := newTestService(t)

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1", KnoxID: "K7"})
	require.Equal(t, domain.StatusDeployed, asset.Status)
	require.Equal(t, domain.SystemAssignee, asset.AssigneeID)

	entries, err := activities.ListByAsset(context.Background(), asset.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, domain.ActionCheckout, entries[0].Action)
}

func TestDeleteWritesActivity(t *testing.T) {
	ctx := context.Background()
	svc, activities := newTestService(t)

	asset := mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	require.NoError(t, svc.Delete(ctx, "A1", "tester"))
	require.ErrorIs(t, svc.Delete(ctx, "A1", "tester"), domain.ErrNotFound)

	_, err := svc.GetAsset(ctx, "A1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := activities.ListByAsset(ctx, asset.ID, 10)
	require.NoError(t, err)
	require.Equal(t, domain.ActionDelete, entries[0].Action)
}

func TestAssigneeInvariantAcrossTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, "user-1")

	mustCreate(t, svc, domain.CreateAssetInput{Tag: "A1"})

	check := func() {
		asset, err := svc.GetAsset(ctx, "A1")
		require.NoError(t, err)
		require.Equal(t, asset.Assigned(), asset.AssigneeID != "",
			"assignee must be present iff status is deployed or overdue (status=%s)", asset.Status)
	}

	check()

	due := time.Now().UTC().Add(72 * time.Hour)
	_, err := svc.Checkout(ctx, "A1", "user-1", &due, "loaner", "tester")
	require.NoError(t, err)
	check()

	overdue := domain.StatusOverdue
	_, err = svc.ApplyEdit(ctx, "A1", domain.AssetPatch{Status: &overdue}, "tester")
	require.NoError(t, err)
	check()

	_, err = svc.Checkin(ctx, "A1", "tester")
	require.NoError(t, err)
	check()

	archived := domain.StatusArchived
	_, err = svc.ApplyEdit(ctx, "A1", domain.AssetPatch{Status: &archived}, "tester")
	require.NoError(t, err)
	check()
}
