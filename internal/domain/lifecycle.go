package domain

import (
	"fmt"
	"strings"
)

// Transition describes a checkout the state machine decided to perform after
// an edit or create introduced a Knox ID.
type Transition struct {
	AssigneeID string
	Note       string
}

// decideAutoCheckout evaluates the Knox auto-checkout rule. old is nil on the
// creation path. The rule fires only when the edit introduces or changes a
// non-blank Knox ID relative to the stored record; an edit that leaves the
// Knox ID untouched never fires, regardless of status. Clearing a Knox ID
// never fires either.
func decideAutoCheckout(old *Asset, updated Asset) (Transition, bool) {
	knox := strings.TrimSpace(updated.KnoxID)
	if knox == "" {
		return Transition{}, false
	}
	var oldKnox string
	if old != nil {
		oldKnox = old.KnoxID
	}
	if NormalizeKey(knox) == NormalizeKey(oldKnox) {
		return Transition{}, false
	}

	assignee := SystemAssignee
	if old != nil && old.Assigned() && old.AssigneeID != "" {
		// Device already in someone's custody; the Knox change re-documents
		// the checkout rather than reassigning it.
		assignee = old.AssigneeID
	}

	return Transition{
		AssigneeID: assignee,
		Note:       fmt.Sprintf("Asset automatically checked out to KnoxID: %s", knox),
	}, true
}

// enforceInvariants keeps the assignee reference and Knox ID consistent with
// the status: an assignee is present iff the asset is deployed or overdue,
// and the Knox ID is cleared whenever the asset returns to available.
func enforceInvariants(asset *Asset) {
	if !asset.Assigned() {
		asset.AssigneeID = ""
		asset.CheckoutAt = nil
		asset.ExpectedCheckinAt = nil
	}
	if asset.Status == StatusAvailable {
		asset.KnoxID = ""
	}
}
