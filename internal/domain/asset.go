// Package domain defines the asset lifecycle and reconciliation logic for the inventory service.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced asset cannot be located.
	ErrNotFound = errors.New("asset not found")
	// ErrAssigneeNotFound is returned when a checkout references an unknown assignee.
	ErrAssigneeNotFound = errors.New("assignee not found")
	// ErrInvalidTransition indicates the asset's current status forbids the requested operation.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDuplicateTag indicates a tag collision with another asset record.
	ErrDuplicateTag = errors.New("asset tag already exists")
)

// Status represents the availability state of an asset.
type Status string

const (
	StatusAvailable Status = "available"
	StatusDeployed  Status = "deployed"
	StatusPending   Status = "pending"
	StatusOverdue   Status = "overdue"
	StatusArchived  Status = "archived"
)

// ValidStatus reports whether s is one of the known status values.
func ValidStatus(s Status) bool {
	switch s {
	case StatusAvailable, StatusDeployed, StatusPending, StatusOverdue, StatusArchived:
		return true
	}
	return false
}

// SystemAssignee is the sentinel assignee used for Knox-driven automatic checkouts.
const SystemAssignee = "system"

// Asset is the inventory record tracked by tag.
type Asset struct {
	ID                string
	Tag               string
	Name              string
	Category          string
	Status            Status
	AssigneeID        string
	KnoxID            string
	SerialNumber      string
	Model             string
	Manufacturer      string
	Location          string
	Notes             string
	CheckoutAt        *time.Time
	ExpectedCheckinAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Assigned reports whether the asset is in a custody-holding status.
func (a Asset) Assigned() bool {
	return a.Status == StatusDeployed || a.Status == StatusOverdue
}

// ActivityAction enumerates the auditable operations.
type ActivityAction string

const (
	ActionCreate   ActivityAction = "create"
	ActionUpdate   ActivityAction = "update"
	ActionDelete   ActivityAction = "delete"
	ActionCheckout ActivityAction = "checkout"
	ActionCheckin  ActivityAction = "checkin"
)

// Activity is an immutable audit record appended for every state change.
type Activity struct {
	ID         int64
	Action     ActivityAction
	EntityType string
	EntityID   string
	ActorID    string
	Note       string
	OccurredAt time.Time
}
