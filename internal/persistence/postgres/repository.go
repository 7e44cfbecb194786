// Package postgres provides pgx-backed persistence for assets, the activity
// log, and the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanaye321/inven-sub000/internal/domain"
	"github.com/kanaye321/inven-sub000/internal/events"
	"github.com/kanaye321/inven-sub000/internal/observability"
)

const assetColumns = `asset_id, tag, name, category, status, assignee_id, knox_id,
        serial_number, model, manufacturer, location, notes,
        checkout_at, expected_checkin_at, created_at, updated_at`

// AssetRepository persists asset records and emits state-change outbox events
// in the same transaction as the mutation they describe.
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository constructs an AssetRepository.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// GetByTag fetches by normalized tag. Returns (nil, nil) when absent.
func (r *AssetRepository) GetByTag(ctx context.Context, tag string) (*domain.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE lower(trim(tag))=$1`, assetColumns)
	return r.getOne(ctx, query, tag)
}

// GetBySerial fetches by normalized serial number. Returns (nil, nil) when absent.
func (r *AssetRepository) GetBySerial(ctx context.Context, serial string) (*domain.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM assets WHERE lower(trim(serial_number))=$1 LIMIT 1`, assetColumns)
	return r.getOne(ctx, query, serial)
}

func (r *AssetRepository) getOne(ctx context.Context, query string, arg any) (*domain.Asset, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	asset, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return asset, nil
}

// List returns assets ordered by creation time then id, with cursor paging.
func (r *AssetRepository) List(ctx context.Context, cursor *domain.Cursor, limit int) ([]domain.Asset, *domain.Cursor, error) {
	args := []any{limit}
	query := fmt.Sprintf(`SELECT %s FROM assets`, assetColumns)
	if cursor != nil {
		query += ` WHERE (created_at, asset_id) > ($2, $3)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}
	query += ` ORDER BY created_at, asset_id LIMIT $1`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Asset, 0, limit)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *asset)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return results, next, nil
}

// Create inserts the record and an asset.state_changed outbox row in one transaction.
func (r *AssetRepository) Create(ctx context.Context, asset domain.Asset) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO assets (asset_id, tag, name, category, status, assignee_id, knox_id,
	        serial_number, model, manufacturer, location, notes,
	        checkout_at, expected_checkin_at, created_at, updated_at)
	        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = tx.Exec(ctx, stmt,
		asset.ID,
		asset.Tag,
		asset.Name,
		asset.Category,
		asset.Status,
		nullIfEmpty(asset.AssigneeID),
		nullIfEmpty(asset.KnoxID),
		asset.SerialNumber,
		asset.Model,
		asset.Manufacturer,
		asset.Location,
		asset.Notes,
		asset.CheckoutAt,
		asset.ExpectedCheckinAt,
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		return translateError(err)
	}

	if err = insertStateChanged(ctx, tx, asset); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// Update rewrites the record and records the state change in the outbox.
func (r *AssetRepository) Update(ctx context.Context, asset domain.Asset) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `UPDATE assets SET tag=$2, name=$3, category=$4, status=$5, assignee_id=$6,
	        knox_id=$7, serial_number=$8, model=$9, manufacturer=$10, location=$11, notes=$12,
	        checkout_at=$13, expected_checkin_at=$14, updated_at=$15
	        WHERE asset_id=$1`

	ct, err := tx.Exec(ctx, stmt,
		asset.ID,
		asset.Tag,
		asset.Name,
		asset.Category,
		asset.Status,
		nullIfEmpty(asset.AssigneeID),
		nullIfEmpty(asset.KnoxID),
		asset.SerialNumber,
		asset.Model,
		asset.Manufacturer,
		asset.Location,
		asset.Notes,
		asset.CheckoutAt,
		asset.ExpectedCheckinAt,
		asset.UpdatedAt,
	)
	if err != nil {
		return translateError(err)
	}
	if ct.RowsAffected() == 0 {
		err = domain.ErrNotFound
		return err
	}

	if err = insertStateChanged(ctx, tx, asset); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	return err
}

// Delete removes the record.
func (r *AssetRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM assets WHERE asset_id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func insertStateChanged(ctx context.Context, tx pgx.Tx, asset domain.Asset) error {
	payload := events.AssetStateChanged{
		AssetID:    asset.ID,
		Tag:        asset.Tag,
		Status:     string(asset.Status),
		AssigneeID: asset.AssigneeID,
		KnoxID:     asset.KnoxID,
		OccurredAt: asset.UpdatedAt,
	}
	dedupeKey := fmt.Sprintf("%s:asset.state_changed:%d", asset.ID, asset.UpdatedAt.UnixNano())
	return insertOutbox(ctx, tx, "asset", asset.ID, "asset.state_changed", asset.ID, dedupeKey, payload)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey, dedupeKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
	        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

// ActivityRepository appends audit records alongside their outbox mirror.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// Append inserts the activity record and an asset.activity_recorded outbox
// row in a single transaction. Activity rows are never updated or deleted.
func (r *ActivityRepository) Append(ctx context.Context, activity domain.Activity) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const stmt = `INSERT INTO activities (action, entity_type, entity_id, actor_id, note, occurred_at)
	        VALUES ($1,$2,$3,$4,$5,$6) RETURNING activity_id`

	var id int64
	if err = tx.QueryRow(ctx, stmt,
		activity.Action,
		activity.EntityType,
		activity.EntityID,
		nullIfEmpty(activity.ActorID),
		activity.Note,
		activity.OccurredAt,
	).Scan(&id); err != nil {
		return err
	}

	payload := events.ActivityRecorded{
		Action:     string(activity.Action),
		EntityType: activity.EntityType,
		EntityID:   activity.EntityID,
		ActorID:    activity.ActorID,
		Note:       activity.Note,
		OccurredAt: activity.OccurredAt,
	}
	dedupeKey := fmt.Sprintf("activity:%d", id)
	if err = insertOutbox(ctx, tx, "activity", activity.EntityID, "asset.activity_recorded", activity.EntityID, dedupeKey, payload); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityAppended(activity.OccurredAt)
	return nil
}

// ListByAsset returns activity entries for the asset, newest first.
func (r *ActivityRepository) ListByAsset(ctx context.Context, assetID string, limit int) ([]domain.Activity, error) {
	const query = `SELECT activity_id, action, entity_type, entity_id, COALESCE(actor_id, ''), note, occurred_at
	        FROM activities WHERE entity_type='asset' AND entity_id=$1
	        ORDER BY activity_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, assetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Activity, 0, limit)
	for rows.Next() {
		var entry domain.Activity
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.ActorID, &entry.Note, &entry.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// AssigneeDirectory resolves assignees against the users table.
type AssigneeDirectory struct {
	pool *pgxpool.Pool
}

// NewAssigneeDirectory constructs an AssigneeDirectory.
func NewAssigneeDirectory(pool *pgxpool.Pool) *AssigneeDirectory {
	return &AssigneeDirectory{pool: pool}
}

// Exists implements domain.AssigneeDirectory.
func (d *AssigneeDirectory) Exists(ctx context.Context, assigneeID string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id=$1)`, assigneeID).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var (
		asset      domain.Asset
		assignee   *string
		knox       *string
		checkout   *time.Time
		expectedAt *time.Time
	)
	if err := row.Scan(
		&asset.ID,
		&asset.Tag,
		&asset.Name,
		&asset.Category,
		&asset.Status,
		&assignee,
		&knox,
		&asset.SerialNumber,
		&asset.Model,
		&asset.Manufacturer,
		&asset.Location,
		&asset.Notes,
		&checkout,
		&expectedAt,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if assignee != nil {
		asset.AssigneeID = *assignee
	}
	if knox != nil {
		asset.KnoxID = *knox
	}
	asset.CheckoutAt = checkout
	asset.ExpectedCheckinAt = expectedAt
	return &asset, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// translateError maps unique-constraint violations to the domain sentinel.
func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.ErrDuplicateTag
	}
	return err
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	"asset.state_changed": {
		Topic:         "asset_state_changed",
		SchemaSubject: "asset_state_changed-value",
	},
	"asset.activity_recorded": {
		Topic:         "asset_activity",
		SchemaSubject: "asset_activity-value",
	},
}
