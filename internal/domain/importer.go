package domain

import (
	"context"
	"fmt"
	"strings"
)

// ImportRow is one candidate asset from an external batch, as loosely
// structured key/value pairs. Recognised keys: tag, name, category, status,
// knox_id, serial_number, model, manufacturer, location, notes.
type ImportRow map[string]string

func (r ImportRow) field(key string) string {
	return strings.TrimSpace(r[key])
}

// ImportOutcome aggregates per-row results for one import call.
type ImportOutcome struct {
	Total   int
	Created int
	Updated int
	Failed  int
	Errors  []string
}

type rowDisposition int

const (
	rowCreated rowDisposition = iota
	rowUpdated
	rowFailed
)

type rowResult struct {
	index       int
	disposition rowDisposition
	err         error
}

// apply folds one row result into the outcome. Error messages carry the
// 1-based row index so callers can attribute failures to input lines.
func (o ImportOutcome) apply(r rowResult) ImportOutcome {
	o.Total++
	switch r.disposition {
	case rowCreated:
		o.Created++
	case rowUpdated:
		o.Updated++
	case rowFailed:
		o.Failed++
		o.Errors = append(o.Errors, fmt.Sprintf("Row %d: %v", r.index, r.err))
	}
	return o
}

var errMissingFields = fmt.Errorf("Missing required fields")

// Importer reconciles external batches against existing inventory.
type Importer struct {
	svc *Service
}

// NewImporter constructs an Importer over the lifecycle service.
func NewImporter(svc *Service) *Importer {
	return &Importer{svc: svc}
}

// Run processes rows sequentially in input order. Every row is matched
// against existing inventory by tag, then by normalized serial number;
// matches become edits and misses become creates, both subject to the Knox
// auto-checkout rule. A failing row is counted and reported, never aborts
// the batch. Rows already committed stay committed if ctx is cancelled
// mid-batch.
func (imp *Importer) Run(ctx context.Context, rows []ImportRow, actorID string) (ImportOutcome, []Asset) {
	outcome := ImportOutcome{}
	results := make([]Asset, 0, len(rows))

	for i, row := range rows {
		index := i + 1
		if err := ctx.Err(); err != nil {
			outcome = outcome.apply(rowResult{index: index, disposition: rowFailed, err: err})
			continue
		}

		asset, disposition, err := imp.reconcileRow(ctx, row, actorID)
		if err != nil {
			outcome = outcome.apply(rowResult{index: index, disposition: rowFailed, err: err})
			continue
		}

		outcome = outcome.apply(rowResult{index: index, disposition: disposition})
		results = append(results, *asset)
	}

	return outcome, results
}

func (imp *Importer) reconcileRow(ctx context.Context, row ImportRow, actorID string) (*Asset, rowDisposition, error) {
	tag := row.field("tag")
	serial := row.field("serial_number")
	knox := row.field("knox_id")

	if tag == "" && (NormalizeKey(serial) == "" || knox == "") {
		return nil, rowFailed, errMissingFields
	}

	existing, err := imp.match(ctx, tag, serial)
	if err != nil {
		return nil, rowFailed, err
	}

	if existing != nil {
		updated, err := imp.svc.ApplyEdit(ctx, existing.Tag, rowPatch(row), actorID)
		if err != nil {
			return nil, rowFailed, err
		}
		return updated, rowUpdated, nil
	}

	if tag == "" {
		// No tag supplied and no serial match; fall back to the serial as tag
		// so the record stays addressable and re-imports stay idempotent.
		tag = serial
	}

	created, err := imp.svc.CreateAsset(ctx, createInput(tag, row), actorID)
	if err != nil {
		return nil, rowFailed, err
	}
	return created, rowCreated, nil
}

func (imp *Importer) match(ctx context.Context, tag, serial string) (*Asset, error) {
	if tag != "" {
		asset, err := imp.svc.assets.GetByTag(ctx, NormalizeKey(tag))
		if err != nil {
			return nil, err
		}
		if asset != nil {
			return asset, nil
		}
		return nil, nil
	}
	return imp.svc.FindBySerial(ctx, serial)
}

func rowPatch(row ImportRow) AssetPatch {
	patch := AssetPatch{}
	setIfPresent(row, "name", &patch.Name)
	setIfPresent(row, "category", &patch.Category)
	setIfPresent(row, "knox_id", &patch.KnoxID)
	setIfPresent(row, "serial_number", &patch.SerialNumber)
	setIfPresent(row, "model", &patch.Model)
	setIfPresent(row, "manufacturer", &patch.Manufacturer)
	setIfPresent(row, "location", &patch.Location)
	setIfPresent(row, "notes", &patch.Notes)
	if raw, ok := row["status"]; ok && strings.TrimSpace(raw) != "" {
		status := Status(NormalizeKey(raw))
		patch.Status = &status
	}
	return patch
}

func createInput(tag string, row ImportRow) CreateAssetInput {
	return CreateAssetInput{
		Tag:          tag,
		Name:         row.field("name"),
		Category:     row.field("category"),
		Status:       Status(NormalizeKey(row["status"])),
		KnoxID:       row.field("knox_id"),
		SerialNumber: row.field("serial_number"),
		Model:        row.field("model"),
		Manufacturer: row.field("manufacturer"),
		Location:     row.field("location"),
		Notes:        row.field("notes"),
	}
}

func setIfPresent(row ImportRow, key string, target **string) {
	if raw, ok := row[key]; ok {
		value := strings.TrimSpace(raw)
		*target = &value
	}
}
