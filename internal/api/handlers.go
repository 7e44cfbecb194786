// Package api exposes HTTP handlers for the inventory service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kanaye321/inven-sub000/internal/auth"
	"github.com/kanaye321/inven-sub000/internal/domain"
	"github.com/kanaye321/inven-sub000/internal/observability"
	"github.com/kanaye321/inven-sub000/internal/persistence"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service  *domain.Service
	importer *domain.Importer
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, importer *domain.Importer) *Handler {
	return &Handler{service: service, importer: importer}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/assets", h.assets)
	mux.HandleFunc("/v1/assets/", h.assetByTag)
	mux.HandleFunc("/v1/imports", h.bulkImport)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) assets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createAsset(w, r)
	case http.MethodGet:
		h.listAssets(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) assetByTag(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/assets/")
	parts := strings.SplitN(rest, "/", 2)
	tag := parts[0]
	if tag == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing asset tag")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.getAsset(w, r, tag)
		case http.MethodPatch:
			h.updateAsset(w, r, tag)
		case http.MethodDelete:
			h.deleteAsset(w, r, tag)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		}
		return
	}

	switch parts[1] {
	case "checkout":
		h.checkout(w, r, tag)
	case "checkin":
		h.checkin(w, r, tag)
	case "activities":
		h.listActivities(w, r, tag)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

func (h *Handler) createAsset(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeAssetsWrite)
	if !ok {
		return
	}

	var req CreateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	asset, err := h.service.CreateAsset(r.Context(), domain.CreateAssetInput{
		Tag:          req.Tag,
		Name:         req.Name,
		Category:     req.Category,
		Status:       domain.Status(req.Status),
		KnoxID:       req.KnoxID,
		SerialNumber: req.SerialNumber,
		Model:        req.Model,
		Manufacturer: req.Manufacturer,
		Location:     req.Location,
		Notes:        req.Notes,
	}, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.RecordTransition(string(domain.ActionCreate))
	writeJSON(w, http.StatusCreated, toAssetView(*asset))
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request, tag string) {
	if _, ok := requireScope(w, r, auth.ScopeAssetsRead, auth.ScopeAssetsWrite); !ok {
		return
	}

	asset, err := h.service.GetAsset(r.Context(), tag)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssetView(*asset))
}

func (h *Handler) updateAsset(w http.ResponseWriter, r *http.Request, tag string) {
	claims, ok := requireScope(w, r, auth.ScopeAssetsWrite)
	if !ok {
		return
	}

	var req UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	asset, err := h.service.ApplyEdit(r.Context(), tag, req.patch(), claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.RecordTransition(string(domain.ActionUpdate))
	writeJSON(w, http.StatusOK, toAssetView(*asset))
}

func (h *Handler) deleteAsset(w http.ResponseWriter, r *http.Request, tag string) {
	claims, ok := requireScope(w, r, auth.ScopeAssetsWrite)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), tag, claims.Subject); err != nil {
		writeDomainError(w, err)
		return
	}

	observability.RecordTransition(string(domain.ActionDelete))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request, tag string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeAssetsWrite)
	if !ok {
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	asset, err := h.service.Checkout(r.Context(), tag, req.AssigneeID, req.ExpectedCheckinAt, req.Note, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.RecordTransition(string(domain.ActionCheckout))
	writeJSON(w, http.StatusOK, toAssetView(*asset))
}

func (h *Handler) checkin(w http.ResponseWriter, r *http.Request, tag string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeAssetsWrite)
	if !ok {
		return
	}

	asset, err := h.service.Checkin(r.Context(), tag, claims.Subject)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.RecordTransition(string(domain.ActionCheckin))
	writeJSON(w, http.StatusOK, toAssetView(*asset))
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeAssetsRead, auth.ScopeAssetsWrite); !ok {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	assets, next, err := h.service.ListAssets(r.Context(), cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]AssetView, 0, len(assets))
	for _, asset := range assets {
		items = append(items, toAssetView(asset))
	}

	writeJSON(w, http.StatusOK, ListAssetsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request, tag string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := requireScope(w, r, auth.ScopeAssetsRead, auth.ScopeAssetsWrite); !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.service.ListActivities(r.Context(), tag, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toActivityView(entry))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) bulkImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeAssetsImport)
	if !ok {
		return
	}

	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	rows := make([]domain.ImportRow, 0, len(req.Rows))
	for _, raw := range req.Rows {
		rows = append(rows, domain.ImportRow(raw))
	}

	start := time.Now()
	outcome, assets := h.importer.Run(r.Context(), rows, claims.Subject)
	observability.ObserveImportBatch(time.Since(start))
	observability.RecordImportRows("created", outcome.Created)
	observability.RecordImportRows("updated", outcome.Updated)
	observability.RecordImportRows("failed", outcome.Failed)

	items := make([]AssetView, 0, len(assets))
	for _, asset := range assets {
		items = append(items, toAssetView(asset))
	}

	if outcome.Errors == nil {
		outcome.Errors = []string{}
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Total:      outcome.Total,
		Successful: outcome.Created,
		Updated:    outcome.Updated,
		Failed:     outcome.Failed,
		Errors:     outcome.Errors,
		Assets:     items,
	})
}

func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+strings.Join(scopes, " or ")+" required")
	return nil, false
}

// CreateAssetRequest is the payload for POST /v1/assets.
type CreateAssetRequest struct {
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	Status       string `json:"status,omitempty"`
	KnoxID       string `json:"knox_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Model        string `json:"model,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Location     string `json:"location,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Validate ensures request correctness.
func (r CreateAssetRequest) Validate() error {
	if strings.TrimSpace(r.Tag) == "" {
		return errors.New("tag is required")
	}
	return nil
}

// UpdateAssetRequest is the payload for PATCH /v1/assets/{tag}. Absent fields
// are left unchanged.
type UpdateAssetRequest struct {
	Tag               *string    `json:"tag,omitempty"`
	Name              *string    `json:"name,omitempty"`
	Category          *string    `json:"category,omitempty"`
	Status            *string    `json:"status,omitempty"`
	KnoxID            *string    `json:"knox_id,omitempty"`
	SerialNumber      *string    `json:"serial_number,omitempty"`
	Model             *string    `json:"model,omitempty"`
	Manufacturer      *string    `json:"manufacturer,omitempty"`
	Location          *string    `json:"location,omitempty"`
	Notes             *string    `json:"notes,omitempty"`
	ExpectedCheckinAt *time.Time `json:"expected_checkin_at,omitempty"`
}

func (r UpdateAssetRequest) patch() domain.AssetPatch {
	patch := domain.AssetPatch{
		Tag:               r.Tag,
		Name:              r.Name,
		Category:          r.Category,
		KnoxID:            r.KnoxID,
		SerialNumber:      r.SerialNumber,
		Model:             r.Model,
		Manufacturer:      r.Manufacturer,
		Location:          r.Location,
		Notes:             r.Notes,
		ExpectedCheckinAt: r.ExpectedCheckinAt,
	}
	if r.Status != nil {
		status := domain.Status(*r.Status)
		patch.Status = &status
	}
	return patch
}

// CheckoutRequest is the payload for POST /v1/assets/{tag}/checkout.
type CheckoutRequest struct {
	AssigneeID        string     `json:"assignee_id"`
	ExpectedCheckinAt *time.Time `json:"expected_checkin_at,omitempty"`
	Note              string     `json:"note,omitempty"`
}

// Validate ensures request correctness.
func (r CheckoutRequest) Validate() error {
	if strings.TrimSpace(r.AssigneeID) == "" {
		return errors.New("assignee_id is required")
	}
	return nil
}

// ImportRequest is the payload for POST /v1/imports.
type ImportRequest struct {
	Rows []map[string]string `json:"rows"`
}

// ImportResponse reports per-row reconciliation results.
type ImportResponse struct {
	Total      int         `json:"total"`
	Successful int         `json:"successful"`
	Updated    int         `json:"updated"`
	Failed     int         `json:"failed"`
	Errors     []string    `json:"errors"`
	Assets     []AssetView `json:"assets,omitempty"`
}

// AssetView exposes full details about an asset.
type AssetView struct {
	Tag               string     `json:"tag"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	Status            string     `json:"status"`
	AssigneeID        string     `json:"assignee_id,omitempty"`
	KnoxID            string     `json:"knox_id,omitempty"`
	SerialNumber      string     `json:"serial_number,omitempty"`
	Model             string     `json:"model,omitempty"`
	Manufacturer      string     `json:"manufacturer,omitempty"`
	Location          string     `json:"location,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CheckoutAt        *time.Time `json:"checkout_at,omitempty"`
	ExpectedCheckinAt *time.Time `json:"expected_checkin_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// ListAssetsResponse packages list results.
type ListAssetsResponse struct {
	Items      []AssetView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// ActivityView exposes one audit record.
type ActivityView struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ListActivitiesResponse packages audit results.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "asset not found")
	case errors.Is(err, domain.ErrAssigneeNotFound):
		writeError(w, http.StatusNotFound, "not_found", "assignee not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrDuplicateTag):
		writeError(w, http.StatusConflict, "duplicate_tag", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toAssetView(asset domain.Asset) AssetView {
	return AssetView{
		Tag:               asset.Tag,
		Name:              asset.Name,
		Category:          asset.Category,
		Status:            string(asset.Status),
		AssigneeID:        asset.AssigneeID,
		KnoxID:            asset.KnoxID,
		SerialNumber:      asset.SerialNumber,
		Model:             asset.Model,
		Manufacturer:      asset.Manufacturer,
		Location:          asset.Location,
		Notes:             asset.Notes,
		CheckoutAt:        asset.CheckoutAt,
		ExpectedCheckinAt: asset.ExpectedCheckinAt,
		CreatedAt:         asset.CreatedAt,
		UpdatedAt:         asset.UpdatedAt,
	}
}

func toActivityView(entry domain.Activity) ActivityView {
	return ActivityView{
		ID:         entry.ID,
		Action:     string(entry.Action),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		ActorID:    entry.ActorID,
		Note:       entry.Note,
		OccurredAt: entry.OccurredAt,
	}
}
