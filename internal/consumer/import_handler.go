package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kanaye321/inven-sub000/internal/domain"
	"github.com/kanaye321/inven-sub000/internal/events"
	"github.com/kanaye321/inven-sub000/internal/observability"
)

// EventTypeImportRequested identifies reconciliation batches on the feed topic.
const EventTypeImportRequested = "asset.import_requested"

// ImportHandler drives the bulk reconciliation importer from feed messages.
type ImportHandler struct {
	importer *domain.Importer
	actorID  string
	logger   *log.Logger
}

// NewImportHandler constructs an ImportHandler. actorID is recorded on
// activities when the batch itself carries no actor.
func NewImportHandler(importer *domain.Importer, actorID string) *ImportHandler {
	return &ImportHandler{
		importer: importer,
		actorID:  actorID,
		logger:   log.New(log.Writer(), "[import-feed] ", log.LstdFlags),
	}
}

// Handle decodes an import request and runs the batch. The importer contains
// per-row failures itself, so a handler error here means the message could
// not be decoded into a batch at all.
func (h *ImportHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != EventTypeImportRequested {
		// Unknown event types are committed and skipped, not retried.
		h.logger.Printf("skipping event_type=%s", msg.EventType)
		return nil
	}

	var request events.ImportRequested
	if err := json.Unmarshal(msg.Payload, &request); err != nil {
		return fmt.Errorf("decode import request: %w", err)
	}

	actor := request.ActorID
	if actor == "" {
		actor = h.actorID
	}

	rows := make([]domain.ImportRow, 0, len(request.Rows))
	for _, raw := range request.Rows {
		rows = append(rows, domain.ImportRow(raw))
	}

	start := time.Now()
	outcome, _ := h.importer.Run(ctx, rows, actor)
	observability.ObserveImportBatch(time.Since(start))
	observability.RecordImportRows("created", outcome.Created)
	observability.RecordImportRows("updated", outcome.Updated)
	observability.RecordImportRows("failed", outcome.Failed)

	h.logger.Printf("import batch done (total=%d created=%d updated=%d failed=%d)",
		outcome.Total, outcome.Created, outcome.Updated, outcome.Failed)
	for _, msg := range outcome.Errors {
		h.logger.Printf("import batch: %s", msg)
	}
	return nil
}
