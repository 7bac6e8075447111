// Package audit implements the append-only audit trail recorder. Every
// state-changing action in the engine is written through it; nothing in its
// contract updates or deletes an entry once recorded.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/clock"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/logger"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Recorder assigns identifiers and per-resource monotonic ordering to audit
// entries. It writes through whatever store handle the caller passes, so a
// workflow can record inside its own transaction and keep the status change
// and its audit entry atomic.
type Recorder struct {
	clock  clock.Clock
	logger *zap.Logger
}

// NewRecorder creates a recorder. A nil logger disables logging.
func NewRecorder(clk clock.Clock, log *zap.Logger) *Recorder {
	return &Recorder{clock: clk, logger: logger.Named(log, "audit")}
}

// Record validates, stamps, and appends one entry. The timestamp is clamped
// so it never precedes the previous entry for the same resource; Seq breaks
// remaining ties in insertion order.
func (r *Recorder) Record(ctx context.Context, st store.Store, e models.AuditEntry) (models.AuditEntry, error) {
	if e.ActorID == "" {
		return models.AuditEntry{}, errors.Validation("audit entry requires an actor id")
	}
	if e.Action == "" {
		return models.AuditEntry{}, errors.Validation("audit entry requires an action")
	}
	if e.ResourceType == "" || e.ResourceID == "" {
		return models.AuditEntry{}, errors.Validation("audit entry requires a resource reference")
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = r.clock.Now()
	}

	last, err := st.LastAudit(ctx, e.ResourceType, e.ResourceID)
	if err != nil {
		return models.AuditEntry{}, err
	}
	if last != nil {
		if e.Timestamp.Before(last.Timestamp) {
			e.Timestamp = last.Timestamp
		}
		e.Seq = last.Seq + 1
	} else {
		e.Seq = 1
	}

	if err := st.AppendAudit(ctx, e); err != nil {
		return models.AuditEntry{}, err
	}

	r.logger.Debug("audit entry recorded",
		zap.String("entry_id", e.ID),
		zap.String("action", string(e.Action)),
		zap.String("resource_type", string(e.ResourceType)),
		zap.String("resource_id", e.ResourceID),
		zap.String("actor_id", e.ActorID))

	return e, nil
}

// QueryByResource returns the full trail for one resource in ascending
// timestamp order, insertion order breaking ties.
func (r *Recorder) QueryByResource(ctx context.Context, st store.Store, rt models.ResourceType, id string) ([]models.AuditEntry, error) {
	return st.AuditByResource(ctx, rt, id)
}

// ExportRange returns every entry whose timestamp falls in [start, end], both
// boundaries inclusive. It is a pure read for compliance export.
func (r *Recorder) ExportRange(ctx context.Context, st store.Store, start, end time.Time) ([]models.AuditEntry, error) {
	if end.Before(start) {
		return nil, errors.Validation("export range end precedes start")
	}
	return st.AuditRange(ctx, start, end)
}
