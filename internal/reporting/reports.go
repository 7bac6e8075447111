package reporting

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kwachalink/corridor_compliance/internal/audit"
	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/clock"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/logger"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Reports drives the strictly forward-only compliance report lifecycle:
// draft -> generated -> submitted -> archived. No transition ever goes back.
type Reports struct {
	store    store.Store
	recorder *audit.Recorder
	clock    clock.Clock
	logger   *zap.Logger
}

// NewReports wires the report lifecycle. A nil logger disables logging.
func NewReports(st store.Store, recorder *audit.Recorder, clk clock.Clock, log *zap.Logger) *Reports {
	return &Reports{store: st, recorder: recorder, clock: clk, logger: logger.Named(log, "reports")}
}

// CreateDraft opens a report in draft with the supplied metrics.
func (r *Reports) CreateDraft(ctx context.Context, typ models.ReportType, period models.Period, metrics map[string]decimal.Decimal, actorID string) (*models.ComplianceReport, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, errors.Validation("actor id is required")
	}
	if period.End.Before(period.Start) {
		return nil, errors.Validation("report period end precedes start")
	}

	report := &models.ComplianceReport{
		ID:      uuid.NewString(),
		Type:    typ,
		Period:  period,
		Metrics: metrics,
		Status:  models.ReportStatusDraft,
	}

	err := r.store.Transact(ctx, func(st store.Store) error {
		if err := st.SaveReport(ctx, report); err != nil {
			return err
		}
		_, err := r.recorder.Record(ctx, st, models.AuditEntry{
			ActorID:      actorID,
			Action:       models.ActionCreateReport,
			ResourceType: models.ResourceComplianceReport,
			ResourceID:   report.ID,
			Changes: map[string]models.FieldChange{
				"status": {Old: "", New: string(models.ReportStatusDraft)},
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Generate advances draft -> generated and stamps GeneratedAt.
func (r *Reports) Generate(ctx context.Context, reportID, actorID string) error {
	return r.advance(ctx, reportID, actorID, models.ReportStatusGenerated, models.ActionGenerateReport)
}

// Submit advances generated -> submitted.
func (r *Reports) Submit(ctx context.Context, reportID, actorID string) error {
	return r.advance(ctx, reportID, actorID, models.ReportStatusSubmitted, models.ActionSubmitReport)
}

// Archive advances submitted -> archived.
func (r *Reports) Archive(ctx context.Context, reportID, actorID string) error {
	return r.advance(ctx, reportID, actorID, models.ReportStatusArchived, models.ActionArchiveReport)
}

func (r *Reports) advance(ctx context.Context, reportID, actorID string, to models.ReportStatus, action models.AuditAction) error {
	if strings.TrimSpace(actorID) == "" {
		return errors.Validation("actor id is required")
	}

	report, err := r.store.GetReport(ctx, reportID)
	if err != nil {
		return err
	}
	if report.Status.Next() != to {
		return errors.InvalidTransition("report %s cannot move from %s to %s", reportID, report.Status, to)
	}

	old := report.Status
	report.Status = to
	if to == models.ReportStatusGenerated {
		report.GeneratedAt = r.clock.Now()
	}

	err = r.store.Transact(ctx, func(st store.Store) error {
		if err := st.SaveReport(ctx, report); err != nil {
			return err
		}
		_, err := r.recorder.Record(ctx, st, models.AuditEntry{
			ActorID:      actorID,
			Action:       action,
			ResourceType: models.ResourceComplianceReport,
			ResourceID:   report.ID,
			Changes: map[string]models.FieldChange{
				"status": {Old: string(old), New: string(to)},
			},
		})
		return err
	})
	if err != nil {
		return err
	}

	r.logger.Info("report advanced",
		zap.String("report_id", reportID),
		zap.String("status", string(to)),
		zap.String("actor_id", actorID))
	return nil
}
