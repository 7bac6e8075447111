// Package engine assembles the compliance workflows behind a single facade
// the admin console embeds. Hosts construct it with their store and rate
// table; every state-changing call lands in the audit trail.
package engine

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kwachalink/corridor_compliance/internal/audit"
	"github.com/kwachalink/corridor_compliance/internal/config"
	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/internal/investigation"
	"github.com/kwachalink/corridor_compliance/internal/kyc"
	"github.com/kwachalink/corridor_compliance/internal/reporting"
	"github.com/kwachalink/corridor_compliance/internal/risk"
	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/clock"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Engine is the compliance facade. All methods are safe for concurrent use;
// write races on the same record surface as a ConflictError kind and the
// caller retries with fresh state.
type Engine struct {
	cfg     config.Config
	store   store.Store
	rates   currency.RateTable
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics

	recorder       *audit.Recorder
	kyc            *kyc.Service
	investigations *investigation.Service
	reports        *reporting.Reports
}

// Option customizes engine construction.
type Option func(*Engine)

// WithLogger sets the engine logger. Nil disables logging.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithClock overrides the time source, which tests use to pin timestamps.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New wires the engine over the host's store and rate table.
func New(cfg config.Config, st store.Store, rates currency.RateTable, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg,
		store: st,
		rates: rates,
		clock: clock.Real{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	e.recorder = audit.NewRecorder(e.clock, e.logger)
	e.kyc = kyc.NewService(st, e.recorder, e.clock, cfg.Risk, e.logger)
	e.investigations = investigation.NewService(st, e.recorder, e.clock, cfg.Risk, e.logger)
	e.reports = reporting.NewReports(st, e.recorder, e.clock, e.logger)
	return e
}

// KYC exposes the verification workflow directly.
func (e *Engine) KYC() *kyc.Service { return e.kyc }

// Investigations exposes the flag workflow directly.
func (e *Engine) Investigations() *investigation.Service { return e.investigations }

// Reports exposes the report lifecycle directly.
func (e *Engine) Reports() *reporting.Reports { return e.reports }

// observe counts a completed workflow call and any version conflict behind it.
func (e *Engine) observe(action models.AuditAction, err error) error {
	if err == nil {
		e.metrics.transition(string(action))
	} else if errors.IsKind(err, errors.KindConflict) {
		e.metrics.conflict()
	}
	return err
}

// TransactionInput is a corridor transfer as the upstream API delivers it.
// Amount and Fee take any of the shapes currency.Normalize accepts.
type TransactionInput struct {
	ID         string
	SenderID   string
	ReceiverID string
	Amount     any
	Fee        any
	Status     models.TransactionStatus
	Direction  models.Direction
	CreatedAt  time.Time
}

// ProcessTransaction ingests one transfer: normalizes its amounts, scores it
// against the sender's history, persists it, and auto-flags it when the score
// reaches the high band. The returned flag is nil when no flag was opened.
func (e *Engine) ProcessTransaction(ctx context.Context, in TransactionInput, history risk.History) (*models.Transaction, *models.FlaggedTransaction, error) {
	if in.ID == "" {
		return nil, nil, errors.Validation("transaction id is required")
	}

	amount, err := currency.Normalize(in.Amount, currency.BaseCurrency)
	if err != nil {
		return nil, nil, err
	}
	fee, err := currency.Normalize(in.Fee, amount.Currency)
	if err != nil {
		return nil, nil, err
	}
	net, err := amount.Sub(fee)
	if err != nil {
		return nil, nil, err
	}
	if net.IsNegative() {
		return nil, nil, errors.Validation("fee %s exceeds amount %s", fee, amount)
	}

	tx := &models.Transaction{
		ID:         in.ID,
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Amount:     amount.Round(),
		Fee:        fee.Round(),
		NetAmount:  net.Round(),
		Status:     in.Status,
		Direction:  in.Direction,
		CreatedAt:  in.CreatedAt,
	}
	if tx.Status == "" {
		tx.Status = models.TransactionStatusPending
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = e.clock.Now()
	}

	assessment := risk.ScoreTransaction(*tx, history, e.cfg.Risk)
	tx.RiskScore = assessment.Score
	tx.RiskLevel = assessment.Level
	e.metrics.scored(string(assessment.Level))

	err = e.store.Transact(ctx, func(st store.Store) error {
		// re-ingestion must not clear a flag raised on an earlier pass
		if prev, err := st.GetTransaction(ctx, tx.ID); err == nil {
			tx.Flagged = prev.Flagged
		} else if !errors.IsKind(err, errors.KindNotFound) {
			return err
		}
		if err := st.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		_, err := e.recorder.Record(ctx, st, models.AuditEntry{
			ActorID:      models.SystemActor,
			Action:       models.ActionScore,
			ResourceType: models.ResourceTransaction,
			ResourceID:   tx.ID,
			Changes: map[string]models.FieldChange{
				"risk_score": {Old: "", New: strconv.Itoa(tx.RiskScore)},
				"risk_level": {Old: "", New: string(tx.RiskLevel)},
			},
		})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	var flag *models.FlaggedTransaction
	if assessment.Score >= e.cfg.Risk.HighScoreFloor {
		flag, err = e.investigations.Flag(ctx, tx.ID, "Automatic risk flag", assessment.Factors, assessment.Score, models.SystemActor)
		switch {
		case err == nil:
			tx.Flagged = true
			e.metrics.flagOpened(string(flag.Status))
		case errors.IsKind(err, errors.KindAlreadyFlagged):
			// the existing active flag stays authoritative; the stored
			// Flagged marker was already carried over before the save
			flag = nil
		default:
			return nil, nil, err
		}
	}

	e.logger.Info("transaction processed",
		zap.String("transaction_id", tx.ID),
		zap.Int("risk_score", tx.RiskScore),
		zap.Bool("flagged", flag != nil))
	return tx, flag, nil
}

// ScoreCustomer re-scores a customer profile and persists the result with an
// audit entry.
func (e *Engine) ScoreCustomer(ctx context.Context, customerID string, signals risk.Signals, actorID string) (risk.Assessment, error) {
	if actorID == "" {
		actorID = models.SystemActor
	}

	c, err := e.store.GetCustomer(ctx, customerID)
	if err != nil {
		return risk.Assessment{}, err
	}

	assessment := risk.ScoreCustomer(*c, signals, e.cfg.Risk)
	oldScore, oldLevel := c.RiskScore, c.RiskLevel
	c.RiskScore = assessment.Score
	c.RiskLevel = assessment.Level
	c.UpdatedAt = e.clock.Now()

	err = e.store.Transact(ctx, func(st store.Store) error {
		if err := st.SaveCustomer(ctx, c); err != nil {
			return err
		}
		_, err := e.recorder.Record(ctx, st, models.AuditEntry{
			ActorID:      actorID,
			Action:       models.ActionScore,
			ResourceType: models.ResourceCustomer,
			ResourceID:   c.ID,
			Changes: map[string]models.FieldChange{
				"risk_score": {Old: strconv.Itoa(oldScore), New: strconv.Itoa(assessment.Score)},
				"risk_level": {Old: string(oldLevel), New: string(assessment.Level)},
			},
		})
		return err
	})
	if err = e.observe(models.ActionScore, err); err != nil {
		return risk.Assessment{}, err
	}
	e.metrics.scored(string(assessment.Level))
	return assessment, nil
}

// ApproveKYC approves a customer's verification. A Critical-risk customer
// requires a non-empty override reason from a human actor.
func (e *Engine) ApproveKYC(ctx context.Context, customerID, actorID, overrideReason string) error {
	return e.observe(models.ActionApprove, e.kyc.Approve(ctx, customerID, actorID, overrideReason))
}

// RejectKYC rejects a customer's verification with a mandatory reason.
func (e *Engine) RejectKYC(ctx context.Context, customerID, actorID, reason string) error {
	return e.observe(models.ActionReject, e.kyc.Reject(ctx, customerID, actorID, reason))
}

// RequestKYCReview moves a pending customer to under-review.
func (e *Engine) RequestKYCReview(ctx context.Context, customerID, actorID string) error {
	return e.observe(models.ActionRequestReview, e.kyc.RequestReview(ctx, customerID, actorID))
}

// BlockAccount blocks a customer account with a mandatory reason.
func (e *Engine) BlockAccount(ctx context.Context, customerID, actorID, reason string) error {
	return e.observe(models.ActionBlock, e.kyc.Block(ctx, customerID, actorID, reason))
}

// UnblockAccount reinstates a blocked account.
func (e *Engine) UnblockAccount(ctx context.Context, customerID, actorID, reason string) error {
	return e.observe(models.ActionUnblock, e.kyc.Unblock(ctx, customerID, actorID, reason))
}

// VerifyDocument marks a pending KYC document verified.
func (e *Engine) VerifyDocument(ctx context.Context, customerID, documentID, actorID string) error {
	return e.observe(models.ActionVerifyDocument, e.kyc.VerifyDocument(ctx, customerID, documentID, actorID))
}

// RejectDocument marks a pending KYC document rejected with a mandatory reason.
func (e *Engine) RejectDocument(ctx context.Context, customerID, documentID, actorID, reason string) error {
	return e.observe(models.ActionRejectDocument, e.kyc.RejectDocument(ctx, customerID, documentID, actorID, reason))
}

// FlagTransaction opens a manual flag on a transaction.
func (e *Engine) FlagTransaction(ctx context.Context, transactionID, reason string, riskFactors []string, riskScore int, actorID string) (*models.FlaggedTransaction, error) {
	flag, err := e.investigations.Flag(ctx, transactionID, reason, riskFactors, riskScore, actorID)
	if err = e.observe(models.ActionFlag, err); err != nil {
		return nil, err
	}
	e.metrics.flagOpened(string(flag.Status))
	return flag, nil
}

// AssignFlag hands a flag to an investigator.
func (e *Engine) AssignFlag(ctx context.Context, flagID, userID, actorID string) error {
	return e.observe(models.ActionAssign, e.investigations.Assign(ctx, flagID, userID, actorID))
}

// ResolveFlag closes a flag with a resolution note.
func (e *Engine) ResolveFlag(ctx context.Context, flagID, note, actorID string) error {
	return e.observe(models.ActionResolve, e.investigations.Resolve(ctx, flagID, note, actorID))
}

// EscalateFlag closes a flag upward with a note.
func (e *Engine) EscalateFlag(ctx context.Context, flagID, note, actorID string) error {
	return e.observe(models.ActionEscalate, e.investigations.Escalate(ctx, flagID, note, actorID))
}

// AddFlagNote appends an investigation note.
func (e *Engine) AddFlagNote(ctx context.Context, flagID, note, actorID string) error {
	return e.observe(models.ActionAddNote, e.investigations.AddNote(ctx, flagID, note, actorID))
}

// ReopenFlag moves a closed flag back under investigation.
func (e *Engine) ReopenFlag(ctx context.Context, flagID, reason, actorID string) error {
	return e.observe(models.ActionReopen, e.investigations.Reopen(ctx, flagID, reason, actorID))
}

// GetRiskLevel returns the stored risk band for a customer or transaction.
func (e *Engine) GetRiskLevel(ctx context.Context, rt models.ResourceType, id string) (models.RiskLevel, error) {
	switch rt {
	case models.ResourceCustomer:
		c, err := e.store.GetCustomer(ctx, id)
		if err != nil {
			return "", err
		}
		if c.RiskLevel == "" {
			return e.cfg.Risk.Level(c.RiskScore), nil
		}
		return c.RiskLevel, nil
	case models.ResourceTransaction:
		t, err := e.store.GetTransaction(ctx, id)
		if err != nil {
			return "", err
		}
		if t.RiskLevel == "" {
			return e.cfg.Risk.Level(t.RiskScore), nil
		}
		return t.RiskLevel, nil
	default:
		return "", errors.Validation("resource type %q has no risk level", rt)
	}
}

// GetAuditTrail returns the full ordered history of one resource.
func (e *Engine) GetAuditTrail(ctx context.Context, rt models.ResourceType, id string) ([]models.AuditEntry, error) {
	return e.recorder.QueryByResource(ctx, e.store, rt, id)
}

// ExportAudit returns every audit entry in [start, end], both bounds
// inclusive, for regulator handover.
func (e *Engine) ExportAudit(ctx context.Context, start, end time.Time) ([]models.AuditEntry, error) {
	return e.recorder.ExportRange(ctx, e.store, start, end)
}

// DashboardSnapshot aggregates the dashboard KPIs for the period. The period
// and as-of time are explicit so historical snapshots reproduce exactly.
func (e *Engine) DashboardSnapshot(ctx context.Context, period models.Period, asOf time.Time) (*reporting.Snapshot, error) {
	previous := period.Previous()
	txs, err := e.store.ListTransactions(ctx, models.Period{Start: previous.Start, End: period.End})
	if err != nil {
		return nil, err
	}
	users, err := e.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return reporting.Aggregate(reporting.Input{
		Transactions:      txs,
		Users:             users,
		Rates:             e.rates,
		Period:            period,
		AsOf:              asOf,
		ReportingCurrency: e.cfg.Risk.ReportingCurrency,
		ForexBase:         e.cfg.ForexBase,
		ForexQuote:        e.cfg.ForexQuote,
	})
}

// GenerateComplianceReport aggregates the period, opens a draft report with
// the snapshot metrics, and advances it to generated.
func (e *Engine) GenerateComplianceReport(ctx context.Context, typ models.ReportType, period models.Period, asOf time.Time, actorID string) (*models.ComplianceReport, error) {
	snap, err := e.DashboardSnapshot(ctx, period, asOf)
	if err != nil {
		return nil, err
	}

	report, err := e.reports.CreateDraft(ctx, typ, period, snap.Metrics(), actorID)
	if err = e.observe(models.ActionCreateReport, err); err != nil {
		return nil, err
	}
	if err := e.observe(models.ActionGenerateReport, e.reports.Generate(ctx, report.ID, actorID)); err != nil {
		return nil, err
	}
	return e.store.GetReport(ctx, report.ID)
}

// SubmitReport advances a generated report to submitted.
func (e *Engine) SubmitReport(ctx context.Context, reportID, actorID string) error {
	return e.observe(models.ActionSubmitReport, e.reports.Submit(ctx, reportID, actorID))
}

// ArchiveReport advances a submitted report to archived.
func (e *Engine) ArchiveReport(ctx context.Context, reportID, actorID string) error {
	return e.observe(models.ActionArchiveReport, e.reports.Archive(ctx, reportID, actorID))
}

// ConvertAmount converts an amount through the engine's rate table, failing
// closed when no rate exists for the pair.
func (e *Engine) ConvertAmount(amount currency.Money, to currency.Code, asOf time.Time) (currency.Money, error) {
	return currency.Convert(amount, to, e.rates, asOf)
}

// EstimateAmount converts like ConvertAmount but falls back to a 1:1 rate
// when none exists, reporting the fallback through the second return.
func (e *Engine) EstimateAmount(amount currency.Money, to currency.Code, asOf time.Time) (currency.Money, bool) {
	return currency.ConvertEstimated(amount, to, e.rates, asOf)
}
