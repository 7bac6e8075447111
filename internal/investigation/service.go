// Package investigation implements the flagged-transaction workflow.
//
// Lifecycle: pending_review -> {investigating, resolved, escalated} and
// investigating -> {resolved, escalated}. Resolved and escalated are terminal;
// the only way out is an audited re-open. At most one active flag exists per
// transaction at any time.
package investigation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kwachalink/corridor_compliance/internal/audit"
	"github.com/kwachalink/corridor_compliance/internal/risk"
	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/clock"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/logger"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Service drives flag creation and investigation transitions.
type Service struct {
	store    store.Store
	recorder *audit.Recorder
	clock    clock.Clock
	cfg      risk.Config
	logger   *zap.Logger
}

// NewService wires the workflow. A nil logger disables logging.
func NewService(st store.Store, recorder *audit.Recorder, clk clock.Clock, cfg risk.Config, log *zap.Logger) *Service {
	return &Service{store: st, recorder: recorder, clock: clk, cfg: cfg, logger: logger.Named(log, "investigation")}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// Flag opens a flag on a transaction. The reason is mandatory, a second
// active flag is refused, and scores above the auto-escalation floor skip
// manual triage: the flag opens directly under investigation with a
// system-generated note.
func (s *Service) Flag(ctx context.Context, transactionID, reason string, riskFactors []string, riskScore int, actorID string) (*models.FlaggedTransaction, error) {
	if blank(actorID) {
		return nil, errors.Validation("actor id is required")
	}
	if blank(reason) {
		return nil, errors.Validation("flagging requires a non-empty reason")
	}
	if riskScore > s.cfg.HighScoreFloor && len(riskFactors) == 0 {
		return nil, errors.Validation("risk factors are required for scores above %d", s.cfg.HighScoreFloor)
	}

	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.store.ActiveFlagForTransaction(ctx, transactionID); err == nil {
		return nil, errors.AlreadyFlagged("transaction %s already has active flag %s", transactionID, existing.ID)
	} else if !errors.IsKind(err, errors.KindNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	flag := &models.FlaggedTransaction{
		ID:            uuid.NewString(),
		TransactionID: transactionID,
		FlagReason:    strings.TrimSpace(reason),
		RiskFactors:   riskFactors,
		RiskScore:     riskScore,
		Status:        models.FlagStatusPendingReview,
		Notes:         []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if riskScore > s.cfg.AutoEscalateScoreFloor {
		flag.Status = models.FlagStatusInvestigating
		flag.Notes = append(flag.Notes,
			fmt.Sprintf("Auto-escalated: risk score %d exceeds the %d threshold", riskScore, s.cfg.AutoEscalateScoreFloor))
	}

	tx.Flagged = true
	tx.RiskScore = riskScore
	tx.RiskLevel = s.cfg.Level(riskScore)

	err = s.store.Transact(ctx, func(st store.Store) error {
		if err := st.SaveFlag(ctx, flag); err != nil {
			return err
		}
		if err := st.SaveTransaction(ctx, tx); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, st, models.AuditEntry{
			ActorID:      actorID,
			Action:       models.ActionFlag,
			ResourceType: models.ResourceFlaggedTransaction,
			ResourceID:   flag.ID,
			Reason:       flag.FlagReason,
			Changes: map[string]models.FieldChange{
				"status": {Old: "", New: string(flag.Status)},
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction flagged",
		zap.String("flag_id", flag.ID),
		zap.String("transaction_id", transactionID),
		zap.Int("risk_score", riskScore),
		zap.String("status", string(flag.Status)))
	return flag, nil
}

// Assign hands a flag to an investigator. Assigning a pending_review flag
// moves it to investigating as a side effect.
func (s *Service) Assign(ctx context.Context, flagID, userID, actorID string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}
	if blank(userID) {
		return errors.Validation("assignee is required")
	}

	f, err := s.store.GetFlag(ctx, flagID)
	if err != nil {
		return err
	}
	if f.Status.Terminal() {
		return errors.InvalidTransition("cannot assign flag %s in terminal status %s", flagID, f.Status)
	}

	return s.transition(ctx, f, models.ActionAssign, actorID, "", func(f *models.FlaggedTransaction) map[string]models.FieldChange {
		changes := map[string]models.FieldChange{
			"assigned_to": {Old: f.AssignedTo, New: userID},
		}
		f.AssignedTo = userID
		if f.Status == models.FlagStatusPendingReview {
			changes["status"] = models.FieldChange{Old: string(f.Status), New: string(models.FlagStatusInvestigating)}
			f.Status = models.FlagStatusInvestigating
		}
		return changes
	})
}

// Resolve closes a flag with a mandatory resolution note.
func (s *Service) Resolve(ctx context.Context, flagID, resolutionNote, actorID string) error {
	return s.close(ctx, flagID, resolutionNote, actorID, models.FlagStatusResolved, models.ActionResolve)
}

// Escalate closes a flag upward with a mandatory note.
func (s *Service) Escalate(ctx context.Context, flagID, note, actorID string) error {
	return s.close(ctx, flagID, note, actorID, models.FlagStatusEscalated, models.ActionEscalate)
}

func (s *Service) close(ctx context.Context, flagID, note, actorID string, to models.FlagStatus, action models.AuditAction) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}
	if blank(note) {
		return errors.Validation("a non-empty note is required")
	}

	f, err := s.store.GetFlag(ctx, flagID)
	if err != nil {
		return err
	}
	if f.Status.Terminal() {
		return errors.InvalidTransition("flag %s is already %s", flagID, f.Status)
	}

	return s.transition(ctx, f, action, actorID, note, func(f *models.FlaggedTransaction) map[string]models.FieldChange {
		old := f.Status
		f.Status = to
		f.Notes = appendNote(f.Notes, note)
		return map[string]models.FieldChange{
			"status": {Old: string(old), New: string(to)},
		}
	})
}

// AddNote appends a note without changing status. Permitted in any
// non-terminal state; still audited.
func (s *Service) AddNote(ctx context.Context, flagID, note, actorID string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}
	if blank(note) {
		return errors.Validation("a non-empty note is required")
	}

	f, err := s.store.GetFlag(ctx, flagID)
	if err != nil {
		return err
	}
	if f.Status.Terminal() {
		return errors.InvalidTransition("cannot add a note to flag %s in terminal status %s", flagID, f.Status)
	}

	return s.transition(ctx, f, models.ActionAddNote, actorID, note, func(f *models.FlaggedTransaction) map[string]models.FieldChange {
		f.Notes = appendNote(f.Notes, note)
		return nil
	})
}

// Reopen moves a terminal flag back under investigation. It is the only exit
// from a terminal state and is always recorded as a new audit entry, never a
// silent mutation. It refuses to create a second active flag.
func (s *Service) Reopen(ctx context.Context, flagID, reason, actorID string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}
	if blank(reason) {
		return errors.Validation("reopening requires a non-empty reason")
	}

	f, err := s.store.GetFlag(ctx, flagID)
	if err != nil {
		return err
	}
	if !f.Status.Terminal() {
		return errors.InvalidTransition("flag %s is not in a terminal status", flagID)
	}
	if existing, err := s.store.ActiveFlagForTransaction(ctx, f.TransactionID); err == nil {
		return errors.AlreadyFlagged("transaction %s already has active flag %s", f.TransactionID, existing.ID)
	} else if !errors.IsKind(err, errors.KindNotFound) {
		return err
	}

	return s.transition(ctx, f, models.ActionReopen, actorID, reason, func(f *models.FlaggedTransaction) map[string]models.FieldChange {
		old := f.Status
		f.Status = models.FlagStatusInvestigating
		f.Notes = appendNote(f.Notes, reason)
		return map[string]models.FieldChange{
			"status": {Old: string(old), New: string(f.Status)},
		}
	})
}

func appendNote(notes []string, note string) []string {
	out := make([]string, len(notes), len(notes)+1)
	copy(out, notes)
	return append(out, strings.TrimSpace(note))
}

// transition applies mutate and commits the flag save and audit entry in one
// store transaction, with the optimistic version check surfacing concurrent
// writers as ConflictError.
func (s *Service) transition(ctx context.Context, f *models.FlaggedTransaction, action models.AuditAction, actorID, reason string, mutate func(*models.FlaggedTransaction) map[string]models.FieldChange) error {
	changes := mutate(f)
	f.UpdatedAt = s.clock.Now()

	err := s.store.Transact(ctx, func(st store.Store) error {
		if err := st.SaveFlag(ctx, f); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, st, models.AuditEntry{
			ActorID:      actorID,
			Action:       action,
			ResourceType: models.ResourceFlaggedTransaction,
			ResourceID:   f.ID,
			Reason:       strings.TrimSpace(reason),
			Changes:      changes,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("flag transition applied",
		zap.String("flag_id", f.ID),
		zap.String("action", string(action)),
		zap.String("actor_id", actorID))
	return nil
}
