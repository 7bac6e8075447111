// Package kyc implements the customer verification workflow state machine.
//
// Valid transitions: Pending -> {Approved, Rejected, UnderReview} and
// UnderReview -> {Approved, Rejected}. Approved and Rejected end the cycle;
// a re-submission opens a new cycle instead of reopening the old one.
// Every transition writes exactly one audit entry, atomically with the
// customer's status change.
package kyc

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kwachalink/corridor_compliance/internal/audit"
	"github.com/kwachalink/corridor_compliance/internal/risk"
	"github.com/kwachalink/corridor_compliance/internal/store"
	"github.com/kwachalink/corridor_compliance/pkg/clock"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/logger"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Service drives KYC transitions for customers.
type Service struct {
	store    store.Store
	recorder *audit.Recorder
	clock    clock.Clock
	cfg      risk.Config
	logger   *zap.Logger
}

// NewService wires the workflow. A nil logger disables logging.
func NewService(st store.Store, recorder *audit.Recorder, clk clock.Clock, cfg risk.Config, log *zap.Logger) *Service {
	return &Service{store: st, recorder: recorder, clock: clk, cfg: cfg, logger: logger.Named(log, "kyc")}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// canDecide reports whether the current status allows an approve/reject.
func canDecide(status models.KYCStatus) bool {
	return status == models.KYCStatusPending || status == models.KYCStatusUnderReview
}

// Approve moves a customer to Approved. Customers banded Critical cannot be
// approved without a manual override: a non-empty overrideReason from a human
// actor, which is recorded on the audit entry.
func (s *Service) Approve(ctx context.Context, customerID, actorID, overrideReason string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}

	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if !canDecide(c.KYCStatus) {
		return errors.InvalidTransition("cannot approve customer %s in status %s", customerID, c.KYCStatus)
	}
	if s.cfg.Level(c.RiskScore) == risk.RiskLevelCritical {
		if blank(overrideReason) {
			return errors.RiskGate("customer %s is at critical risk; approval requires a manual override reason", customerID)
		}
		if actorID == models.SystemActor {
			return errors.RiskGate("customer %s is at critical risk; the system cannot self-approve", customerID)
		}
	}

	return s.transition(ctx, c, models.ActionApprove, actorID, overrideReason, func(c *models.Customer) map[string]models.FieldChange {
		old := c.KYCStatus
		c.KYCStatus = models.KYCStatusApproved
		return map[string]models.FieldChange{
			"kyc_status": {Old: string(old), New: string(c.KYCStatus)},
		}
	})
}

// Reject moves a customer to Rejected. A reason is mandatory.
func (s *Service) Reject(ctx context.Context, customerID, actorID, reason string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}
	if blank(reason) {
		return errors.Validation("rejection requires a non-empty reason")
	}

	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if !canDecide(c.KYCStatus) {
		return errors.InvalidTransition("cannot reject customer %s in status %s", customerID, c.KYCStatus)
	}

	return s.transition(ctx, c, models.ActionReject, actorID, reason, func(c *models.Customer) map[string]models.FieldChange {
		old := c.KYCStatus
		c.KYCStatus = models.KYCStatusRejected
		return map[string]models.FieldChange{
			"kyc_status": {Old: string(old), New: string(c.KYCStatus)},
		}
	})
}

// RequestReview escalates a Pending customer to UnderReview.
func (s *Service) RequestReview(ctx context.Context, customerID, actorID string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}

	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if c.KYCStatus != models.KYCStatusPending {
		return errors.InvalidTransition("cannot request review for customer %s in status %s", customerID, c.KYCStatus)
	}

	return s.transition(ctx, c, models.ActionRequestReview, actorID, "", func(c *models.Customer) map[string]models.FieldChange {
		old := c.KYCStatus
		c.KYCStatus = models.KYCStatusUnderReview
		return map[string]models.FieldChange{
			"kyc_status": {Old: string(old), New: string(c.KYCStatus)},
		}
	})
}

// Block suspends a customer's account. A reason is mandatory; it lands on the
// triggering audit entry.
func (s *Service) Block(ctx context.Context, customerID, actorID, reason string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}
	if blank(reason) {
		return errors.Validation("blocking an account requires a non-empty reason")
	}

	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if c.AccountStatus == models.AccountStatusBlocked {
		return errors.InvalidTransition("customer %s is already blocked", customerID)
	}

	return s.transition(ctx, c, models.ActionBlock, actorID, reason, func(c *models.Customer) map[string]models.FieldChange {
		old := c.AccountStatus
		c.AccountStatus = models.AccountStatusBlocked
		return map[string]models.FieldChange{
			"account_status": {Old: string(old), New: string(c.AccountStatus)},
		}
	})
}

// Unblock reactivates a blocked account.
func (s *Service) Unblock(ctx context.Context, customerID, actorID, reason string) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}

	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	if c.AccountStatus != models.AccountStatusBlocked {
		return errors.InvalidTransition("customer %s is not blocked", customerID)
	}

	return s.transition(ctx, c, models.ActionUnblock, actorID, reason, func(c *models.Customer) map[string]models.FieldChange {
		old := c.AccountStatus
		c.AccountStatus = models.AccountStatusActive
		return map[string]models.FieldChange{
			"account_status": {Old: string(old), New: string(c.AccountStatus)},
		}
	})
}

// VerifyDocument marks a pending document verified.
func (s *Service) VerifyDocument(ctx context.Context, customerID, documentID, actorID string) error {
	return s.reviewDocument(ctx, customerID, documentID, actorID, "", models.DocumentStatusVerified, models.ActionVerifyDocument)
}

// RejectDocument marks a pending document rejected. A reason is mandatory.
func (s *Service) RejectDocument(ctx context.Context, customerID, documentID, actorID, reason string) error {
	if blank(reason) {
		return errors.Validation("rejecting a document requires a non-empty reason")
	}
	return s.reviewDocument(ctx, customerID, documentID, actorID, reason, models.DocumentStatusRejected, models.ActionRejectDocument)
}

func (s *Service) reviewDocument(ctx context.Context, customerID, documentID, actorID, reason string, to models.DocumentStatus, action models.AuditAction) error {
	if blank(actorID) {
		return errors.Validation("actor id is required")
	}

	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}

	idx := -1
	for i := range c.Documents {
		if c.Documents[i].ID == documentID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return errors.NotFound("document %s not found for customer %s", documentID, customerID)
	}
	if c.Documents[idx].Status != models.DocumentStatusPending {
		return errors.InvalidTransition("document %s is already %s", documentID, c.Documents[idx].Status)
	}

	return s.transition(ctx, c, action, actorID, reason, func(c *models.Customer) map[string]models.FieldChange {
		docs := make([]models.Document, len(c.Documents))
		copy(docs, c.Documents)
		old := docs[idx].Status
		docs[idx].Status = to
		c.Documents = docs
		return map[string]models.FieldChange{
			"documents." + documentID + ".status": {Old: string(old), New: string(to)},
		}
	})
}

// transition applies mutate to the loaded customer and commits the save and
// its audit entry in one store transaction. A concurrent writer surfaces as a
// ConflictError from the version check; nothing is half-applied.
func (s *Service) transition(ctx context.Context, c *models.Customer, action models.AuditAction, actorID, reason string, mutate func(*models.Customer) map[string]models.FieldChange) error {
	changes := mutate(c)
	c.UpdatedAt = s.clock.Now()

	err := s.store.Transact(ctx, func(tx store.Store) error {
		if err := tx.SaveCustomer(ctx, c); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, tx, models.AuditEntry{
			ActorID:      actorID,
			Action:       action,
			ResourceType: models.ResourceCustomer,
			ResourceID:   c.ID,
			Reason:       strings.TrimSpace(reason),
			Changes:      changes,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("kyc transition applied",
		zap.String("customer_id", c.ID),
		zap.String("action", string(action)),
		zap.String("actor_id", actorID))
	return nil
}
