// Package store defines the persistence gateway the engine's workflows write
// through. The host system owns production storage; the engine ships an
// in-memory implementation and a gorm-backed reference implementation, both
// transactional at the granularity of one workflow operation.
package store

import (
	"context"
	"time"

	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Store is the persistence gateway. Save operations perform an optimistic
// concurrency check: a record loaded at version N only saves while the stored
// version is still N, and the stored version then becomes N+1. A lost race
// fails with a ConflictError kind. New records are saved with Version 0.
//
// Audit entries are append-only; nothing updates or deletes them. The audit
// recorder is the sole caller of AppendAudit.
type Store interface {
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, c *models.Customer) error
	ListCustomers(ctx context.Context) ([]models.Customer, error)

	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	SaveTransaction(ctx context.Context, t *models.Transaction) error
	ListTransactions(ctx context.Context, period models.Period) ([]models.Transaction, error)

	GetFlag(ctx context.Context, id string) (*models.FlaggedTransaction, error)
	// ActiveFlagForTransaction returns the one non-terminal flag for a
	// transaction, or a NotFoundError kind when none exists.
	ActiveFlagForTransaction(ctx context.Context, transactionID string) (*models.FlaggedTransaction, error)
	SaveFlag(ctx context.Context, f *models.FlaggedTransaction) error
	ListFlags(ctx context.Context) ([]models.FlaggedTransaction, error)

	GetReport(ctx context.Context, id string) (*models.ComplianceReport, error)
	SaveReport(ctx context.Context, r *models.ComplianceReport) error

	AppendAudit(ctx context.Context, e models.AuditEntry) error
	AuditByResource(ctx context.Context, rt models.ResourceType, id string) ([]models.AuditEntry, error)
	AuditRange(ctx context.Context, start, end time.Time) ([]models.AuditEntry, error)
	LastAudit(ctx context.Context, rt models.ResourceType, id string) (*models.AuditEntry, error)

	// Transact runs fn against a handle whose writes commit together or not
	// at all. Workflow operations use it to keep status changes and their
	// audit entries atomic from the caller's perspective.
	Transact(ctx context.Context, fn func(tx Store) error) error
}
