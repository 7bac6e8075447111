// Package models holds the domain records shared by the compliance engine's
// workflows. Records are plain data; the workflows in internal/ own all state
// transitions and every transition is written through the audit recorder.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kwachalink/corridor_compliance/internal/currency"
)

// KYCStatus is a customer's verification lifecycle state.
type KYCStatus string

const (
	KYCStatusPending     KYCStatus = "Pending"
	KYCStatusApproved    KYCStatus = "Approved"
	KYCStatusRejected    KYCStatus = "Rejected"
	KYCStatusUnderReview KYCStatus = "UnderReview"
)

// Terminal reports whether the status ends the current KYC cycle.
// Re-submission starts a new cycle, never reopens this one.
func (s KYCStatus) Terminal() bool {
	return s == KYCStatusApproved || s == KYCStatusRejected
}

// AccountStatus gates whether a customer can transact.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "Active"
	AccountStatusBlocked AccountStatus = "Blocked"
)

// RiskLevel is the banded form of a 0-100 risk score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "Low"
	RiskLevelMedium   RiskLevel = "Medium"
	RiskLevelHigh     RiskLevel = "High"
	RiskLevelCritical RiskLevel = "Critical"
)

// DocumentStatus tracks a KYC document through verification.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// Document is a KYC document owned by a customer.
type Document struct {
	ID          string         `json:"id"`
	CustomerID  string         `json:"customer_id"`
	Type        string         `json:"type"`
	Status      DocumentStatus `json:"status"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

// Customer is the engine's view of a platform customer. RiskLevel is derived
// from RiskScore; Version backs optimistic concurrency on workflow writes.
type Customer struct {
	ID               string        `json:"id"`
	KYCStatus        KYCStatus     `json:"kyc_status"`
	AccountStatus    AccountStatus `json:"account_status"`
	RiskScore        int           `json:"risk_score"`
	RiskLevel        RiskLevel     `json:"risk_level"`
	RegistrationDate time.Time     `json:"registration_date"`
	Country          string        `json:"country"`
	Type             string        `json:"type"` // customer, merchant
	Documents        []Document    `json:"documents"`
	Version          int64         `json:"version"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// TransactionStatus is the settlement state of a transfer.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "Pending"
	TransactionStatusCompleted TransactionStatus = "Completed"
	TransactionStatusFailed    TransactionStatus = "Failed"
)

// Direction is the transfer direction relative to the viewed account.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Transaction is a corridor transfer after boundary normalization.
// NetAmount = Amount - Fee in the Amount currency.
type Transaction struct {
	ID         string            `json:"id"`
	SenderID   string            `json:"sender_id"`
	ReceiverID string            `json:"receiver_id"`
	Amount     currency.Money    `json:"amount"`
	Fee        currency.Money    `json:"fee"`
	NetAmount  currency.Money    `json:"net_amount"`
	Status     TransactionStatus `json:"status"`
	Direction  Direction         `json:"direction"`
	RiskScore  int               `json:"risk_score"`
	RiskLevel  RiskLevel         `json:"risk_level"`
	Flagged    bool              `json:"flagged"`
	CreatedAt  time.Time         `json:"created_at"`
}

// FlagStatus is the investigation lifecycle state of a flagged transaction.
type FlagStatus string

const (
	FlagStatusPendingReview FlagStatus = "pending_review"
	FlagStatusInvestigating FlagStatus = "investigating"
	FlagStatusResolved      FlagStatus = "resolved"
	FlagStatusEscalated     FlagStatus = "escalated"
)

// Terminal reports whether the flag has left the active set. No transition
// leaves a terminal state except an audited re-open.
func (s FlagStatus) Terminal() bool {
	return s == FlagStatusResolved || s == FlagStatusEscalated
}

// FlaggedTransaction is a transaction marked for human review. At most one
// active (non-terminal) flag exists per transaction.
type FlaggedTransaction struct {
	ID            string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	FlagReason    string     `json:"flag_reason"`
	RiskFactors   []string   `json:"risk_factors"`
	RiskScore     int        `json:"risk_score"`
	Status        FlagStatus `json:"status"`
	AssignedTo    string     `json:"assigned_to,omitempty"`
	Notes         []string   `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Version       int64      `json:"version"`
}

// ResourceType names the record kinds the audit trail covers.
type ResourceType string

const (
	ResourceCustomer           ResourceType = "customer"
	ResourceTransaction        ResourceType = "transaction"
	ResourceFlaggedTransaction ResourceType = "flagged_transaction"
	ResourceComplianceReport   ResourceType = "compliance_report"
)

// AuditAction names a state-changing operation.
type AuditAction string

const (
	ActionApprove        AuditAction = "APPROVE"
	ActionReject         AuditAction = "REJECT"
	ActionRequestReview  AuditAction = "REQUEST_REVIEW"
	ActionBlock          AuditAction = "BLOCK"
	ActionUnblock        AuditAction = "UNBLOCK"
	ActionVerifyDocument AuditAction = "VERIFY_DOCUMENT"
	ActionRejectDocument AuditAction = "REJECT_DOCUMENT"
	ActionFlag           AuditAction = "FLAG"
	ActionAssign         AuditAction = "ASSIGN"
	ActionResolve        AuditAction = "RESOLVE"
	ActionEscalate       AuditAction = "ESCALATE"
	ActionReopen         AuditAction = "REOPEN"
	ActionAddNote        AuditAction = "ADD_NOTE"
	ActionScore          AuditAction = "SCORE"
	ActionCreateReport   AuditAction = "CREATE_REPORT"
	ActionGenerateReport AuditAction = "GENERATE_REPORT"
	ActionSubmitReport   AuditAction = "SUBMIT_REPORT"
	ActionArchiveReport  AuditAction = "ARCHIVE_REPORT"
)

// SystemActor is the ActorID recorded for engine-initiated transitions.
const SystemActor = "system"

// FieldChange records an old/new pair for one field of a resource.
type FieldChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// AuditEntry is one append-only record of a state-changing action. Once
// recorded it is never mutated or deleted. Ordering is by Timestamp with Seq
// breaking ties in insertion order per resource.
type AuditEntry struct {
	ID           string                 `json:"id"`
	ActorID      string                 `json:"actor_id"`
	Action       AuditAction            `json:"action"`
	ResourceType ResourceType           `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Timestamp    time.Time              `json:"timestamp"`
	Seq          uint64                 `json:"seq"`
	Reason       string                 `json:"reason,omitempty"`
	Changes      map[string]FieldChange `json:"changes,omitempty"`
}

// ReportType is a regulatory report category.
type ReportType string

const (
	ReportTypeSAR        ReportType = "SAR" // Suspicious Activity Report
	ReportTypeCTR        ReportType = "CTR" // Currency Transaction Report
	ReportTypeAMLMonthly ReportType = "AML_MONTHLY"
	ReportTypeKYCStatus  ReportType = "KYC_STATUS"
)

// ReportStatus is the strictly forward-only lifecycle of a compliance report.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusGenerated ReportStatus = "generated"
	ReportStatusSubmitted ReportStatus = "submitted"
	ReportStatusArchived  ReportStatus = "archived"
)

// Next returns the only status this one may advance to, or "" from the end of
// the lifecycle.
func (s ReportStatus) Next() ReportStatus {
	switch s {
	case ReportStatusDraft:
		return ReportStatusGenerated
	case ReportStatusGenerated:
		return ReportStatusSubmitted
	case ReportStatusSubmitted:
		return ReportStatusArchived
	default:
		return ""
	}
}

// Period is a closed reporting interval.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the period, boundaries inclusive.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Duration of the period.
func (p Period) Duration() time.Duration { return p.End.Sub(p.Start) }

// Previous returns the adjacent earlier period of equal length.
func (p Period) Previous() Period {
	d := p.Duration()
	return Period{Start: p.Start.Add(-d), End: p.Start}
}

// ComplianceReport is a generated rollup snapshot.
type ComplianceReport struct {
	ID          string                     `json:"id"`
	Type        ReportType                 `json:"type"`
	Period      Period                     `json:"period"`
	Metrics     map[string]decimal.Decimal `json:"metrics"`
	Status      ReportStatus               `json:"status"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Version     int64                      `json:"version"`
}
