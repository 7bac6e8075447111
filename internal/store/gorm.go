package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kwachalink/corridor_compliance/internal/currency"
	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Gorm is the reference database-backed Store. Hosts that own their storage
// can ignore it; the engine's persistence tests run it on sqlite in-memory.
type Gorm struct {
	db *gorm.DB
}

// NewGorm migrates the engine tables and returns a Store over db.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(
		&customerRow{},
		&transactionRow{},
		&flagRow{},
		&reportRow{},
		&auditRow{},
	); err != nil {
		return nil, err
	}
	return &Gorm{db: db}, nil
}

type customerRow struct {
	ID               string `gorm:"primaryKey;type:varchar(64)"`
	KYCStatus        string `gorm:"type:varchar(16);index;not null"`
	AccountStatus    string `gorm:"type:varchar(16);not null"`
	RiskScore        int    `gorm:"not null"`
	RiskLevel        string `gorm:"type:varchar(16);not null"`
	RegistrationDate time.Time
	Country          string `gorm:"type:varchar(32)"`
	Type             string `gorm:"type:varchar(16)"`
	Documents        string `gorm:"type:text"`
	Version          int64  `gorm:"not null"`
	UpdatedAt        time.Time
}

func (customerRow) TableName() string { return "customers" }

type transactionRow struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)"`
	SenderID    string          `gorm:"type:varchar(64);index"`
	ReceiverID  string          `gorm:"type:varchar(64);index"`
	Amount      decimal.Decimal `gorm:"type:decimal(24,6)"`
	Currency    string          `gorm:"type:varchar(3)"`
	Fee         decimal.Decimal `gorm:"type:decimal(24,6)"`
	FeeCurrency string          `gorm:"type:varchar(3)"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(24,6)"`
	Status      string          `gorm:"type:varchar(16);index"`
	Direction   string          `gorm:"type:varchar(16)"`
	RiskScore   int
	RiskLevel   string    `gorm:"type:varchar(16)"`
	Flagged     bool      `gorm:"index"`
	CreatedAt   time.Time `gorm:"index"`
}

func (transactionRow) TableName() string { return "transactions" }

type flagRow struct {
	ID            string `gorm:"primaryKey;type:varchar(64)"`
	TransactionID string `gorm:"type:varchar(64);index;not null"`
	FlagReason    string `gorm:"type:text;not null"`
	RiskFactors   string `gorm:"type:text"`
	RiskScore     int
	Status        string `gorm:"type:varchar(20);index;not null"`
	AssignedTo    string `gorm:"type:varchar(64)"`
	Notes         string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64 `gorm:"not null"`
}

func (flagRow) TableName() string { return "flagged_transactions" }

type reportRow struct {
	ID          string `gorm:"primaryKey;type:varchar(64)"`
	Type        string `gorm:"type:varchar(20);not null"`
	PeriodStart time.Time
	PeriodEnd   time.Time
	Metrics     string `gorm:"type:text"`
	Status      string `gorm:"type:varchar(16);index;not null"`
	GeneratedAt time.Time
	Version     int64 `gorm:"not null"`
}

func (reportRow) TableName() string { return "compliance_reports" }

type auditRow struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"`
	ActorID      string    `gorm:"type:varchar(64);not null"`
	Action       string    `gorm:"type:varchar(32);not null"`
	ResourceType string    `gorm:"type:varchar(32);index:idx_audit_resource;not null"`
	ResourceID   string    `gorm:"type:varchar(64);index:idx_audit_resource;not null"`
	Timestamp    time.Time `gorm:"index;not null"`
	Seq          uint64    `gorm:"not null"`
	Reason       string    `gorm:"type:text"`
	Changes      string    `gorm:"type:text"`
}

func (auditRow) TableName() string { return "audit_entries" }

func marshalJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func customerToRow(c *models.Customer) customerRow {
	return customerRow{
		ID:               c.ID,
		KYCStatus:        string(c.KYCStatus),
		AccountStatus:    string(c.AccountStatus),
		RiskScore:        c.RiskScore,
		RiskLevel:        string(c.RiskLevel),
		RegistrationDate: c.RegistrationDate,
		Country:          c.Country,
		Type:             c.Type,
		Documents:        marshalJSON(c.Documents),
		Version:          c.Version,
		UpdatedAt:        c.UpdatedAt,
	}
}

func customerFromRow(r customerRow) models.Customer {
	var docs []models.Document
	_ = json.Unmarshal([]byte(r.Documents), &docs)
	return models.Customer{
		ID:               r.ID,
		KYCStatus:        models.KYCStatus(r.KYCStatus),
		AccountStatus:    models.AccountStatus(r.AccountStatus),
		RiskScore:        r.RiskScore,
		RiskLevel:        models.RiskLevel(r.RiskLevel),
		RegistrationDate: r.RegistrationDate,
		Country:          r.Country,
		Type:             r.Type,
		Documents:        docs,
		Version:          r.Version,
		UpdatedAt:        r.UpdatedAt,
	}
}

func transactionToRow(t *models.Transaction) transactionRow {
	return transactionRow{
		ID:          t.ID,
		SenderID:    t.SenderID,
		ReceiverID:  t.ReceiverID,
		Amount:      t.Amount.Amount,
		Currency:    string(t.Amount.Currency),
		Fee:         t.Fee.Amount,
		FeeCurrency: string(t.Fee.Currency),
		NetAmount:   t.NetAmount.Amount,
		Status:      string(t.Status),
		Direction:   string(t.Direction),
		RiskScore:   t.RiskScore,
		RiskLevel:   string(t.RiskLevel),
		Flagged:     t.Flagged,
		CreatedAt:   t.CreatedAt,
	}
}

func transactionFromRow(r transactionRow) models.Transaction {
	code := currency.Code(r.Currency)
	return models.Transaction{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Amount:     currency.New(r.Amount, code),
		Fee:        currency.New(r.Fee, currency.Code(r.FeeCurrency)),
		NetAmount:  currency.New(r.NetAmount, code),
		Status:     models.TransactionStatus(r.Status),
		Direction:  models.Direction(r.Direction),
		RiskScore:  r.RiskScore,
		RiskLevel:  models.RiskLevel(r.RiskLevel),
		Flagged:    r.Flagged,
		CreatedAt:  r.CreatedAt,
	}
}

func flagToRow(f *models.FlaggedTransaction) flagRow {
	return flagRow{
		ID:            f.ID,
		TransactionID: f.TransactionID,
		FlagReason:    f.FlagReason,
		RiskFactors:   marshalJSON(f.RiskFactors),
		RiskScore:     f.RiskScore,
		Status:        string(f.Status),
		AssignedTo:    f.AssignedTo,
		Notes:         marshalJSON(f.Notes),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		Version:       f.Version,
	}
}

func flagFromRow(r flagRow) models.FlaggedTransaction {
	var factors, notes []string
	_ = json.Unmarshal([]byte(r.RiskFactors), &factors)
	_ = json.Unmarshal([]byte(r.Notes), &notes)
	return models.FlaggedTransaction{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		FlagReason:    r.FlagReason,
		RiskFactors:   factors,
		RiskScore:     r.RiskScore,
		Status:        models.FlagStatus(r.Status),
		AssignedTo:    r.AssignedTo,
		Notes:         notes,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

func reportToRow(r *models.ComplianceReport) reportRow {
	return reportRow{
		ID:          r.ID,
		Type:        string(r.Type),
		PeriodStart: r.Period.Start,
		PeriodEnd:   r.Period.End,
		Metrics:     marshalJSON(r.Metrics),
		Status:      string(r.Status),
		GeneratedAt: r.GeneratedAt,
		Version:     r.Version,
	}
}

func reportFromRow(r reportRow) models.ComplianceReport {
	var metrics map[string]decimal.Decimal
	_ = json.Unmarshal([]byte(r.Metrics), &metrics)
	return models.ComplianceReport{
		ID:          r.ID,
		Type:        models.ReportType(r.Type),
		Period:      models.Period{Start: r.PeriodStart, End: r.PeriodEnd},
		Metrics:     metrics,
		Status:      models.ReportStatus(r.Status),
		GeneratedAt: r.GeneratedAt,
		Version:     r.Version,
	}
}

func auditToRow(e models.AuditEntry) auditRow {
	return auditRow{
		ID:           e.ID,
		ActorID:      e.ActorID,
		Action:       string(e.Action),
		ResourceType: string(e.ResourceType),
		ResourceID:   e.ResourceID,
		Timestamp:    e.Timestamp,
		Seq:          e.Seq,
		Reason:       e.Reason,
		Changes:      marshalJSON(e.Changes),
	}
}

func auditFromRow(r auditRow) models.AuditEntry {
	var changes map[string]models.FieldChange
	_ = json.Unmarshal([]byte(r.Changes), &changes)
	return models.AuditEntry{
		ID:           r.ID,
		ActorID:      r.ActorID,
		Action:       models.AuditAction(r.Action),
		ResourceType: models.ResourceType(r.ResourceType),
		ResourceID:   r.ResourceID,
		Timestamp:    r.Timestamp,
		Seq:          r.Seq,
		Reason:       r.Reason,
		Changes:      changes,
	}
}

// saveVersioned implements the shared optimistic write: insert at version 1
// for new records, otherwise update guarded by the loaded version.
func saveVersioned(db *gorm.DB, kind, id string, version int64, row any) (int64, error) {
	if version == 0 {
		if err := db.Create(row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return 0, errors.Conflict("%s %s was created concurrently", kind, id)
			}
			return 0, err
		}
		return 1, nil
	}
	res := db.Model(row).
		Where("id = ? AND version = ?", id, version).
		Select("*").Omit("id").Updates(row)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errors.Conflict("%s %s changed concurrently (loaded version %d)", kind, id, version)
	}
	return version + 1, nil
}

func (g *Gorm) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var row customerRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("customer %s not found", id)
		}
		return nil, err
	}
	c := customerFromRow(row)
	return &c, nil
}

func (g *Gorm) SaveCustomer(ctx context.Context, c *models.Customer) error {
	row := customerToRow(c)
	row.Version = c.Version + 1
	if c.Version == 0 {
		row.Version = 1
	}
	newVersion, err := saveVersioned(g.db.WithContext(ctx), "customer", c.ID, c.Version, &row)
	if err != nil {
		return err
	}
	c.Version = newVersion
	return nil
}

func (g *Gorm) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	var rows []customerRow
	if err := g.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, customerFromRow(r))
	}
	return out, nil
}

func (g *Gorm) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var row transactionRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("transaction %s not found", id)
		}
		return nil, err
	}
	t := transactionFromRow(row)
	return &t, nil
}

func (g *Gorm) SaveTransaction(ctx context.Context, t *models.Transaction) error {
	row := transactionToRow(t)
	return g.db.WithContext(ctx).Save(&row).Error
}

func (g *Gorm) ListTransactions(ctx context.Context, period models.Period) ([]models.Transaction, error) {
	var rows []transactionRow
	err := g.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", period.Start, period.End).
		Order("created_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, transactionFromRow(r))
	}
	return out, nil
}

func (g *Gorm) GetFlag(ctx context.Context, id string) (*models.FlaggedTransaction, error) {
	var row flagRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("flagged transaction %s not found", id)
		}
		return nil, err
	}
	f := flagFromRow(row)
	return &f, nil
}

func (g *Gorm) ActiveFlagForTransaction(ctx context.Context, transactionID string) (*models.FlaggedTransaction, error) {
	var row flagRow
	err := g.db.WithContext(ctx).
		Where("transaction_id = ? AND status IN ?", transactionID,
			[]string{string(models.FlagStatusPendingReview), string(models.FlagStatusInvestigating)}).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("no active flag for transaction %s", transactionID)
		}
		return nil, err
	}
	f := flagFromRow(row)
	return &f, nil
}

func (g *Gorm) SaveFlag(ctx context.Context, f *models.FlaggedTransaction) error {
	row := flagToRow(f)
	row.Version = f.Version + 1
	if f.Version == 0 {
		row.Version = 1
	}
	newVersion, err := saveVersioned(g.db.WithContext(ctx), "flagged transaction", f.ID, f.Version, &row)
	if err != nil {
		return err
	}
	f.Version = newVersion
	return nil
}

func (g *Gorm) ListFlags(ctx context.Context) ([]models.FlaggedTransaction, error) {
	var rows []flagRow
	if err := g.db.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.FlaggedTransaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, flagFromRow(r))
	}
	return out, nil
}

func (g *Gorm) GetReport(ctx context.Context, id string) (*models.ComplianceReport, error) {
	var row reportRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("compliance report %s not found", id)
		}
		return nil, err
	}
	r := reportFromRow(row)
	return &r, nil
}

func (g *Gorm) SaveReport(ctx context.Context, r *models.ComplianceReport) error {
	row := reportToRow(r)
	row.Version = r.Version + 1
	if r.Version == 0 {
		row.Version = 1
	}
	newVersion, err := saveVersioned(g.db.WithContext(ctx), "compliance report", r.ID, r.Version, &row)
	if err != nil {
		return err
	}
	r.Version = newVersion
	return nil
}

func (g *Gorm) AppendAudit(ctx context.Context, e models.AuditEntry) error {
	row := auditToRow(e)
	return g.db.WithContext(ctx).Create(&row).Error
}

func (g *Gorm) AuditByResource(ctx context.Context, rt models.ResourceType, id string) ([]models.AuditEntry, error) {
	var rows []auditRow
	err := g.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", rt, id).
		Order("timestamp, seq").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, auditFromRow(r))
	}
	return out, nil
}

func (g *Gorm) AuditRange(ctx context.Context, start, end time.Time) ([]models.AuditEntry, error) {
	var rows []auditRow
	err := g.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp, resource_id, seq").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, auditFromRow(r))
	}
	return out, nil
}

func (g *Gorm) LastAudit(ctx context.Context, rt models.ResourceType, id string) (*models.AuditEntry, error) {
	var row auditRow
	err := g.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", rt, id).
		Order("timestamp DESC, seq DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	e := auditFromRow(row)
	return &e, nil
}

func (g *Gorm) Transact(ctx context.Context, fn func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}
