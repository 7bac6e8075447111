package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kwachalink/corridor_compliance/pkg/errors"
	"github.com/kwachalink/corridor_compliance/pkg/models"
)

// Memory is an in-process Store for tests and single-node hosts. One mutex
// serializes workflow transactions; optimistic version checks still apply so
// callers racing on the same resource observe ConflictError, not overwrites.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

type memData struct {
	customers    map[string]models.Customer
	transactions map[string]models.Transaction
	flags        map[string]models.FlaggedTransaction
	reports      map[string]models.ComplianceReport
	audit        []models.AuditEntry
}

func newMemData() *memData {
	return &memData{
		customers:    make(map[string]models.Customer),
		transactions: make(map[string]models.Transaction),
		flags:        make(map[string]models.FlaggedTransaction),
		reports:      make(map[string]models.ComplianceReport),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.flags {
		c.flags[k] = v
	}
	for k, v := range d.reports {
		c.reports[k] = v
	}
	c.audit = d.audit[:len(d.audit):len(d.audit)]
	return c
}

// checkVersion applies the optimistic concurrency rule shared by all Save
// methods.
func checkVersion(kind string, id string, stored int64, exists bool, incoming int64) error {
	if !exists {
		if incoming != 0 {
			return errors.Conflict("%s %s was deleted concurrently", kind, id)
		}
		return nil
	}
	if stored != incoming {
		return errors.Conflict("%s %s changed concurrently (loaded version %d, stored %d)", kind, id, incoming, stored)
	}
	return nil
}

func (d *memData) getCustomer(id string) (*models.Customer, error) {
	c, ok := d.customers[id]
	if !ok {
		return nil, errors.NotFound("customer %s not found", id)
	}
	return &c, nil
}

func (d *memData) saveCustomer(c *models.Customer) error {
	stored, ok := d.customers[c.ID]
	if err := checkVersion("customer", c.ID, stored.Version, ok, c.Version); err != nil {
		return err
	}
	c.Version++
	d.customers[c.ID] = *c
	return nil
}

func (d *memData) listCustomers() []models.Customer {
	out := make([]models.Customer, 0, len(d.customers))
	for _, c := range d.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *memData) getTransaction(id string) (*models.Transaction, error) {
	t, ok := d.transactions[id]
	if !ok {
		return nil, errors.NotFound("transaction %s not found", id)
	}
	return &t, nil
}

func (d *memData) saveTransaction(t *models.Transaction) error {
	d.transactions[t.ID] = *t
	return nil
}

func (d *memData) listTransactions(period models.Period) []models.Transaction {
	out := make([]models.Transaction, 0)
	for _, t := range d.transactions {
		// half-open [start, end) so adjacent periods never double-count
		if !t.CreatedAt.Before(period.Start) && t.CreatedAt.Before(period.End) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (d *memData) getFlag(id string) (*models.FlaggedTransaction, error) {
	f, ok := d.flags[id]
	if !ok {
		return nil, errors.NotFound("flagged transaction %s not found", id)
	}
	return &f, nil
}

func (d *memData) activeFlagForTransaction(transactionID string) (*models.FlaggedTransaction, error) {
	for _, f := range d.flags {
		if f.TransactionID == transactionID && !f.Status.Terminal() {
			return &f, nil
		}
	}
	return nil, errors.NotFound("no active flag for transaction %s", transactionID)
}

func (d *memData) saveFlag(f *models.FlaggedTransaction) error {
	stored, ok := d.flags[f.ID]
	if err := checkVersion("flagged transaction", f.ID, stored.Version, ok, f.Version); err != nil {
		return err
	}
	f.Version++
	d.flags[f.ID] = *f
	return nil
}

func (d *memData) listFlags() []models.FlaggedTransaction {
	out := make([]models.FlaggedTransaction, 0, len(d.flags))
	for _, f := range d.flags {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (d *memData) getReport(id string) (*models.ComplianceReport, error) {
	r, ok := d.reports[id]
	if !ok {
		return nil, errors.NotFound("compliance report %s not found", id)
	}
	return &r, nil
}

func (d *memData) saveReport(r *models.ComplianceReport) error {
	stored, ok := d.reports[r.ID]
	if err := checkVersion("compliance report", r.ID, stored.Version, ok, r.Version); err != nil {
		return err
	}
	r.Version++
	d.reports[r.ID] = *r
	return nil
}

func (d *memData) appendAudit(e models.AuditEntry) {
	d.audit = append(d.audit, e)
}

func sortAudit(entries []models.AuditEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		if entries[i].ResourceID != entries[j].ResourceID {
			return entries[i].ResourceID < entries[j].ResourceID
		}
		return entries[i].Seq < entries[j].Seq
	})
}

func (d *memData) auditByResource(rt models.ResourceType, id string) []models.AuditEntry {
	out := make([]models.AuditEntry, 0)
	for _, e := range d.audit {
		if e.ResourceType == rt && e.ResourceID == id {
			out = append(out, e)
		}
	}
	sortAudit(out)
	return out
}

func (d *memData) auditRange(start, end time.Time) []models.AuditEntry {
	out := make([]models.AuditEntry, 0)
	for _, e := range d.audit {
		// boundaries inclusive for compliance export
		if !e.Timestamp.Before(start) && !e.Timestamp.After(end) {
			out = append(out, e)
		}
	}
	sortAudit(out)
	return out
}

func (d *memData) lastAudit(rt models.ResourceType, id string) *models.AuditEntry {
	var last *models.AuditEntry
	for i := range d.audit {
		e := d.audit[i]
		if e.ResourceType != rt || e.ResourceID != id {
			continue
		}
		if last == nil || e.Timestamp.After(last.Timestamp) ||
			(e.Timestamp.Equal(last.Timestamp) && e.Seq > last.Seq) {
			copied := e
			last = &copied
		}
	}
	return last
}

// Store interface over the locked outer handle.

func (m *Memory) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getCustomer(id)
}

func (m *Memory) SaveCustomer(_ context.Context, c *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveCustomer(c)
}

func (m *Memory) ListCustomers(_ context.Context) ([]models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.listCustomers(), nil
}

func (m *Memory) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getTransaction(id)
}

func (m *Memory) SaveTransaction(_ context.Context, t *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveTransaction(t)
}

func (m *Memory) ListTransactions(_ context.Context, period models.Period) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.listTransactions(period), nil
}

func (m *Memory) GetFlag(_ context.Context, id string) (*models.FlaggedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getFlag(id)
}

func (m *Memory) ActiveFlagForTransaction(_ context.Context, transactionID string) (*models.FlaggedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.activeFlagForTransaction(transactionID)
}

func (m *Memory) SaveFlag(_ context.Context, f *models.FlaggedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveFlag(f)
}

func (m *Memory) ListFlags(_ context.Context) ([]models.FlaggedTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.listFlags(), nil
}

func (m *Memory) GetReport(_ context.Context, id string) (*models.ComplianceReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.getReport(id)
}

func (m *Memory) SaveReport(_ context.Context, r *models.ComplianceReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.saveReport(r)
}

func (m *Memory) AppendAudit(_ context.Context, e models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.appendAudit(e)
	return nil
}

func (m *Memory) AuditByResource(_ context.Context, rt models.ResourceType, id string) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.auditByResource(rt, id), nil
}

func (m *Memory) AuditRange(_ context.Context, start, end time.Time) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.auditRange(start, end), nil
}

func (m *Memory) LastAudit(_ context.Context, rt models.ResourceType, id string) (*models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.lastAudit(rt, id), nil
}

// Transact runs fn under the store mutex against an unlocked handle and rolls
// every write back if fn fails.
func (m *Memory) Transact(ctx context.Context, fn func(tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	backup := m.data.clone()
	if err := fn(&memTx{data: m.data}); err != nil {
		m.data = backup
		return err
	}
	return nil
}

// memTx is the in-transaction handle; the outer Transact holds the lock.
type memTx struct {
	data *memData
}

func (t *memTx) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	return t.data.getCustomer(id)
}

func (t *memTx) SaveCustomer(_ context.Context, c *models.Customer) error {
	return t.data.saveCustomer(c)
}

func (t *memTx) ListCustomers(_ context.Context) ([]models.Customer, error) {
	return t.data.listCustomers(), nil
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*models.Transaction, error) {
	return t.data.getTransaction(id)
}

func (t *memTx) SaveTransaction(_ context.Context, tx *models.Transaction) error {
	return t.data.saveTransaction(tx)
}

func (t *memTx) ListTransactions(_ context.Context, period models.Period) ([]models.Transaction, error) {
	return t.data.listTransactions(period), nil
}

func (t *memTx) GetFlag(_ context.Context, id string) (*models.FlaggedTransaction, error) {
	return t.data.getFlag(id)
}

func (t *memTx) ActiveFlagForTransaction(_ context.Context, transactionID string) (*models.FlaggedTransaction, error) {
	return t.data.activeFlagForTransaction(transactionID)
}

func (t *memTx) SaveFlag(_ context.Context, f *models.FlaggedTransaction) error {
	return t.data.saveFlag(f)
}

func (t *memTx) ListFlags(_ context.Context) ([]models.FlaggedTransaction, error) {
	return t.data.listFlags(), nil
}

func (t *memTx) GetReport(_ context.Context, id string) (*models.ComplianceReport, error) {
	return t.data.getReport(id)
}

func (t *memTx) SaveReport(_ context.Context, r *models.ComplianceReport) error {
	return t.data.saveReport(r)
}

func (t *memTx) AppendAudit(_ context.Context, e models.AuditEntry) error {
	t.data.appendAudit(e)
	return nil
}

func (t *memTx) AuditByResource(_ context.Context, rt models.ResourceType, id string) ([]models.AuditEntry, error) {
	return t.data.auditByResource(rt, id), nil
}

func (t *memTx) AuditRange(_ context.Context, start, end time.Time) ([]models.AuditEntry, error) {
	return t.data.auditRange(start, end), nil
}

func (t *memTx) LastAudit(_ context.Context, rt models.ResourceType, id string) (*models.AuditEntry, error) {
	return t.data.lastAudit(rt, id), nil
}

func (t *memTx) Transact(_ context.Context, fn func(tx Store) error) error {
	// already inside a transaction
	return fn(t)
}
