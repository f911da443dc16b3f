// Package memstore is an in-memory Store. Each transaction works on a copy of
// the arena and swaps it in on success, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
)

type arena struct {
	nextID uint

	enterprises map[uint]models.Enterprise
	users       map[uint]models.User
	boxSizes    map[uint]models.BoxSize
	binTypes    map[uint]models.BinType
	palletTypes map[uint]models.PalletType
	batches     map[uint]models.Batch
	lots        map[uint]models.Lot
	pallets     map[uint]models.Pallet
	allocations map[uint]models.PalletAllocation
	containers  map[uint]models.Container
	invoices    map[uint]models.ExportInvoice
	payments    map[uint]models.GrowerPayment
	labour      map[uint]models.LabourEntry
	alerts      map[uint]models.ReconciliationAlert
	audit       map[uint]models.AuditLog
}

func newArena() *arena {
	return &arena{
		enterprises: map[uint]models.Enterprise{},
		users:       map[uint]models.User{},
		boxSizes:    map[uint]models.BoxSize{},
		binTypes:    map[uint]models.BinType{},
		palletTypes: map[uint]models.PalletType{},
		batches:     map[uint]models.Batch{},
		lots:        map[uint]models.Lot{},
		pallets:     map[uint]models.Pallet{},
		allocations: map[uint]models.PalletAllocation{},
		containers:  map[uint]models.Container{},
		invoices:    map[uint]models.ExportInvoice{},
		payments:    map[uint]models.GrowerPayment{},
		labour:      map[uint]models.LabourEntry{},
		alerts:      map[uint]models.ReconciliationAlert{},
		audit:       map[uint]models.AuditLog{},
	}
}

// clone copies the maps. Records are values; pointer fields inside them are
// shared, which is safe because writers always replace pointers, never write
// through them.
func (a *arena) clone() *arena {
	return &arena{
		nextID:      a.nextID,
		enterprises: maps.Clone(a.enterprises),
		users:       maps.Clone(a.users),
		boxSizes:    maps.Clone(a.boxSizes),
		binTypes:    maps.Clone(a.binTypes),
		palletTypes: maps.Clone(a.palletTypes),
		batches:     maps.Clone(a.batches),
		lots:        maps.Clone(a.lots),
		pallets:     maps.Clone(a.pallets),
		allocations: maps.Clone(a.allocations),
		containers:  maps.Clone(a.containers),
		invoices:    maps.Clone(a.invoices),
		payments:    maps.Clone(a.payments),
		labour:      maps.Clone(a.labour),
		alerts:      maps.Clone(a.alerts),
		audit:       maps.Clone(a.audit),
	}
}

func (a *arena) id() uint {
	a.nextID++
	return a.nextID
}

type Store struct {
	mu    sync.Mutex
	state *arena
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{state: newArena(), now: time.Now}
}

func (s *Store) Tx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&tx{a: work, now: s.now()}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Seed data the engine only reads. Used by tests and local fixtures.

func (s *Store) PutContainer(c models.Container) models.Container {
	return put(s, func(a *arena) map[uint]models.Container { return a.containers }, c, func(v *models.Container, id uint) { v.ID = id })
}

func (s *Store) PutExportInvoice(i models.ExportInvoice) models.ExportInvoice {
	return put(s, func(a *arena) map[uint]models.ExportInvoice { return a.invoices }, i, func(v *models.ExportInvoice, id uint) { v.ID = id })
}

func (s *Store) PutGrowerPayment(p models.GrowerPayment) models.GrowerPayment {
	return put(s, func(a *arena) map[uint]models.GrowerPayment { return a.payments }, p, func(v *models.GrowerPayment, id uint) { v.ID = id })
}

func (s *Store) PutLabourEntry(l models.LabourEntry) models.LabourEntry {
	return put(s, func(a *arena) map[uint]models.LabourEntry { return a.labour }, l, func(v *models.LabourEntry, id uint) { v.ID = id })
}

func put[T any](s *Store, table func(*arena) map[uint]T, v T, setID func(*T, uint)) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.id()
	setID(&v, id)
	table(s.state)[id] = v
	return v
}

type tx struct {
	a   *arena
	now time.Time
}

func sorted[T any](m map[uint]T, keep func(T) bool) []T {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v := m[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func (t *tx) CreateEnterprise(e *models.Enterprise) error {
	for _, existing := range t.a.enterprises {
		if existing.Name == e.Name {
			return store.ErrConflict
		}
	}
	e.ID = t.a.id()
	e.CreatedAt, e.UpdatedAt = t.now, t.now
	t.a.enterprises[e.ID] = *e
	return nil
}

func (t *tx) ListEnterprises() ([]models.Enterprise, error) {
	return sorted(t.a.enterprises, func(models.Enterprise) bool { return true }), nil
}

func (t *tx) CreateUser(u *models.User) error {
	for _, existing := range t.a.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrConflict
		}
	}
	u.ID = t.a.id()
	u.CreatedAt, u.UpdatedAt = t.now, t.now
	t.a.users[u.ID] = *u
	return nil
}

func (t *tx) GetUser(id uint) (*models.User, error) {
	u, ok := t.a.users[id]
	if !ok {
		return nil, store.NotFound("user")
	}
	return &u, nil
}

func (t *tx) FindUserByEmail(email string) (*models.User, error) {
	for _, u := range t.a.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.NotFound("user")
}

func (t *tx) CreateBoxSize(b *models.BoxSize) error {
	b.ID = t.a.id()
	b.CreatedAt = t.now
	t.a.boxSizes[b.ID] = *b
	return nil
}

func (t *tx) GetBoxSize(enterpriseID, id uint) (*models.BoxSize, error) {
	b, ok := t.a.boxSizes[id]
	if !ok || b.EnterpriseID != enterpriseID {
		return nil, store.NotFound("box_size")
	}
	return &b, nil
}

func (t *tx) ListBoxSizes(enterpriseID uint) ([]models.BoxSize, error) {
	return sorted(t.a.boxSizes, func(b models.BoxSize) bool { return b.EnterpriseID == enterpriseID }), nil
}

func (t *tx) CreateBinType(b *models.BinType) error {
	b.ID = t.a.id()
	b.CreatedAt = t.now
	t.a.binTypes[b.ID] = *b
	return nil
}

func (t *tx) GetBinType(enterpriseID, id uint) (*models.BinType, error) {
	b, ok := t.a.binTypes[id]
	if !ok || b.EnterpriseID != enterpriseID {
		return nil, store.NotFound("bin_type")
	}
	return &b, nil
}

func (t *tx) ListBinTypes(enterpriseID uint) ([]models.BinType, error) {
	return sorted(t.a.binTypes, func(b models.BinType) bool { return b.EnterpriseID == enterpriseID }), nil
}

func (t *tx) CreatePalletType(p *models.PalletType) error {
	for _, existing := range t.a.palletTypes {
		if existing.EnterpriseID == p.EnterpriseID && existing.Name == p.Name {
			return store.ErrConflict
		}
	}
	p.ID = t.a.id()
	p.CreatedAt = t.now
	caps := make([]models.PalletTypeCapacity, len(p.Capacities))
	for i, c := range p.Capacities {
		c.ID = t.a.id()
		c.PalletTypeID = p.ID
		caps[i] = c
	}
	p.Capacities = caps
	t.a.palletTypes[p.ID] = *p
	return nil
}

func (t *tx) GetPalletType(enterpriseID, id uint) (*models.PalletType, error) {
	p, ok := t.a.palletTypes[id]
	if !ok || p.EnterpriseID != enterpriseID {
		return nil, store.NotFound("pallet_type")
	}
	return &p, nil
}

func (t *tx) FindPalletTypeByName(enterpriseID uint, name string) (*models.PalletType, error) {
	for _, p := range t.a.palletTypes {
		if p.EnterpriseID == enterpriseID && p.Name == name {
			return &p, nil
		}
	}
	return nil, store.NotFound("pallet_type")
}

func (t *tx) ListPalletTypes(enterpriseID uint) ([]models.PalletType, error) {
	return sorted(t.a.palletTypes, func(p models.PalletType) bool { return p.EnterpriseID == enterpriseID }), nil
}

func (t *tx) CreateBatch(b *models.Batch) error {
	b.ID = t.a.id()
	b.CreatedAt, b.UpdatedAt = t.now, t.now
	t.a.batches[b.ID] = *b
	return nil
}

func (t *tx) GetBatch(enterpriseID, id uint) (*models.Batch, error) {
	b, ok := t.a.batches[id]
	if !ok || b.EnterpriseID != enterpriseID {
		return nil, store.NotFound("batch")
	}
	return &b, nil
}

func (t *tx) SaveBatch(b *models.Batch) error {
	if _, err := t.GetBatch(b.EnterpriseID, b.ID); err != nil {
		return err
	}
	b.UpdatedAt = t.now
	t.a.batches[b.ID] = *b
	return nil
}

func (t *tx) ListBatches(enterpriseID uint, statuses ...models.BatchStatus) ([]models.Batch, error) {
	return sorted(t.a.batches, func(b models.Batch) bool {
		return b.EnterpriseID == enterpriseID && (len(statuses) == 0 || slices.Contains(statuses, b.Status))
	}), nil
}

func (t *tx) CreateLot(l *models.Lot) error {
	l.ID = t.a.id()
	l.CreatedAt, l.UpdatedAt = t.now, t.now
	t.a.lots[l.ID] = *l
	return nil
}

func (t *tx) GetLot(enterpriseID, id uint) (*models.Lot, error) {
	l, ok := t.a.lots[id]
	if !ok || l.EnterpriseID != enterpriseID {
		return nil, store.NotFound("lot")
	}
	return &l, nil
}

func (t *tx) ListLots(enterpriseID uint) ([]models.Lot, error) {
	return sorted(t.a.lots, func(l models.Lot) bool { return l.EnterpriseID == enterpriseID }), nil
}

func (t *tx) ListLotsByBatch(enterpriseID, batchID uint) ([]models.Lot, error) {
	return sorted(t.a.lots, func(l models.Lot) bool {
		return l.EnterpriseID == enterpriseID && l.BatchID == batchID
	}), nil
}

func (t *tx) SaveLot(l *models.Lot) error {
	stored, err := t.GetLot(l.EnterpriseID, l.ID)
	if err != nil {
		return err
	}
	if stored.PalletizedBoxes != l.PalletizedBoxes {
		return store.ErrConflict
	}
	l.UpdatedAt = t.now
	t.a.lots[l.ID] = *l
	return nil
}

func (t *tx) AddPalletizedBoxes(enterpriseID, lotID uint, expected, delta int) error {
	l, err := t.GetLot(enterpriseID, lotID)
	if err != nil {
		return err
	}
	if l.PalletizedBoxes != expected {
		return store.ErrConflict
	}
	l.PalletizedBoxes = expected + delta
	l.UpdatedAt = t.now
	t.a.lots[l.ID] = *l
	return nil
}

func (t *tx) CreatePallet(p *models.Pallet) error {
	p.ID = t.a.id()
	p.CreatedAt, p.UpdatedAt = t.now, t.now
	t.a.pallets[p.ID] = *p
	return nil
}

func (t *tx) GetPallet(enterpriseID, id uint) (*models.Pallet, error) {
	p, ok := t.a.pallets[id]
	if !ok || p.EnterpriseID != enterpriseID {
		return nil, store.NotFound("pallet")
	}
	return &p, nil
}

func (t *tx) ListPallets(enterpriseID uint) ([]models.Pallet, error) {
	return sorted(t.a.pallets, func(p models.Pallet) bool { return p.EnterpriseID == enterpriseID }), nil
}

func (t *tx) SavePallet(p *models.Pallet, expectedBoxes int) error {
	stored, err := t.GetPallet(p.EnterpriseID, p.ID)
	if err != nil {
		return err
	}
	if stored.CurrentBoxes != expectedBoxes {
		return store.ErrConflict
	}
	p.UpdatedAt = t.now
	t.a.pallets[p.ID] = *p
	return nil
}

func (t *tx) CreateAllocation(a *models.PalletAllocation) error {
	a.ID = t.a.id()
	a.CreatedAt = t.now
	t.a.allocations[a.ID] = *a
	return nil
}

func (t *tx) ListAllocationsByPallet(enterpriseID, palletID uint) ([]models.PalletAllocation, error) {
	return sorted(t.a.allocations, func(a models.PalletAllocation) bool {
		return a.EnterpriseID == enterpriseID && a.PalletID == palletID
	}), nil
}

func (t *tx) ListContainers(enterpriseID uint) ([]models.Container, error) {
	return sorted(t.a.containers, func(c models.Container) bool { return c.EnterpriseID == enterpriseID }), nil
}

func (t *tx) ListExportInvoices(enterpriseID uint) ([]models.ExportInvoice, error) {
	return sorted(t.a.invoices, func(i models.ExportInvoice) bool { return i.EnterpriseID == enterpriseID }), nil
}

func (t *tx) ListGrowerPayments(enterpriseID uint) ([]models.GrowerPayment, error) {
	return sorted(t.a.payments, func(p models.GrowerPayment) bool { return p.EnterpriseID == enterpriseID }), nil
}

func (t *tx) ListLabourEntries(enterpriseID uint) ([]models.LabourEntry, error) {
	return sorted(t.a.labour, func(l models.LabourEntry) bool { return l.EnterpriseID == enterpriseID }), nil
}

func (t *tx) FindActiveAlert(enterpriseID uint, alertType models.AlertType, subjectType string, subjectID uint) (*models.ReconciliationAlert, error) {
	for _, a := range sorted(t.a.alerts, func(a models.ReconciliationAlert) bool { return a.IsActive() }) {
		if a.EnterpriseID == enterpriseID && a.AlertType == alertType && a.SubjectType == subjectType && a.SubjectID == subjectID {
			return &a, nil
		}
	}
	return nil, store.NotFound("reconciliation_alert")
}

func (t *tx) CreateAlert(a *models.ReconciliationAlert) error {
	a.ID = t.a.id()
	a.CreatedAt, a.UpdatedAt = t.now, t.now
	t.a.alerts[a.ID] = *a
	return nil
}

func (t *tx) GetAlert(enterpriseID, id uint) (*models.ReconciliationAlert, error) {
	a, ok := t.a.alerts[id]
	if !ok || a.EnterpriseID != enterpriseID {
		return nil, store.NotFound("reconciliation_alert")
	}
	return &a, nil
}

func (t *tx) SaveAlert(a *models.ReconciliationAlert) error {
	if _, err := t.GetAlert(a.EnterpriseID, a.ID); err != nil {
		return err
	}
	a.UpdatedAt = t.now
	t.a.alerts[a.ID] = *a
	return nil
}

func (t *tx) ListAlerts(enterpriseID uint, f store.AlertFilter) ([]models.ReconciliationAlert, error) {
	return sorted(t.a.alerts, func(a models.ReconciliationAlert) bool {
		return a.EnterpriseID == enterpriseID &&
			(len(f.Statuses) == 0 || slices.Contains(f.Statuses, a.Status)) &&
			(len(f.Types) == 0 || slices.Contains(f.Types, a.AlertType))
	}), nil
}

func (t *tx) AppendAudit(l *models.AuditLog) error {
	l.ID = t.a.id()
	l.CreatedAt = t.now
	t.a.audit[l.ID] = *l
	return nil
}

func (t *tx) ListAudit(enterpriseID uint, f store.AuditFilter) ([]models.AuditLog, error) {
	return sorted(t.a.audit, func(l models.AuditLog) bool {
		return l.EnterpriseID == enterpriseID &&
			(f.EntityType == "" || l.EntityType == f.EntityType) &&
			(f.EntityID == 0 || l.EntityID == f.EntityID) &&
			(f.UserID == 0 || l.UserID == f.UserID)
	}), nil
}
