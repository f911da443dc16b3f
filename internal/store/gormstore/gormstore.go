// Package gormstore implements store.Store on Postgres through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"

	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Tx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

type tx struct {
	db *gorm.DB
}

func first[T any](db *gorm.DB, entity string, query string, args ...any) (*T, error) {
	var v T
	if err := db.Where(query, args...).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.NotFound(entity)
		}
		return nil, fmt.Errorf("load %s: %w", entity, err)
	}
	return &v, nil
}

func list[T any](db *gorm.DB, entity string, query string, args ...any) ([]T, error) {
	var out []T
	if err := db.Where(query, args...).Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", entity, err)
	}
	return out, nil
}

func (t *tx) CreateEnterprise(e *models.Enterprise) error {
	if err := t.db.Create(e).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (t *tx) ListEnterprises() ([]models.Enterprise, error) {
	var out []models.Enterprise
	if err := t.db.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list enterprises: %w", err)
	}
	return out, nil
}

func (t *tx) CreateUser(u *models.User) error {
	if err := t.db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (t *tx) GetUser(id uint) (*models.User, error) {
	return first[models.User](t.db, "user", "id = ?", id)
}

func (t *tx) FindUserByEmail(email string) (*models.User, error) {
	return first[models.User](t.db, "user", "LOWER(email) = ?", strings.ToLower(email))
}

func (t *tx) CreateBoxSize(b *models.BoxSize) error {
	return t.db.Create(b).Error
}

func (t *tx) GetBoxSize(enterpriseID, id uint) (*models.BoxSize, error) {
	return first[models.BoxSize](t.db, "box_size", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) ListBoxSizes(enterpriseID uint) ([]models.BoxSize, error) {
	return list[models.BoxSize](t.db, "box sizes", "enterprise_id = ?", enterpriseID)
}

func (t *tx) CreateBinType(b *models.BinType) error {
	return t.db.Create(b).Error
}

func (t *tx) GetBinType(enterpriseID, id uint) (*models.BinType, error) {
	return first[models.BinType](t.db, "bin_type", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) ListBinTypes(enterpriseID uint) ([]models.BinType, error) {
	return list[models.BinType](t.db, "bin types", "enterprise_id = ?", enterpriseID)
}

func (t *tx) CreatePalletType(p *models.PalletType) error {
	// gorm creates the Capacities association in the same statement batch.
	if err := t.db.Create(p).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (t *tx) GetPalletType(enterpriseID, id uint) (*models.PalletType, error) {
	return first[models.PalletType](t.db.Preload("Capacities"), "pallet_type", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) FindPalletTypeByName(enterpriseID uint, name string) (*models.PalletType, error) {
	return first[models.PalletType](t.db.Preload("Capacities"), "pallet_type", "enterprise_id = ? AND name = ?", enterpriseID, name)
}

func (t *tx) ListPalletTypes(enterpriseID uint) ([]models.PalletType, error) {
	return list[models.PalletType](t.db.Preload("Capacities"), "pallet types", "enterprise_id = ?", enterpriseID)
}

func (t *tx) CreateBatch(b *models.Batch) error {
	return t.db.Create(b).Error
}

func (t *tx) GetBatch(enterpriseID, id uint) (*models.Batch, error) {
	return first[models.Batch](t.db, "batch", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) SaveBatch(b *models.Batch) error {
	return t.db.Save(b).Error
}

func (t *tx) ListBatches(enterpriseID uint, statuses ...models.BatchStatus) ([]models.Batch, error) {
	q := t.db
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	return list[models.Batch](q, "batches", "enterprise_id = ?", enterpriseID)
}

func (t *tx) CreateLot(l *models.Lot) error {
	return t.db.Create(l).Error
}

func (t *tx) GetLot(enterpriseID, id uint) (*models.Lot, error) {
	return first[models.Lot](t.db, "lot", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) ListLots(enterpriseID uint) ([]models.Lot, error) {
	return list[models.Lot](t.db, "lots", "enterprise_id = ?", enterpriseID)
}

func (t *tx) ListLotsByBatch(enterpriseID, batchID uint) ([]models.Lot, error) {
	return list[models.Lot](t.db, "lots", "enterprise_id = ? AND batch_id = ?", enterpriseID, batchID)
}

func (t *tx) SaveLot(l *models.Lot) error {
	res := t.db.Model(&models.Lot{}).
		Where("id = ? AND enterprise_id = ? AND palletized_boxes = ?", l.ID, l.EnterpriseID, l.PalletizedBoxes).
		Select("*").Omit("id", "palletized_boxes", "created_at").
		Updates(l)
	if res.Error != nil {
		return fmt.Errorf("save lot %d: %w", l.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return t.missingOrConflict("lot", &models.Lot{}, l.EnterpriseID, l.ID)
	}
	return nil
}

func (t *tx) AddPalletizedBoxes(enterpriseID, lotID uint, expected, delta int) error {
	res := t.db.Model(&models.Lot{}).
		Where("id = ? AND enterprise_id = ? AND palletized_boxes = ?", lotID, enterpriseID, expected).
		Update("palletized_boxes", expected+delta)
	if res.Error != nil {
		return fmt.Errorf("update lot %d palletized boxes: %w", lotID, res.Error)
	}
	if res.RowsAffected == 0 {
		return t.missingOrConflict("lot", &models.Lot{}, enterpriseID, lotID)
	}
	return nil
}

func (t *tx) CreatePallet(p *models.Pallet) error {
	return t.db.Create(p).Error
}

func (t *tx) GetPallet(enterpriseID, id uint) (*models.Pallet, error) {
	return first[models.Pallet](t.db, "pallet", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) ListPallets(enterpriseID uint) ([]models.Pallet, error) {
	return list[models.Pallet](t.db, "pallets", "enterprise_id = ?", enterpriseID)
}

func (t *tx) SavePallet(p *models.Pallet, expectedBoxes int) error {
	res := t.db.Model(&models.Pallet{}).
		Where("id = ? AND enterprise_id = ? AND current_boxes = ?", p.ID, p.EnterpriseID, expectedBoxes).
		Select("*").Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		return fmt.Errorf("save pallet %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return t.missingOrConflict("pallet", &models.Pallet{}, p.EnterpriseID, p.ID)
	}
	return nil
}

// missingOrConflict tells a vanished row from a stale conditional write.
func (t *tx) missingOrConflict(entity string, model any, enterpriseID, id uint) error {
	var n int64
	if err := t.db.Model(model).Where("id = ? AND enterprise_id = ?", id, enterpriseID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return store.NotFound(entity)
	}
	return store.ErrConflict
}

func (t *tx) CreateAllocation(a *models.PalletAllocation) error {
	return t.db.Create(a).Error
}

func (t *tx) ListAllocationsByPallet(enterpriseID, palletID uint) ([]models.PalletAllocation, error) {
	return list[models.PalletAllocation](t.db, "pallet allocations", "enterprise_id = ? AND pallet_id = ?", enterpriseID, palletID)
}

func (t *tx) ListContainers(enterpriseID uint) ([]models.Container, error) {
	return list[models.Container](t.db, "containers", "enterprise_id = ?", enterpriseID)
}

func (t *tx) ListExportInvoices(enterpriseID uint) ([]models.ExportInvoice, error) {
	return list[models.ExportInvoice](t.db, "export invoices", "enterprise_id = ?", enterpriseID)
}

func (t *tx) ListGrowerPayments(enterpriseID uint) ([]models.GrowerPayment, error) {
	return list[models.GrowerPayment](t.db, "grower payments", "enterprise_id = ?", enterpriseID)
}

func (t *tx) ListLabourEntries(enterpriseID uint) ([]models.LabourEntry, error) {
	return list[models.LabourEntry](t.db, "labour entries", "enterprise_id = ?", enterpriseID)
}

func (t *tx) FindActiveAlert(enterpriseID uint, alertType models.AlertType, subjectType string, subjectID uint) (*models.ReconciliationAlert, error) {
	return first[models.ReconciliationAlert](t.db.Order("id"), "reconciliation_alert",
		"enterprise_id = ? AND alert_type = ? AND subject_type = ? AND subject_id = ? AND status IN ?",
		enterpriseID, alertType, subjectType, subjectID,
		[]models.AlertStatus{models.AlertOpen, models.AlertAcknowledged})
}

func (t *tx) CreateAlert(a *models.ReconciliationAlert) error {
	return t.db.Create(a).Error
}

func (t *tx) GetAlert(enterpriseID, id uint) (*models.ReconciliationAlert, error) {
	return first[models.ReconciliationAlert](t.db, "reconciliation_alert", "enterprise_id = ? AND id = ?", enterpriseID, id)
}

func (t *tx) SaveAlert(a *models.ReconciliationAlert) error {
	return t.db.Save(a).Error
}

func (t *tx) ListAlerts(enterpriseID uint, f store.AlertFilter) ([]models.ReconciliationAlert, error) {
	q := t.db
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if len(f.Types) > 0 {
		q = q.Where("alert_type IN ?", f.Types)
	}
	return list[models.ReconciliationAlert](q, "reconciliation alerts", "enterprise_id = ?", enterpriseID)
}

func (t *tx) AppendAudit(l *models.AuditLog) error {
	return t.db.Create(l).Error
}

func (t *tx) ListAudit(enterpriseID uint, f store.AuditFilter) ([]models.AuditLog, error) {
	q := t.db
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	return list[models.AuditLog](q, "audit logs", "enterprise_id = ?", enterpriseID)
}
