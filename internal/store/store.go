// Package store defines the persistence contract of the engine. Entities are
// addressed by ID and every lookup is scoped to an enterprise.
package store

import (
	"context"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
)

// ErrConflict is returned when a conditional write finds the record changed
// since it was read. Callers reload and retry; the engine never retries.
var ErrConflict = apperr.Conflict("write_conflict", "record was modified concurrently, reload and retry")

// NotFound builds the error returned for a missing record.
func NotFound(entity string) error {
	return apperr.NotFound(entity)
}

// Store hands out transactions. All writes made inside fn become visible
// together, or not at all when fn returns an error.
type Store interface {
	Tx(ctx context.Context, fn func(tx Tx) error) error
}

type AlertFilter struct {
	Statuses []models.AlertStatus
	Types    []models.AlertType
}

type AuditFilter struct {
	EntityType string
	EntityID   uint
	UserID     uint
}

type Tx interface {
	CreateEnterprise(e *models.Enterprise) error
	ListEnterprises() ([]models.Enterprise, error)
	CreateUser(u *models.User) error
	GetUser(id uint) (*models.User, error)
	FindUserByEmail(email string) (*models.User, error)

	CreateBoxSize(b *models.BoxSize) error
	GetBoxSize(enterpriseID, id uint) (*models.BoxSize, error)
	ListBoxSizes(enterpriseID uint) ([]models.BoxSize, error)
	CreateBinType(b *models.BinType) error
	GetBinType(enterpriseID, id uint) (*models.BinType, error)
	ListBinTypes(enterpriseID uint) ([]models.BinType, error)
	// CreatePalletType stores the type together with its per-box capacities.
	CreatePalletType(p *models.PalletType) error
	GetPalletType(enterpriseID, id uint) (*models.PalletType, error)
	FindPalletTypeByName(enterpriseID uint, name string) (*models.PalletType, error)
	ListPalletTypes(enterpriseID uint) ([]models.PalletType, error)

	CreateBatch(b *models.Batch) error
	GetBatch(enterpriseID, id uint) (*models.Batch, error)
	SaveBatch(b *models.Batch) error
	ListBatches(enterpriseID uint, statuses ...models.BatchStatus) ([]models.Batch, error)

	CreateLot(l *models.Lot) error
	GetLot(enterpriseID, id uint) (*models.Lot, error)
	ListLots(enterpriseID uint) ([]models.Lot, error)
	ListLotsByBatch(enterpriseID, batchID uint) ([]models.Lot, error)
	// SaveLot writes every column except palletized_boxes, provided the stored
	// palletized_boxes still equals l.PalletizedBoxes.
	SaveLot(l *models.Lot) error
	// AddPalletizedBoxes moves palletized_boxes from expected to expected+delta.
	AddPalletizedBoxes(enterpriseID, lotID uint, expected, delta int) error

	CreatePallet(p *models.Pallet) error
	GetPallet(enterpriseID, id uint) (*models.Pallet, error)
	ListPallets(enterpriseID uint) ([]models.Pallet, error)
	// SavePallet writes p provided the stored current_boxes equals expectedBoxes.
	SavePallet(p *models.Pallet, expectedBoxes int) error
	CreateAllocation(a *models.PalletAllocation) error
	ListAllocationsByPallet(enterpriseID, palletID uint) ([]models.PalletAllocation, error)

	ListContainers(enterpriseID uint) ([]models.Container, error)
	ListExportInvoices(enterpriseID uint) ([]models.ExportInvoice, error)
	ListGrowerPayments(enterpriseID uint) ([]models.GrowerPayment, error)
	ListLabourEntries(enterpriseID uint) ([]models.LabourEntry, error)

	FindActiveAlert(enterpriseID uint, alertType models.AlertType, subjectType string, subjectID uint) (*models.ReconciliationAlert, error)
	CreateAlert(a *models.ReconciliationAlert) error
	GetAlert(enterpriseID, id uint) (*models.ReconciliationAlert, error)
	SaveAlert(a *models.ReconciliationAlert) error
	ListAlerts(enterpriseID uint, f AlertFilter) ([]models.ReconciliationAlert, error)

	AppendAudit(l *models.AuditLog) error
	ListAudit(enterpriseID uint, f AuditFilter) ([]models.AuditLog, error)
}
