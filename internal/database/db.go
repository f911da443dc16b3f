package database

import (
	"packhouse-backend/internal/config"
	"packhouse-backend/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Init opens Postgres and migrates the schema. Duplicate key errors are
// translated to gorm.ErrDuplicatedKey so the store can report conflicts.
func Init(cfg *config.Config, logger *logrus.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.WithError(err).Fatal("could not connect to database")
	}

	err = db.AutoMigrate(
		&models.Enterprise{},
		&models.User{},
		&models.BoxSize{},
		&models.BinType{},
		&models.PalletType{},
		&models.PalletTypeCapacity{},
		&models.Batch{},
		&models.Lot{},
		&models.Pallet{},
		&models.PalletAllocation{},
		&models.Container{},
		&models.ExportInvoice{},
		&models.GrowerPayment{},
		&models.LabourEntry{},
		&models.ReconciliationAlert{},
		&models.AuditLog{},
	)
	if err != nil {
		logger.WithError(err).Fatal("auto migrate failed")
	}

	// At most one open or acknowledged alert per check and subject. AutoMigrate
	// cannot express a partial index.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reconciliation_alerts_active
		ON reconciliation_alerts (enterprise_id, alert_type, subject_type, subject_id)
		WHERE status IN ('open', 'acknowledged')
	`).Error; err != nil {
		logger.WithError(err).Fatal("could not create active alert index")
	}

	logger.Info("database connected, migration complete")
	return db
}
