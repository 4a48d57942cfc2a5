package database

import (
	"fmt"
	"time"

	"backoffice/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func gormConfig(logLevel logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// NewConnection opens the database for the configured driver and migrates the schema.
func NewConnection(driver, dsn string) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		db, err = OpenSQLite(dsn)
	case DriverPostgres, "":
		db, err = gorm.Open(postgres.Open(dsn), gormConfig(logger.Warn))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return db, nil
}

// OpenSQLite opens a SQLite database with a single connection, which keeps
// ":memory:" databases shared across a test and serializes writers.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig(logger.Silent))
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates the billing schema and seeds the document sequences.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Service{},
		&model.Price{},
		&model.Contract{},
		&model.ContractLine{},
		&model.ContractDocument{},
		&model.Invoice{},
		&model.InvoiceLine{},
		&model.Payment{},
		&model.PaymentAllocation{},
		&model.Receipt{},
		&model.DocumentSequence{},
		&model.AuditLog{},
	)
	if err != nil {
		return err
	}

	for _, name := range []string{model.SequenceContract, model.SequenceInvoice, model.SequenceNCF, model.SequenceReceipt} {
		seq := model.DocumentSequence{Name: name}
		if err := db.Where(model.DocumentSequence{Name: name}).FirstOrCreate(&seq).Error; err != nil {
			return fmt.Errorf("failed to seed sequence %s: %w", name, err)
		}
	}
	return nil
}
