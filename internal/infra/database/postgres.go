package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/caselaw-dupcheck/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// MigratePostgres creates the tables this service owns.
func MigratePostgres(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DuplicateRelation{},
		&models.DuplicateCheckRun{},
		&models.SuppressedFileNumber{},
	)
}

// MigrateAttributeStore creates the attribute store tables. In production
// they belong to the documentation store; this is for local setups and tests.
func MigrateAttributeStore(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.DocumentType{},
		&models.DocumentationUnit{},
		&models.UnitFileNumber{},
		&models.UnitDecisionDate{},
		&models.UnitDeviatingCourt{},
		&models.UnitECLI{},
	)
}
