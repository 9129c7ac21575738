package database

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"lakra-backend/internal/config"
	"lakra-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database named by DATABASE_URL. postgresql:// URLs use the
// postgres driver, sqlite:/// paths the sqlite driver.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	}
	if cfg.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch {
	case cfg.IsPostgres():
		dialector = postgres.Open(cfg.DatabaseURL)
	case cfg.IsSQLite():
		path := cfg.SQLitePath()
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		dialector = sqliteDialector(path)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL %q", cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.IsPostgres() {
		sqlDB.SetMaxIdleConns(cfg.DBPoolSize)
		sqlDB.SetMaxOpenConns(cfg.DBPoolSize + cfg.DBMaxOverflow)
		sqlDB.SetConnMaxLifetime(cfg.DBPoolRecycle)
		sqlDB.SetConnMaxIdleTime(cfg.DBPoolTimeout)
	} else {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY under load.
		sqlDB.SetMaxOpenConns(1)
	}

	slog.Info("database connected", "postgres", cfg.IsPostgres())
	return db, nil
}

func sqliteDialector(path string) gorm.Dialector {
	return sqlite.Open(path + "?_foreign_keys=on&_busy_timeout=5000")
}

// OpenSQLite opens and migrates a sqlite database at path. Tests and local tooling use it.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqliteDialector(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates the schema plus the indexes gorm tags cannot express.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.UserLanguage{},
		&models.Sentence{},
		&models.Annotation{},
		&models.TextHighlight{},
		&models.Evaluation{},
		&models.MTQualityAssessment{},
		&models.LanguageProficiencyQuestion{},
		&models.OnboardingTest{},
		&models.UserQuestionAnswer{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	// At most one live annotation per (annotator, sentence). Deleted rows stay for audit.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_annotation_active
		ON annotations (annotator_id, sentence_id) WHERE status <> 'deleted'`).Error; err != nil {
		return fmt.Errorf("create idx_annotation_active: %w", err)
	}

	slog.Info("database migrated")
	return nil
}
