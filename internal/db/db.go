package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dorm-allocation-backend/config"
	"dorm-allocation-backend/internal/model"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&model.Dormitory{},
		&model.Faculty{},
		&model.Student{},
		&model.Room{},
		&model.RoomReservation{},
		&model.AccommodationApplication{},
		&model.DormitoryPass{},
		&model.RoomHistory{},
		&model.Notification{},
		&model.PushSubscription{},
	}
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations")
	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.ApplyConstraints {
		log.Info("applying claim constraints")
		if err := ApplyConstraints(db); err != nil {
			log.Warn("failed to apply some constraint DDL; continuing without them", zap.Error(err))
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// ApplyConstraints adds the partial unique indexes that back the
// one-active-claim rules at the storage level.
func ApplyConstraints(db *gorm.DB) error {
	ddls := []string{
		// at most one active reservation per (user, academic year)
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_room_reservations_active_claim " +
			"ON room_reservations (user_id, academic_year) " +
			"WHERE status IN ('pending_confirmation', 'confirmed', 'checked_in');",

		// at most one live application per (user, academic year)
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_accommodation_applications_active_claim " +
			"ON accommodation_applications (user_id, academic_year) " +
			"WHERE status NOT IN ('rejected', 'rejected_by_faculty', 'rejected_by_dorm', 'cancelled_by_user');",

		// at most one active pass per user
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_dormitory_passes_one_active " +
			"ON dormitory_passes (user_id) WHERE status = 'active';",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
