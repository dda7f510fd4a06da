package database

import (
	"fmt"
	"time"

	"casino/config"
	"casino/logger"
	"casino/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Models lists every table owned by this service, in migration order.
func Models() []any {
	return []any{
		&models.Player{},
		&models.Transaction{},
		&models.GameRound{},
		&models.HouseOverride{},
		&models.WithdrawalBatch{},
		&models.Withdrawal{},
		&models.RiskEvent{},
		&models.PlatformSetting{},
		&models.PaymentEvent{},
	}
}

// GormConfig pins timestamps to UTC so windowed queries compare like with like.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:  newGormLogger(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func Connect(cfg *config.Config) error {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	DB = db
	logger.Info("connected to database", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	if cfg.DBAutoMigrate {
		logger.Info("starting auto-migration")
		if err := Migrate(DB); err != nil {
			return err
		}
		logger.Info("auto migration completed")
	}
	return nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
