package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

var DB *gorm.DB

// GetDB returns the shared connection pool set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// Driver returns the configured SQL dialect, mysql unless DB_DRIVER says otherwise.
func Driver() string {
	if env.GetEnv("DB_DRIVER", DriverMySQL) == DriverPostgres {
		return DriverPostgres
	}
	return DriverMySQL
}

// Dialector builds the gorm dialector for the configured driver.
func Dialector() gorm.Dialector {
	user := env.GetEnv("DB_USER", "")
	password := env.GetEnv("DB_PASSWORD", "")
	host := env.GetEnv("DB_HOST", "127.0.0.1")
	name := env.GetEnv("DB_NAME", "")

	if Driver() == DriverPostgres {
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			host, user, password, name, env.GetEnv("DB_PORT", "5432"))
		return postgres.Open(dsn)
	}

	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, password, host, env.GetEnv("DB_PORT", "3306"), name)
	return mysql.New(mysql.Config{
		DSN:                       dsn,
		DefaultStringSize:         256,
		DisableDatetimePrecision:  true,
		DontSupportRenameIndex:    true,
		DontSupportRenameColumn:   true,
		SkipInitializeWithVersion: false,
	})
}

// Open connects with the settings every CallBio process shares.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	level := logger.Warn
	if env.IsDev() {
		level = logger.Info
	}
	return gorm.Open(dialector, &gorm.Config{
		// unique violations surface as gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
}

// AutoMigrate creates or updates the tables CallBio owns and reads.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserSettings{},
		&models.Bio{},
		&models.Meeting{},
		&models.MeetingParticipant{},
		&models.WebhookEvent{},
	)
}

func SetupDatabase() {
	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = Open(Dialector())
		if err == nil {
			if err = AutoMigrate(DB); err != nil {
				log.Error().Err(err).Msg("auto migration failed")
			}
			log.Info().Str("driver", Driver()).Msg("database connected")
			return
		}

		log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries).Msg("failed to connect to database")
		if i < maxRetries-1 {
			log.Info().Dur("delay", retryDelay).Msg("retrying database connection")
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
