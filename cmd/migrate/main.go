package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/internal/pkg/database"
	"github.com/ManuelReschke/CallBio/internal/pkg/env"
	"github.com/ManuelReschke/CallBio/internal/pkg/logging"
)

func main() {
	// Load environment variables from .env
	env.SetupEnvFile()
	logging.Setup()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	driver := database.Driver()

	log.Info().
		Str("driver", driver).
		Str("user", env.GetEnv("DB_USER", "callbio")).
		Str("host", env.GetEnv("DB_HOST", "db")).
		Str("database", env.GetEnv("DB_NAME", "callbio")).
		Msg("connecting to database")

	m, err := migrate.New("file://migrations/"+driver, migrationURL(driver))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize migrations")
	}

	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Error().AnErr("source", sourceErr).AnErr("database", dbErr).Msg("failed to close migration resources")
		}
	}()

	switch command {
	case "up":
		// Run all pending migrations
		if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no changes: database is up to date")
		} else if err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		} else {
			log.Info().Msg("migrations applied")
		}

	case "down":
		// Roll back the last migration
		if err := m.Steps(-1); err != nil {
			log.Fatal().Err(err).Msg("failed to roll back the last migration")
		}
		log.Info().Msg("last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal().Msg("please provide a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid version number")
		}

		if err := m.Migrate(uint(version)); errors.Is(err, migrate.ErrNoChange) {
			log.Info().Uint64("version", version).Msg("no changes: database already at version")
		} else if err != nil {
			log.Fatal().Err(err).Uint64("version", version).Msg("failed to migrate to version")
		} else {
			log.Info().Uint64("version", version).Msg("migrated to version")
		}

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("no migrations have been applied yet")
		} else if err != nil {
			log.Fatal().Err(err).Msg("failed to read migration version")
		} else {
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration version")
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func migrationURL(driver string) string {
	user := env.GetEnv("DB_USER", "callbio")
	password := env.GetEnv("DB_PASSWORD", "callbio")
	host := env.GetEnv("DB_HOST", "db")
	name := env.GetEnv("DB_NAME", "callbio")

	if driver == database.DriverPostgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(user, password),
			Host:     fmt.Sprintf("%s:%s", host, env.GetEnv("DB_PORT", "5432")),
			Path:     "/" + name,
			RawQuery: "sslmode=" + env.GetEnv("DB_SSLMODE", "disable"),
		}
		return u.String()
	}
	return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
		user, password, host, env.GetEnv("DB_PORT", "3306"), name)
}

func printUsage() {
	fmt.Println("Usage: go run cmd/migrate/main.go [command]")
	fmt.Println("Commands (driver from DB_DRIVER, migrations/<driver>):")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
