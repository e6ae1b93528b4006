package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CallBio/app/models"
	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/database"
	"github.com/ManuelReschke/CallBio/internal/pkg/env"
	"github.com/ManuelReschke/CallBio/internal/pkg/logging"
)

// apikey issues or revokes the API key that guards /api/v1 for one user.
func main() {
	env.SetupEnvFile()
	logging.Setup()

	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	command, email := os.Args[1], os.Args[2]

	database.SetupDatabase()
	db := database.GetDB()
	users := repository.NewUserRepository(db)

	user, err := users.GetByEmail(context.Background(), email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatal().Str("email", email).Msg("no user with this email")
	} else if err != nil {
		log.Fatal().Err(err).Msg("failed to load user")
	}

	settings, err := models.GetOrCreateUserSettings(db, user.ID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load user settings")
	}

	switch command {
	case "issue":
		raw, err := settings.IssueAPIKey()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate api key")
		}
		if err := db.Save(settings).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to store api key")
		}
		log.Info().Uint("user_id", user.ID).Str("prefix", settings.APIKeyPrefix).Msg("api key issued")
		// The raw key is shown once and never stored.
		fmt.Println(raw)

	case "revoke":
		if !settings.HasActiveAPIKey() {
			log.Info().Uint("user_id", user.ID).Msg("user has no active api key")
			return
		}
		settings.RevokeAPIKey()
		if err := db.Save(settings).Error; err != nil {
			log.Fatal().Err(err).Msg("failed to revoke api key")
		}
		log.Info().Uint("user_id", user.ID).Msg("api key revoked")

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run cmd/apikey/main.go [issue|revoke] <email>")
}
