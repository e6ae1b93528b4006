package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/ManuelReschke/CallBio/app/controllers"
	"github.com/ManuelReschke/CallBio/app/repository"
	"github.com/ManuelReschke/CallBio/internal/pkg/bio"
	"github.com/ManuelReschke/CallBio/internal/pkg/biosharing"
	"github.com/ManuelReschke/CallBio/internal/pkg/cache"
	"github.com/ManuelReschke/CallBio/internal/pkg/database"
	"github.com/ManuelReschke/CallBio/internal/pkg/env"
	"github.com/ManuelReschke/CallBio/internal/pkg/logging"
	"github.com/ManuelReschke/CallBio/internal/pkg/mail"
	"github.com/ManuelReschke/CallBio/internal/pkg/meetings"
	"github.com/ManuelReschke/CallBio/internal/pkg/metrics"
	"github.com/ManuelReschke/CallBio/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CallBio/internal/pkg/router"
	"github.com/ManuelReschke/CallBio/internal/pkg/webhook"
	"github.com/ManuelReschke/CallBio/internal/pkg/zoom"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal().Err(err).Msg("server stopped")
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	logging.Setup()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	// Define possible base paths
	basePaths := []string{
		"./",     // Current directory
		"../../", // From cmd/callbio to project root
	}
	basePath := "./"
	for _, path := range basePaths {
		if _, err := os.Stat(path + "public/docs/v1/openapi.yml"); err == nil {
			basePath = path
			break
		}
	}

	// collaborators
	zoomClient := zoom.NewClientFromEnv()
	if !zoomClient.Configured() {
		log.Warn().Msg("zoom API credentials missing, chat sharing and proxy routes are unavailable")
	}
	mailer, err := mail.NewFromEnv()
	if err != nil {
		log.Warn().Err(err).Msg("mail transport misconfigured, falling back to log mailer")
		mailer = mail.LogMailer{}
	}
	gateway := bio.NewGatewayFromEnv(repos.Bio)

	orchestrator := biosharing.NewOrchestrator(
		repos.Meeting,
		repos.Participant,
		[]biosharing.Channel{biosharing.NewChatChannel(zoomClient), biosharing.NewEmailChannel(mailer)},
		biosharing.WithChannelTimeout(env.GetDuration("BIO_SHARING_CHANNEL_TIMEOUT", biosharing.DefaultChannelTimeout)),
		biosharing.WithLogger(logging.Component("biosharing")),
	)
	meetingService := meetings.NewService(repos.Meeting, repos.Participant, gateway, orchestrator, logging.Component("meetings"))

	events := webhook.NewEventStore(repos.WebhookEvent)
	processor := webhook.NewProcessor(env.GetEnv("ZOOM_WEBHOOK_SECRET", ""), events, meetingService, logging.Component("webhook"))

	// Redis is optional: without it the status view is computed per request
	// and the limiter counts in memory.
	var statusCache webhook.JSONCache
	var limiterStorage fiber.Storage
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cache.Ping(ctx); err == nil {
		statusCache = cache.NewJSONCache(cache.GetClient())
		limiterStorage = ratelimit.NewStorage()
	} else {
		log.Warn().Err(err).Msg("cache unavailable, using in-memory rate limiting")
	}
	cancel()
	status := webhook.NewStatusService(events, repos.Meeting, statusCache, logging.Component("status"))

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "CallBio",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())
	app.Get("/metrics/prometheus", adaptor.HTTPHandler(metrics.Handler()))

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: basePath + "public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, router.Handlers{
		Webhook:         controllers.NewWebhookController(processor, status),
		Meeting:         controllers.NewMeetingController(meetingService),
		BioLookup:       controllers.NewBioLookupController(gateway),
		Zoom:            controllers.NewZoomController(zoomClient, gateway),
		Users:           repos.User,
		LimiterStorage:  limiterStorage,
		RateLimitMax:    env.GetInt("API_RATE_LIMIT", 60),
		RateLimitWindow: env.GetDuration("API_RATE_LIMIT_WINDOW", time.Minute),
	})

	return app
}
