package main

import (
	"github.com/alphabatem/common/context"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fableink/fable_api/services"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Warn().Err(err).Msg("No .env file loaded")
	}

	ctx, err := context.NewCtx(
		&services.SqlService{},
		&services.RedisService{},
		&services.JWTService{},
		&services.EmailService{},
		&services.GeolocationService{},
		&services.MinIOService{},
		&services.MediaService{},

		&services.RateLimitService{},
		&services.ViewAnalyticsService{},
		&services.ViewTrackerService{},
		&services.ViewGuardService{},
		&services.ViewService{},

		&services.AuthService{},
		&services.UserService{},
		&services.PostService{},

		&services.MonitoringService{},
		&services.HttpService{},
	)
	if err != nil {
		log.Fatal().Err(err)
		return
	}

	err = ctx.Run()
	if err != nil {
		log.Fatal().Err(err)
		return
	}
}
