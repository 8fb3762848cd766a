package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	appContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/services/handlers"
	"github.com/fableink/fable_api/shared"
)

// HttpService wires the fiber app: middleware, the central error handler
// and the full route table.
type HttpService struct {
	appContext.DefaultService

	authSvc      *AuthService
	userSvc      *UserService
	postSvc      *PostService
	viewSvc      *ViewService
	mediaSvc     *MediaService
	rateLimitSvc *RateLimitService
	analyticsSvc *ViewAnalyticsService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_SVC).(*AuthService)
	svc.userSvc = svc.Service(USER_SVC).(*UserService)
	svc.postSvc = svc.Service(POST_SVC).(*PostService)
	svc.viewSvc = svc.Service(VIEW_SVC).(*ViewService)
	svc.mediaSvc = svc.Service(MEDIA_SVC).(*MediaService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.analyticsSvc = svc.Service(VIEW_ANALYTICS_SVC).(*ViewAnalyticsService)

	app := fiber.New(fiber.Config{
		AppName:      SERVICE_NAME,
		ErrorHandler: svc.handleError,
		BodyLimit:    10 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(MonitoringMiddleware())

	app.Get("/ping", svc.ping)

	svc.registerRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return shared.NewNotFoundError(nil, "Page not found")
	})

	svc.server = app

	log.WithField("port", svc.port).Info("HTTP server starting")
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

func (svc *HttpService) registerRoutes(app *fiber.App) {
	authHandler := handlers.NewAuthHandler(svc.authSvc)
	userHandler := handlers.NewUserHandler(svc.userSvc)
	postHandler := handlers.NewPostHandler(svc.postSvc, svc.viewSvc)
	mediaHandler := handlers.NewMediaHandler(svc.mediaSvc, svc.postSvc)
	adminHandler := handlers.NewAdminHandler(svc.analyticsSvc, svc.rateLimitSvc)

	v1 := app.Group("/api/v1")

	v1.Get("/ping", svc.ping)

	// Auth flows share the strict limiter
	authLimited := v1.Group("", svc.rateLimitSvc.Middleware(LimiterAuth))
	authLimited.Post("/register", authHandler.Register)
	authLimited.Post("/verify-email", authHandler.VerifyEmail)
	authLimited.Post("/resend-verification", authHandler.ResendVerification)
	authLimited.Post("/login", authHandler.Login)
	authLimited.Post("/refresh", authHandler.RefreshToken)
	authLimited.Post("/forgot-password", authHandler.ForgotPassword)
	authLimited.Post("/reset-password", authHandler.ResetPassword)

	v1.Get("/username/:username/check", userHandler.CheckUsername)

	// Public reads; identity is attached when a token is present so the
	// view pipeline can apply author exclusion and per-user cooldowns
	v1.Get("/posts", svc.authSvc.OptionalAuth(), postHandler.ListPosts)
	v1.Get("/posts/:id",
		svc.rateLimitSvc.Middleware(LimiterView),
		svc.authSvc.OptionalAuth(),
		postHandler.GetPost)

	// Authenticated routes
	authed := v1.Group("", svc.authSvc.RequiredAuth())
	authed.Post("/logout", authHandler.Logout)
	authed.Post("/change-password", authHandler.ChangePassword)
	authed.Get("/me", userHandler.GetProfile)
	authed.Put("/me", userHandler.UpdateProfile)
	authed.Get("/me/posts", postHandler.MyPosts)

	content := authed.Group("", svc.rateLimitSvc.Middleware(LimiterContent))
	content.Post("/posts", postHandler.CreatePost)
	content.Post("/posts/:id/image", mediaHandler.UploadPostImage)

	authed.Put("/posts/:id", postHandler.UpdatePost)
	authed.Delete("/posts/:id", postHandler.DeletePost)

	// Admin routes
	admin := authed.Group("/admin", svc.authSvc.RequireRole(shared.RoleAdmin))
	admin.Get("/views/summary", adminHandler.ViewsSummary)
	admin.Get("/ratelimits", adminHandler.RateLimitStats)
	admin.Delete("/ratelimits/:key", adminHandler.ResetRateLimit)
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}

func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	if appErr, ok := shared.GetAppError(err); ok {
		if appErr.StatusCode >= 500 {
			log.WithError(appErr.Err).WithField("path", c.Path()).Error(appErr.Message)
		}
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	return shared.ResponseInternalError(c, err)
}
