package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/mathi4s/gatehouse/internal/admission"
	"github.com/mathi4s/gatehouse/internal/api/handlers"
	"github.com/mathi4s/gatehouse/internal/api/middleware"
	"github.com/mathi4s/gatehouse/internal/config"
	"github.com/mathi4s/gatehouse/internal/geo"
	"github.com/mathi4s/gatehouse/internal/logger"
	"github.com/mathi4s/gatehouse/internal/metrics"
	"github.com/mathi4s/gatehouse/internal/models"
	"github.com/mathi4s/gatehouse/internal/payments"
	"github.com/mathi4s/gatehouse/internal/reputation"
	"github.com/mathi4s/gatehouse/internal/services"
)

// Deps carries the collaborators Register wires into the route tree. Only
// the DB is mandatory; everything else falls back to a disabled no-op so
// tests and minimal deployments can skip external services.
type Deps struct {
	WindowStore admission.WindowStore
	Reputation  reputation.Checker
	Geo         geo.Resolver
	Mailer      services.Mailer
	Gateway     payments.CheckoutClient
	Registry    *prometheus.Registry
}

// Register performs migrations and wires up all API routes.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) error {
	if err := db.AutoMigrate(
		&models.BlockedIP{},
		&models.AllowlistIP{},
		&models.Appeal{},
		&models.VpnAlert{},
		&models.User{},
		&models.Subscriber{},
		&models.Unsubscribed{},
		&models.Donation{},
		&models.PageView{},
		&models.Setting{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	if deps.WindowStore == nil {
		deps.WindowStore = admission.NewMemoryStore()
	}
	if deps.Reputation == nil {
		deps.Reputation = reputation.Disabled{}
	}
	if deps.Geo == nil {
		deps.Geo = geo.Noop{}
	}
	if deps.Registry != nil {
		metrics.Register(deps.Registry)
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// Services
	moderationService := services.NewModerationService(db)
	alertService := services.NewVpnAlertService(db)
	appealService := services.NewAppealService(db)
	subscriberService := services.NewSubscriberService(db)
	accountService := services.NewAccountService(db, cfg.JWTSecret)
	settingsService := services.NewSettingsService(db)
	analyticsService := services.NewAnalyticsService(db, deps.Geo, settingsService)
	donationService := services.NewDonationService(db, deps.Gateway, cfg.SiteURL)
	notificationService := services.NewNotificationService(cfg.Notify.WebhookURL, cfg.Notify.MentionID)
	mailService := services.NewMailService(deps.Mailer, cfg.SiteURL)

	// Admission pipeline
	limiter := admission.NewLimiter(deps.WindowStore)
	cooldown := admission.NewCooldown(cfg.Admission.NotifyCooldown)
	classifier := admission.NewClassifier(
		moderationService, alertService, deps.Reputation, notificationService,
		limiter, cooldown, cfg.SiteURL+"/appeal")

	// Handlers
	admissionHandler := handlers.NewAdmissionHandler(classifier)
	appealHandler := handlers.NewAppealHandler(appealService, notificationService)
	alertHandler := handlers.NewVpnAlertHandler(alertService, moderationService, notificationService)
	moderationHandler := handlers.NewModerationHandler(moderationService, notificationService)
	newsletterHandler := handlers.NewNewsletterHandler(subscriberService, mailService, notificationService, classifier)
	contactHandler := handlers.NewContactHandler(mailService, notificationService, classifier, cfg.Mail.SenderEmail)
	accountHandler := handlers.NewAccountHandler(accountService, mailService, notificationService, classifier)
	donationHandler := handlers.NewDonationHandler(donationService, mailService, notificationService, classifier)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, notificationService)

	router.GET("/api/v1/health", handlers.HealthHandler)

	api := router.Group("/api/v1")

	// Public surface
	api.POST("/admission/check", admissionHandler.Check)
	api.POST("/appeals", appealHandler.Submit)
	api.POST("/newsletter/subscribe", newsletterHandler.Subscribe)
	api.GET("/newsletter/confirm", newsletterHandler.Confirm)
	api.POST("/newsletter/unsubscribe", newsletterHandler.Unsubscribe)
	api.POST("/contact", contactHandler.Submit)
	api.POST("/account/register", accountHandler.Register)
	api.GET("/account/verify", accountHandler.Verify)
	api.POST("/account/login", accountHandler.Login)
	api.POST("/account/password/forgot", accountHandler.ForgotPassword)
	api.POST("/account/password/reset", accountHandler.ResetPassword)
	api.POST("/donations/session", donationHandler.CreateSession)
	api.POST("/donations/webhook", donationHandler.Webhook)
	api.POST("/analytics/track", analyticsHandler.Track)

	// Session-scoped surface
	session := api.Group("/")
	session.Use(middleware.SessionAuth(accountService))
	{
		session.GET("/account/me", accountHandler.Me)
	}

	// Admin surface
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminToken))
	{
		admin.GET("/appeals", appealHandler.List)
		admin.GET("/appeals/stats", appealHandler.Stats)
		admin.POST("/appeals/:id/resolve", appealHandler.Resolve)

		admin.GET("/vpn-alerts", alertHandler.List)
		admin.GET("/vpn-alerts/stats", alertHandler.Stats)
		admin.GET("/vpn-alerts/:id", alertHandler.Get)
		admin.PUT("/vpn-alerts/:id", alertHandler.Update)

		admin.GET("/blocked-ips", moderationHandler.ListBlocked)
		admin.POST("/blocked-ips", moderationHandler.Block)
		admin.DELETE("/blocked-ips/:id", moderationHandler.Unblock)

		admin.GET("/allowlist", moderationHandler.ListAllowlist)
		admin.POST("/allowlist", moderationHandler.Allowlist)
		admin.DELETE("/allowlist/:id", moderationHandler.RemoveAllowlist)

		admin.GET("/subscribers", newsletterHandler.List)
		admin.POST("/newsletter/send", newsletterHandler.Broadcast)
		admin.GET("/donations", donationHandler.List)
		admin.GET("/donations/stats", donationHandler.Stats)
		admin.PUT("/users/:id/status", accountHandler.UpdateStatus)

		admin.GET("/analytics/pages", analyticsHandler.Stats)
		admin.GET("/analytics/countries", analyticsHandler.Countries)

		admin.GET("/settings", settingsHandler.List)
		admin.GET("/settings/:key", settingsHandler.Get)
		admin.PUT("/settings/:key", settingsHandler.Set)
		admin.POST("/notifications/test", settingsHandler.TestNotification)
	}

	logger.Log().Info("routes registered")
	return nil
}
