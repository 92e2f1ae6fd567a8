package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	adminapi "voiceclone-backend/internal/api/admin"
	authapi "voiceclone-backend/internal/api/auth"
	"voiceclone-backend/internal/api/billing"
	notificationsapi "voiceclone-backend/internal/api/notifications"
	plansapi "voiceclone-backend/internal/api/plans"
	"voiceclone-backend/internal/api/stripewebhook"
	usersapi "voiceclone-backend/internal/api/users"
	voiceapi "voiceclone-backend/internal/api/voice"
	"voiceclone-backend/internal/app/http/middleware"
	"voiceclone-backend/internal/domain/access"
)

type Handlers struct {
	Auth          *authapi.Handler
	Billing       *billing.Handler
	Webhook       *stripewebhook.Handler
	Plans         *plansapi.Handler
	Notifications *notificationsapi.Handler
	Users         *usersapi.Handler
	Admin         *adminapi.Handler
	Voice         *voiceapi.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers, jwtSecret string, entitlement middleware.EntitlementChecker) {
	// Raw body: must stay ahead of the sanitizing group.
	r.POST("/subscription/stripe", h.Webhook.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/subscription/stripe-cancel", h.Billing.StripeCancel)
	r.GET("/auth/google", h.Auth.GoogleStart)
	r.GET("/auth/google/callback", h.Auth.GoogleCallback)

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/auth/register", h.Auth.Register)
	public.POST("/auth/login", h.Auth.Login)
	public.POST("/auth/refresh", h.Auth.Refresh)
	public.POST("/auth/logout", h.Auth.Logout)
	public.POST("/auth/otp", h.Auth.RequestOTP)
	public.POST("/auth/otp/verify", h.Auth.VerifyOTP)
	public.POST("/auth/password/reset", h.Auth.ResetPassword)
	public.GET("/package/active", h.Plans.ListActive)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(jwtSecret), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/me", h.Users.GetCurrentUser)
	auth.POST("/auth/change-password", h.Auth.ChangePassword)

	auth.POST("/subscription/initialize", h.Billing.Initialize)
	auth.POST("/subscription/stripe-session", h.Billing.CreateCheckoutSession)
	auth.GET("/subscription/stripe-success", h.Billing.StripeSuccess)
	auth.POST("/subscription/cancel", h.Billing.Cancel)
	auth.PUT("/subscription/renew", h.Billing.Renew)
	auth.GET("/subscription/details", h.Billing.Details)
	auth.GET("/subscription/access", h.Billing.Access)

	auth.GET("/notifications", h.Notifications.List)
	auth.PATCH("/notifications/:id/read", h.Notifications.MarkRead)
	auth.PUT("/notifications/:id/read", h.Notifications.MarkRead)

	// Entitled users
	entitled := auth.Group("/")
	entitled.Use(middleware.RequireEntitlement(entitlement))
	entitled.POST("/voice/clone", h.Voice.Clone)

	// Plan management
	pkg := r.Group("/package")
	pkg.Use(middleware.AuthMiddleware(jwtSecret), middleware.RequireRole(access.RoleAdmin), middleware.SanitizeAndCleanInputMiddleware())
	pkg.GET("", h.Plans.ListAll)
	pkg.POST("/add", h.Plans.Create)
	pkg.PUT("/:packId", h.Plans.Update)
	pkg.PUT("/:packId/suspend", h.Plans.Suspend)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtSecret), middleware.RequireRole(access.RoleAdmin))
	admin.GET("/users", h.Admin.ListAllUsers)
	admin.GET("/user/:id", h.Admin.GetUserDetails)
	admin.POST("/sweep", h.Admin.RunSweep)
	admin.GET("/voice/queue", h.Voice.QueueLength)
}
