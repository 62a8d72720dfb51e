package routes

import (
	"enrollment-service/controllers"
	"enrollment-service/middleware"

	"github.com/gin-gonic/gin"
)

type Options struct {
	Auth        middleware.AuthConfig
	RateLimiter *middleware.RateLimiter
}

func RegisterPaymentRoutes(r *gin.Engine, ec *controllers.EnrollmentController, wc *controllers.WebhookController, opts Options) {
	payment := r.Group("/api/payment")

	// Gateway callback: authenticated by signature, not by user session.
	payment.POST("/webhook", wc.StripeWebhook)

	payment.GET("/courses", ec.Courses)

	user := payment.Group("")
	if opts.RateLimiter != nil {
		user.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}
	user.Use(middleware.AuthMiddleware(opts.Auth))
	user.POST("/create-checkout-session", ec.CreateCheckoutSession)
	user.GET("/verify-session/:sessionId", ec.VerifySession)
	user.GET("/user-courses", ec.UserCourses)
	user.GET("/all-enrollments", middleware.AdminOnly(), ec.AllEnrollments)
}
