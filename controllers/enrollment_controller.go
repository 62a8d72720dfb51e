package controllers

import (
	"net/http"

	"enrollment-service/catalog"
	"enrollment-service/middleware"
	"enrollment-service/services"

	"github.com/gin-gonic/gin"
)

// EnrollmentController handles the interactive payment routes.
type EnrollmentController struct {
	catalog  *catalog.Catalog
	checkout services.CheckoutService
	verifier services.SessionVerifier
	reader   services.EnrollmentReader
}

func NewEnrollmentController(
	cat *catalog.Catalog,
	checkout services.CheckoutService,
	verifier services.SessionVerifier,
	reader services.EnrollmentReader,
) *EnrollmentController {
	return &EnrollmentController{catalog: cat, checkout: checkout, verifier: verifier, reader: reader}
}

type createCheckoutRequest struct {
	ProductID string `json:"product_id"`
	// CourseID is accepted from older clients.
	CourseID string `json:"courseId"`
}

// CreateCheckoutSession handles POST /api/payment/create-checkout-session.
func (ec *EnrollmentController) CreateCheckoutSession(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": services.KindInvalidRequest})
		return
	}
	productID := req.ProductID
	if productID == "" {
		productID = req.CourseID
	}

	res, svcErr := ec.checkout.InitiateCheckout(c.Request.Context(), userID, productID)
	if svcErr != nil {
		respondServiceError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": res.ExternalSessionID, "url": res.RedirectURL})
}

// VerifySession handles GET /api/payment/verify-session/:sessionId.
func (ec *EnrollmentController) VerifySession(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	view, svcErr := ec.verifier.Verify(c.Request.Context(), userID, c.Param("sessionId"))
	if svcErr != nil {
		respondServiceError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"enrollment": view,
	})
}

// UserCourses handles GET /api/payment/user-courses.
func (ec *EnrollmentController) UserCourses(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	views, svcErr := ec.reader.ListCompletedForIdentity(c.Request.Context(), userID)
	if svcErr != nil {
		respondServiceError(c, svcErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"courses": views})
}

// AllEnrollments handles GET /api/payment/all-enrollments (admin only).
func (ec *EnrollmentController) AllEnrollments(c *gin.Context) {
	page, limit := parsePaginationParams(c)

	result, svcErr := ec.reader.ListAllEnrollments(c.Request.Context(), page, limit, c.Query("status"))
	if svcErr != nil {
		respondServiceError(c, svcErr)
		return
	}

	totalPages := int64(0)
	if result.Limit > 0 {
		totalPages = (result.Total + int64(result.Limit) - 1) / int64(result.Limit)
	}

	c.JSON(http.StatusOK, gin.H{
		"enrollments": result.Enrollments,
		"meta": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": totalPages,
			"has_more":    result.Total > int64(result.Page*result.Limit),
		},
	})
}

// Courses handles GET /api/payment/courses.
func (ec *EnrollmentController) Courses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"courses": ec.catalog.Products()})
}
