package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/mealplanner/backend/internal/api"
	"github.com/pageza/mealplanner/backend/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Identity      *api.IdentityHandler
	Conversations *api.ConversationHandler
	Recipes       *api.RecipeHandler
	MealPlans     *api.MealPlanHandler

	// IdentityMiddleware resolves the owner of each /api/v1 request.
	IdentityMiddleware gin.HandlerFunc
	// ConversionLimit throttles conversion attempts; nil disables it.
	ConversionLimit gin.HandlerFunc
	// Health reports readiness.
	Health gin.HandlerFunc
}

// SetupRouter configures the application routes
func SetupRouter(h Handlers, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.ErrorHandler(), middleware.RequestLogger())

	// CORS middleware
	router.Use(middleware.CORS(allowedOrigins))

	router.GET("/health", h.Health)

	// API v1 routes; every request resolves to an owner first
	v1 := router.Group("/api/v1")
	v1.Use(h.IdentityMiddleware)
	{
		v1.GET("/identity", h.Identity.GetIdentity)

		convert := []gin.HandlerFunc{middleware.RequireUser()}
		if h.ConversionLimit != nil {
			convert = append(convert, h.ConversionLimit)
		}
		convert = append(convert, h.Identity.ConvertGuest)
		v1.POST("/guest/convert", convert...)

		h.Conversations.RegisterRoutes(v1)
		h.Recipes.RegisterRoutes(v1)
		h.MealPlans.RegisterRoutes(v1)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
