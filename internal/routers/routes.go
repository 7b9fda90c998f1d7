package routers

import (
	"khoomi-api-io/taxonomy/internal/container"
	"khoomi-api-io/taxonomy/internal/middleware"
	"khoomi-api-io/taxonomy/pkg/controllers"

	"github.com/gin-gonic/gin"
)

// InitRoute creates the Gin router for the category API
func InitRoute(sc *container.ServiceContainer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(sc.Logger))
	router.Use(middleware.CorsMiddleware(sc.Config.Server.AllowedOrigins))

	api := router.Group("/v1", middleware.KhoomiRateLimiter(sc.Redis, sc.Config.RateLimit))
	{
		api.GET("/ping", controllers.Ping)
		categoryRoutes(api, sc)
	}

	return router
}

// categoryRoutes configures category endpoints. Reads are public; anything
// that changes the taxonomy, and the audit, needs an admin token.
func categoryRoutes(api *gin.RouterGroup, sc *container.ServiceContainer) {
	cc := sc.GetCategoryController()
	categories := api.Group("/categories")

	categories.GET("", cc.GetAllCategories())
	categories.GET("/search", cc.SearchCategories())
	categories.GET("/:id", cc.GetCategory())
	categories.GET("/:id/children", cc.GetCategoryChildren())
	categories.GET("/:id/ancestors", cc.GetCategoryAncestors())
	categories.GET("/:id/template", cc.GetCategoryTemplate())
	categories.POST("/:id/template/validate", cc.ValidateListingAttributes())

	{
		admin := categories.Group("").Use(middleware.AdminOnly(sc.Tokens))
		admin.GET("/audit", cc.GetCategoryAudit())
		admin.POST("", cc.CreateCategory())
		admin.POST("/multi", cc.CreateCategoryMulti())
		admin.PUT("/:id", cc.UpdateCategory())
		admin.PUT("/:id/parent", cc.MoveCategory())
		admin.PUT("/:id/image", cc.UpdateCategoryImage())
		admin.DELETE("/:id", cc.DeleteCategory())
	}
}
