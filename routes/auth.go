package routes

import (
	"committeehub/controllers"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes registers the public account endpoints.
func SetupAuthRoutes(router *gin.RouterGroup, h *controllers.AuthController) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
	}
}

// SetupProfileRoutes registers the endpoints for the signed-in account.
func SetupProfileRoutes(router *gin.RouterGroup, h *controllers.AuthController) {
	router.GET("/auth/me", h.Me)
	router.PATCH("/auth/me", h.UpdateProfile)
}
