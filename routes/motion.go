package routes

import (
	"committeehub/controllers"

	"github.com/gin-gonic/gin"
)

// SetupMotionRoutes sets up routes addressed by motion id
func SetupMotionRoutes(router *gin.RouterGroup, h *controllers.MotionController) {
	motions := router.Group("/motions/:motionId")
	{
		motions.GET("", h.Get)
		motions.POST("/discussion", h.AddDiscussion)
		motions.POST("/votes", h.CastVote)
		motions.POST("/decision", h.RecordDecision)
		motions.POST("/submotions", h.CreateSubMotion)
		motions.POST("/overturn", h.CreateOverturn)
	}
}
