package routes

import (
	"committeehub/controllers"

	"github.com/gin-gonic/gin"
)

// SetupCommitteeRoutes sets up committee, membership and speaker queue routes
func SetupCommitteeRoutes(router *gin.RouterGroup, h *controllers.CommitteeController, motions *controllers.MotionController) {
	committees := router.Group("/committees")
	{
		committees.GET("", h.List)
		committees.POST("", h.Create)
		committees.GET("/:id", h.Get)
		committees.DELETE("/:id", h.Delete)
		committees.PATCH("/:id/settings", h.UpdateSettings)

		committees.POST("/:id/members", h.AddMember)
		committees.PATCH("/:id/members/:memberId", h.UpdateMember)
		committees.DELETE("/:id/members/:memberId", h.RemoveMember)
		committees.POST("/:id/owner", h.TransferOwnership)

		committees.POST("/:id/hands", h.RaiseHand)
		committees.DELETE("/:id/hands/:handId", h.LowerHand)
		committees.GET("/:id/activity", h.Activity)

		committees.GET("/:id/motions", motions.List)
		committees.POST("/:id/motions", motions.Create)
	}
}
