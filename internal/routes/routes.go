package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/14kear/voteGateBot/internal/handlers"
)

func RegisterPublicRoutes(rg *gin.RouterGroup, auth *handlers.AuthHandler) {
	{
		rg.POST("/login", auth.Login)
	}
}

func RegisterPrivateRoutes(rg *gin.RouterGroup, polls *handlers.PollHandler, bcast *handlers.BroadcastHandler) {
	{
		rg.POST("/polls", polls.CreatePoll)
		rg.GET("/polls", polls.GetPolls)
		rg.GET("/polls/:id", polls.GetPollByID)
		rg.POST("/polls/:id/active", polls.SetPollActive)

		rg.GET("/polls/:id/results", polls.GetPollResults)
		rg.GET("/polls/:id/links", polls.GetPollLinks)

		rg.POST("/broadcast", bcast.Broadcast)
	}
}
