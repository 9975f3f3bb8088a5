package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"focusbot/internal/handler"
	"focusbot/internal/middleware"
	"focusbot/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	channelHandler *handler.ChannelHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.Auth(authService), authHandler.Me)

	api.GET("/commands", channelHandler.Commands)

	channels := api.Group("/channels/:channelID")
	channels.Use(middleware.Auth(authService))
	channels.POST("/commands", channelHandler.Command)
	channels.POST("/reactions", channelHandler.React)
	channels.GET("/session", channelHandler.GetSession)
	channels.GET("/messages", channelHandler.GetMessages)

	return engine
}
