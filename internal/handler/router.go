package handler

import (
	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/middleware"
	"ahsan-gpt-go/internal/service"

	"github.com/gin-gonic/gin"
)

// authPrefix 下的请求体和响应体含有密码与 token，请求日志中不记录。
const authPrefix = "/api/v1/auth"

// NewRouter 创建路由引擎并注册所有路由。throttle 为 nil 时不做 IP 限流。
func NewRouter(cfg config.Config, authService service.AuthService, sessions *service.SessionRegistry, throttle *middleware.IPThrottle) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(authPrefix), gin.Recovery())
	if throttle != nil {
		r.Use(throttle.Middleware())
	}

	authHandler := NewAuthHandler(authService, sessions)
	conversationHandler := NewConversationHandler(sessions, cfg.Upload)
	chatHandler := NewChatHandler(authService, sessions, cfg.Upload)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/provider", authHandler.Provider)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/verify-email", authHandler.VerifyEmail)
			auth.POST("/password-reset", authHandler.RequestPasswordReset)
			auth.POST("/password-reset/confirm", authHandler.ConfirmPasswordReset)

			// 已登录即可访问，未验证邮箱的用户需要用这些接口完成验证
			authed := auth.Group("")
			authed.Use(middleware.AuthMiddleware(authService, false))
			{
				authed.GET("/me", authHandler.Me)
				authed.POST("/verification", authHandler.ResendVerification)
				authed.POST("/logout", authHandler.Logout)
			}
		}

		apiV1.GET("/modes", Modes)

		verified := apiV1.Group("")
		verified.Use(middleware.AuthMiddleware(authService, true))
		{
			conversations := verified.Group("/conversations")
			{
				conversations.GET("", conversationHandler.List)
				conversations.POST("", conversationHandler.Create)
				conversations.PUT("/active", conversationHandler.Select)
				conversations.PUT("/mode", conversationHandler.SetMode)
				conversations.DELETE("/:id", conversationHandler.Delete)
				conversations.POST("/messages", conversationHandler.Send)
				conversations.GET("/suggestions", conversationHandler.Suggestions)
			}
			verified.POST("/intent", conversationHandler.Intent)
		}
	}

	r.GET("/chat/ws/:token", chatHandler.Handle)
	return r
}
