// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/internal/service"
	"ahsan-gpt-go/pkg/log"

	"github.com/gin-gonic/gin"
)

const (
	contextUserKey  = "user"
	contextTokenKey = "accessToken"

	// LoginRedirect 和 VerifyRedirect 是网关拒绝请求时告诉客户端的去向。
	LoginRedirect  = "/auth"
	VerifyRedirect = "/verify-email"
)

// UserResolver 由 service.AuthService 实现。
type UserResolver interface {
	CurrentUser(ctx context.Context, accessToken string) (*model.SessionUser, error)
}

// BearerToken 从 Authorization 头中取出 token。
func BearerToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
}

// AuthMiddleware 创建会话网关中间件。
// requireVerified 为 true 时，未验证邮箱的密码账号会被引导到验证页。
func AuthMiddleware(resolver UserResolver, requireVerified bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := BearerToken(c)
		var user *model.SessionUser
		if tokenString != "" {
			u, err := resolver.CurrentUser(c.Request.Context(), tokenString)
			if err != nil {
				log.Debugw("认证失败", "path", c.Request.URL.Path, "error", err)
			} else {
				user = u
			}
		}

		switch service.Decide(user) {
		case service.AccessLogin:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "请先登录",
				"data":    gin.H{"redirect": LoginRedirect},
			})
			return
		case service.AccessVerify:
			if requireVerified {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"code":    http.StatusForbidden,
					"message": "请先验证邮箱",
					"data":    gin.H{"redirect": VerifyRedirect},
				})
				return
			}
		}

		c.Set(contextUserKey, user)
		c.Set(contextTokenKey, tokenString)
		c.Next()
	}
}

// CurrentUser 返回 AuthMiddleware 注入的用户。
func CurrentUser(c *gin.Context) *model.SessionUser {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*model.SessionUser)
	return user
}

// AccessToken 返回 AuthMiddleware 校验过的 access token。
func AccessToken(c *gin.Context) string {
	return c.GetString(contextTokenKey)
}
