package handler

import (
	"errors"
	"net/http"

	"ahsan-gpt-go/internal/middleware"
	"ahsan-gpt-go/internal/service"
	"ahsan-gpt-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理会话网关相关的 API 请求：注册、登录、验证、重置密码和登出。
type AuthHandler struct {
	authService service.AuthService
	sessions    *service.SessionRegistry
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService service.AuthService, sessions *service.SessionRegistry) *AuthHandler {
	return &AuthHandler{authService: authService, sessions: sessions}
}

// CredentialsRequest 定义了注册和登录 API 的请求体结构。
type CredentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authFailure 把认证错误映射为 HTTP 状态码和展示文本。
func authFailure(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	message := "Authentication service unavailable"
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrInvalidActionToken):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidRefreshToken),
		errors.Is(err, service.ErrUnauthenticated):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAccountExists),
		errors.Is(err, service.ErrAlreadyVerified):
		status, message = http.StatusConflict, err.Error()
	}
	if status == http.StatusInternalServerError {
		log.Errorf("%s failed: %v", op, err)
	} else {
		log.Warnf("%s rejected: %v", op, err)
	}
	respond(c, status, message, nil)
}

// Register 处理密码注册请求，注册成功后会发送验证邮件。
func (h *AuthHandler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	tokens, err := h.authService.SignUpWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		authFailure(c, "Register", err)
		return
	}
	log.Infow("User registered", "userId", tokens.User.ID)
	respond(c, http.StatusOK, "User registered successfully", tokens)
}

// Login 处理密码登录请求。
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	tokens, err := h.authService.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		authFailure(c, "Login", err)
		return
	}
	log.Infow("User logged in", "userId", tokens.User.ID)
	respond(c, http.StatusOK, "Login successful", tokens)
}

// ProviderRequest 携带身份提供方签发的断言。
type ProviderRequest struct {
	Assertion string `json:"assertion" binding:"required"`
}

// Provider 处理第三方身份提供方登录。
func (h *AuthHandler) Provider(c *gin.Context) {
	var req ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "assertion is required")
		return
	}
	tokens, err := h.authService.SignInWithProvider(c.Request.Context(), req.Assertion)
	if err != nil {
		authFailure(c, "Provider sign-in", err)
		return
	}
	respond(c, http.StatusOK, "Login successful", tokens)
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refreshToken is required")
		return
	}
	tokens, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		authFailure(c, "RefreshToken", err)
		return
	}
	respond(c, http.StatusOK, "Token refreshed successfully", tokens)
}

// ActionTokenRequest 携带邮件链接中的 token。
type ActionTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password"`
}

// VerifyEmail 完成邮箱验证。
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req ActionTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token is required")
		return
	}
	user, err := h.authService.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		authFailure(c, "VerifyEmail", err)
		return
	}
	respond(c, http.StatusOK, "Email verified", user)
}

// EmailRequest 只包含邮箱。
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestPasswordReset 发送密码重置邮件。无论邮箱是否存在都返回成功。
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	if err := h.authService.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		authFailure(c, "SendPasswordReset", err)
		return
	}
	respond(c, http.StatusOK, "Password reset email sent", nil)
}

// ConfirmPasswordReset 使用重置 token 设置新密码。
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req ActionTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		badRequest(c, "token and password are required")
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		authFailure(c, "ResetPassword", err)
		return
	}
	respond(c, http.StatusOK, "Password updated", nil)
}

// ResendVerification 重新发送验证邮件，未验证的用户也可以访问。
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.authService.SendVerificationEmail(c.Request.Context(), user.ID); err != nil {
		authFailure(c, "SendVerificationEmail", err)
		return
	}
	respond(c, http.StatusOK, "Verification email sent", nil)
}

// Me 返回当前用户以及网关决定。
func (h *AuthHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ok(c, gin.H{
		"user":   user,
		"access": service.Decide(user),
	})
}

// Logout 处理用户登出逻辑，并释放用户的会话核心。
func (h *AuthHandler) Logout(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if err := h.authService.SignOut(c.Request.Context(), middleware.AccessToken(c)); err != nil {
		authFailure(c, "Logout", err)
		return
	}
	h.sessions.Drop(user.ID)
	log.Infow("User logged out", "userId", user.ID)
	respond(c, http.StatusOK, "Logout successful", nil)
}
