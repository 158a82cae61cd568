package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"ahsan-gpt-go/internal/config"
	"ahsan-gpt-go/internal/model"
	"ahsan-gpt-go/internal/repository"
	"ahsan-gpt-go/pkg/hash"
	"ahsan-gpt-go/pkg/log"
	"ahsan-gpt-go/pkg/token"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated     = errors.New("authentication required")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrWeakPassword        = errors.New("password is too short")
	ErrEmailTaken          = errors.New("email already registered")
	ErrAccountExists       = errors.New("an account with this email already exists with a different sign-in method")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrInvalidActionToken  = errors.New("invalid or expired link")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// Access 是会话网关对当前请求给出的路由决定。
type Access string

const (
	AccessLogin   Access = "login"
	AccessVerify  Access = "verify"
	AccessGranted Access = "granted"
)

// Decide 根据当前用户给出路由决定：未登录去登录页，密码账号未验证去验证页，其余放行。
func Decide(user *model.SessionUser) Access {
	switch {
	case user == nil:
		return AccessLogin
	case !user.IsVerified():
		return AccessVerify
	default:
		return AccessGranted
	}
}

// AuthTokens 是登录成功后返回给客户端的凭证。
type AuthTokens struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	User         *model.SessionUser `json:"user"`
}

// AuthService 实现会话网关：登录、注册、邮箱验证、密码重置和登出。
type AuthService interface {
	CurrentUser(ctx context.Context, accessToken string) (*model.SessionUser, error)
	IsLoading() bool
	SignInWithProvider(ctx context.Context, assertion string) (*AuthTokens, error)
	SignUpWithPassword(ctx context.Context, email, password string) (*AuthTokens, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthTokens, error)
	SendVerificationEmail(ctx context.Context, userID uint) error
	SendPasswordReset(ctx context.Context, email string) error
	SignOut(ctx context.Context, accessToken string) error
	VerifyEmail(ctx context.Context, actionToken string) (*model.SessionUser, error)
	ResetPassword(ctx context.Context, actionToken, newPassword string) error
	RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error)
}

type authService struct {
	userRepo    repository.UserRepository
	jwtManager  *token.JWTManager
	provider    *token.ProviderVerifier
	blacklist   repository.TokenBlacklist
	notifier    AuthNotifier
	minPassword int
	pending     atomic.Int64
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo repository.UserRepository, jwtManager *token.JWTManager, provider *token.ProviderVerifier,
	blacklist repository.TokenBlacklist, notifier AuthNotifier, cfg config.AuthConfig) AuthService {
	minPassword := cfg.MinPasswordLength
	if minPassword <= 0 {
		minPassword = 6
	}
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	return &authService{
		userRepo:    userRepo,
		jwtManager:  jwtManager,
		provider:    provider,
		blacklist:   blacklist,
		notifier:    notifier,
		minPassword: minPassword,
	}
}

// track 统计进行中的认证操作，用于 IsLoading。
func (s *authService) track() func() {
	s.pending.Add(1)
	return func() { s.pending.Add(-1) }
}

// IsLoading 报告是否有认证操作正在进行。
func (s *authService) IsLoading() bool {
	return s.pending.Load() > 0
}

var validate = validator.New()

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// CurrentUser 解析 access token 并返回最新的用户视图。
func (s *authService) CurrentUser(ctx context.Context, accessToken string) (*model.SessionUser, error) {
	if accessToken == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.jwtManager.VerifyPurpose(accessToken, token.PurposeAccess)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	revoked, err := s.blacklist.Contains(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("check token blacklist: %w", err)
	}
	if revoked {
		return nil, ErrUnauthenticated
	}
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return user.ToSessionUser(), nil
}

// SignInWithProvider 校验身份提供方的断言，首次登录时创建账号。
func (s *authService) SignInWithProvider(ctx context.Context, assertion string) (*AuthTokens, error) {
	defer s.track()()

	identity, err := s.provider.Verify(assertion)
	if err != nil {
		log.Warnw("身份提供方断言校验失败", "provider", s.provider.Name(), "error", err)
		return nil, ErrInvalidCredentials
	}
	email, err := normalizeEmail(identity.Email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByProvider(identity.Provider, identity.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if _, lookupErr := s.userRepo.FindByEmail(email); lookupErr == nil {
			return nil, ErrAccountExists
		} else if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return nil, lookupErr
		}
		user = &model.User{
			Email:         email,
			Provider:      identity.Provider,
			ProviderUID:   identity.Subject,
			EmailVerified: identity.EmailVerified,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, err
		}
		log.Infow("通过身份提供方创建账号", "userId", user.ID, "provider", identity.Provider)
	} else if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// SignUpWithPassword 创建密码账号并立即发送验证邮件。
func (s *authService) SignUpWithPassword(ctx context.Context, email, password string) (*AuthTokens, error) {
	defer s.track()()

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len([]rune(password)) < s.minPassword {
		return nil, ErrWeakPassword
	}

	_, err = s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Email:    email,
		Password: hashedPassword,
		Provider: model.ProviderPassword,
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		log.Warnw("注册后发送验证邮件失败", "userId", user.ID, "error", err)
	}
	return s.issue(user)
}

// SignInWithPassword 校验邮箱和密码。未验证的账号也能登录，由网关决定去向。
func (s *authService) SignInWithPassword(ctx context.Context, email, password string) (*AuthTokens, error) {
	defer s.track()()

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if user.Provider != model.ProviderPassword || !hash.CheckPasswordHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// SendVerificationEmail 为当前用户重新发送验证邮件。
func (s *authService) SendVerificationEmail(ctx context.Context, userID uint) error {
	defer s.track()()

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return err
	}
	if user.ToSessionUser().IsVerified() {
		return ErrAlreadyVerified
	}
	return s.sendVerification(ctx, user)
}

func (s *authService) sendVerification(ctx context.Context, user *model.User) error {
	actionToken, err := s.jwtManager.GenerateActionToken(user.ID, user.Email, token.PurposeVerifyEmail)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, AuthNotification{
		Kind:      NotifyVerifyEmail,
		Email:     user.Email,
		Token:     actionToken,
		CreatedAt: time.Now(),
	})
}

// SendPasswordReset 发送密码重置邮件。邮箱不存在时同样返回成功，避免泄露账号是否存在。
func (s *authService) SendPasswordReset(ctx context.Context, email string) error {
	defer s.track()()

	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Infow("密码重置请求的邮箱不存在", "email", email)
			return nil
		}
		return err
	}
	if user.Provider != model.ProviderPassword {
		log.Infow("第三方账号不支持密码重置", "userId", user.ID, "provider", user.Provider)
		return nil
	}

	actionToken, err := s.jwtManager.GenerateActionToken(user.ID, user.Email, token.PurposeResetPassword)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, AuthNotification{
		Kind:      NotifyPasswordReset,
		Email:     user.Email,
		Token:     actionToken,
		CreatedAt: time.Now(),
	})
}

// SignOut 将 access token 加入黑名单直到其自然过期。
func (s *authService) SignOut(ctx context.Context, accessToken string) error {
	defer s.track()()

	claims, err := s.jwtManager.VerifyToken(accessToken)
	if err != nil {
		return ErrUnauthenticated
	}
	return s.revoke(ctx, accessToken, claims)
}

func (s *authService) revoke(ctx context.Context, raw string, claims *token.CustomClaims) error {
	if claims.ExpiresAt == nil {
		return nil
	}
	return s.blacklist.Add(ctx, raw, time.Until(claims.ExpiresAt.Time))
}

// VerifyEmail 完成邮箱验证。重复验证是幂等的。
func (s *authService) VerifyEmail(ctx context.Context, actionToken string) (*model.SessionUser, error) {
	defer s.track()()

	claims, err := s.jwtManager.VerifyPurpose(actionToken, token.PurposeVerifyEmail)
	if err != nil {
		return nil, ErrInvalidActionToken
	}
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidActionToken
		}
		return nil, err
	}
	if user.Email != claims.Email {
		return nil, ErrInvalidActionToken
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		if err := s.userRepo.Update(user); err != nil {
			return nil, err
		}
		log.Infow("邮箱验证完成", "userId", user.ID)
	}
	return user.ToSessionUser(), nil
}

// ResetPassword 使用重置链接中的 token 设置新密码，token 只能使用一次。
func (s *authService) ResetPassword(ctx context.Context, actionToken, newPassword string) error {
	defer s.track()()

	claims, err := s.jwtManager.VerifyPurpose(actionToken, token.PurposeResetPassword)
	if err != nil {
		return ErrInvalidActionToken
	}
	used, err := s.blacklist.Contains(ctx, actionToken)
	if err != nil {
		return fmt.Errorf("check token blacklist: %w", err)
	}
	if used {
		return ErrInvalidActionToken
	}
	if len([]rune(newPassword)) < s.minPassword {
		return ErrWeakPassword
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidActionToken
		}
		return err
	}
	hashedPassword, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.Password = hashedPassword
	if err := s.userRepo.Update(user); err != nil {
		return err
	}
	return s.revoke(ctx, actionToken, claims)
}

// RefreshToken 验证 refresh token 并签发新的一对 token，旧的 refresh token 随即失效。
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	claims, err := s.jwtManager.VerifyPurpose(refreshToken, token.PurposeRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	revoked, err := s.blacklist.Contains(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("check token blacklist: %w", err)
	}
	if revoked {
		return nil, ErrInvalidRefreshToken
	}
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	tokens, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if err := s.revoke(ctx, refreshToken, claims); err != nil {
		log.Warnw("旧 refresh token 加入黑名单失败", "userId", user.ID, "error", err)
	}
	return tokens, nil
}

func (s *authService) issue(user *model.User) (*AuthTokens, error) {
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken, User: user.ToSessionUser()}, nil
}
