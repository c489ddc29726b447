package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/musictutor-next/internal/cache"
	"github.com/musictutor-next/internal/config"
	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/logger"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 认证服务
type AuthService struct {
	cfg      *config.Config
	userRepo repository.UserRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.Config, userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		cfg:      cfg,
		userRepo: userRepo,
	}
}

// RegisterInput 注册输入
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
	Locale      string
}

// JWTClaims JWT 声明
type JWTClaims struct {
	UserID       uint   `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateJWT 生成 JWT Token
func (s *AuthService) GenerateJWT(user *models.User) (string, time.Time, error) {
	expireHours := s.cfg.JWT.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(expireHours) * time.Hour)

	claims := JWTClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析 JWT Token
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.SecretKey), nil
	})
	if err != nil {
		return nil, wrapError(ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Authenticate 校验 Token 并返回当前用户的鉴权快照，优先读取缓存
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*cache.UserAuthState, error) {
	claims, err := s.ParseJWT(tokenString)
	if err != nil {
		return nil, err
	}
	state, err := s.loadAuthState(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if state.Status != constants.UserStatusActive {
		return nil, ErrUserDisabled
	}
	if state.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}
	return state, nil
}

func (s *AuthService) loadAuthState(ctx context.Context, userID uint) (*cache.UserAuthState, error) {
	state, hit, err := cache.GetUserAuthState(ctx, userID)
	if err != nil {
		logger.Warnw("auth_state_cache_read_failed", "user_id", userID, "error", err)
	}
	if hit && state != nil {
		return state, nil
	}
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrTokenInvalid
	}
	state = cache.BuildUserAuthState(user)
	if err := cache.SetUserAuthState(ctx, state); err != nil {
		logger.Warnw("auth_state_cache_write_failed", "user_id", userID, "error", err)
	}
	return state, nil
}

// Register 注册学生或老师账号
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, string, time.Time, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if err := validatePassword(s.cfg.Security.PasswordMinLength, input.Password); err != nil {
		return nil, "", time.Time{}, err
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = constants.RoleStudent
	}
	if role != constants.RoleStudent && role != constants.RoleTeacher {
		return nil, "", time.Time{}, wrapf(ErrInvalidInput, "role %q cannot self-register", input.Role)
	}

	exist, err := s.userRepo.GetByEmail(email)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if exist != nil {
		return nil, "", time.Time{}, ErrEmailExists
	}

	hashed, err := s.HashPassword(input.Password)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  displayName,
		Role:         role,
		Locale:       strings.TrimSpace(input.Locale),
		Status:       constants.UserStatusActive,
	}
	if user.Locale == "" {
		user.Locale = "zh-TW"
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, "", time.Time{}, err
	}

	token, expiresAt, err := s.GenerateJWT(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	logger.Infow("auth_user_registered", "user_id", user.ID, "role", user.Role)
	return user, token, expiresAt, nil
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, time.Time, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	user, err := s.userRepo.GetByEmail(normalized)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if user == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := s.VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if user.Status != constants.UserStatusActive {
		return nil, "", time.Time{}, ErrUserDisabled
	}

	token, expiresAt, err := s.GenerateJWT(user)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	now := time.Now()
	if err := s.userRepo.TouchLastLogin(user.ID, now); err != nil {
		return nil, "", time.Time{}, err
	}
	user.LastLoginAt = &now
	_ = cache.SetUserAuthState(ctx, cache.BuildUserAuthState(user))
	return user, token, expiresAt, nil
}

// Me 获取当前用户
func (s *AuthService) Me(userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// RevokeTokens 使用户已签发的 Token 全部失效
func (s *AuthService) RevokeTokens(ctx context.Context, userID uint) error {
	if err := s.userRepo.BumpTokenVersion(userID); err != nil {
		return err
	}
	if err := cache.DelUserAuthState(ctx, userID); err != nil {
		logger.Warnw("auth_state_cache_delete_failed", "user_id", userID, "error", err)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// IsAuthError 判断是否为鉴权失败（Token 无效、已吊销或账号停用）
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrUserDisabled)
}
