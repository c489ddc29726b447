package public

import (
	"time"

	"github.com/musictutor-next/internal/constants"
	"github.com/musictutor-next/internal/http/response"
	"github.com/musictutor-next/internal/models"
	"github.com/musictutor-next/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Locale      string `json:"locale"`

	CaptchaPayload service.CaptchaVerifyPayload `json:"captcha_payload"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`

	CaptchaPayload service.CaptchaVerifyPayload `json:"captcha_payload"`
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Register 注册学生或老师账号
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.CaptchaService.Verify(constants.CaptchaSceneRegister, req.CaptchaPayload); err != nil {
		respondError(c, err)
		return
	}

	user, token, expiresAt, err := h.AuthService.Register(c.Request.Context(), service.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Locale:      req.Locale,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Created(c, AuthResponse{User: user, Token: token, ExpiresAt: expiresAt})
}

// Login 邮箱密码登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := h.CaptchaService.Verify(constants.CaptchaSceneLogin, req.CaptchaPayload); err != nil {
		respondError(c, err)
		return
	}

	user, token, expiresAt, err := h.AuthService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, AuthResponse{User: user, Token: token, ExpiresAt: expiresAt})
}

// GetCurrentUser 获取当前登录用户
func (h *Handler) GetCurrentUser(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.AuthService.Me(uid)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, user)
}

// GetImageCaptcha 获取图片验证码挑战
func (h *Handler) GetImageCaptcha(c *gin.Context) {
	challenge, err := h.CaptchaService.GenerateImageChallenge()
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, challenge)
}
