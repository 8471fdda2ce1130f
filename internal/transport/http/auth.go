package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsight/backend/internal/auth"
	jwtpkg "mailsight/backend/internal/auth/jwt"
	"mailsight/backend/internal/domain"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service   // 认证业务服务
	jwtManager  *jwtpkg.Manager // JWT 令牌管理器
	log         *zap.Logger     // 结构化日志记录器
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		jwtManager:  jwtManager,
		log:         logger,
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type notifyRequest struct {
	NotifyOnOpen *bool `json:"notifyOnOpen" binding:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password" binding:"required"`
}

type authResponse struct {
	User         userResponse `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
}

type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role"`
	Tier         string `json:"tier"`
	IsActive     bool   `json:"isActive"`
	NotifyOnOpen bool   `json:"notifyOnOpen"`
}

func newUserResponse(user *domain.User) userResponse {
	return userResponse{
		ID:           user.ID,
		Email:        user.Email,
		Username:     user.Username,
		Role:         string(user.Role),
		Tier:         string(user.Tier),
		IsActive:     user.IsActive,
		NotifyOnOpen: user.NotifyOnOpen,
	}
}

// Register 处理用户注册请求
// @Summary 用户注册
// @Description 创建新用户账户，返回用户信息和认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body registerRequest true "注册信息"
// @Success 201 {object} authResponse "注册成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 409 {object} Response "邮箱已存在"
// @Failure 500 {object} Response "服务器内部错误"
// @Router /v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Register(auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidEmail:
			BadRequest(c, GetErrorMessage(err))
		case auth.ErrInvalidPassword:
			BadRequest(c, GetErrorMessage(err))
		case auth.ErrEmailExists:
			Conflict(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to register user", zap.Error(err))
			InternalError(c, "注册失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)

	Created(c, authResponse{
		User:         newUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Login 处理用户登录请求
// @Summary 用户登录
// @Description 使用邮箱和密码进行身份验证，成功后返回认证令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} authResponse "登录成功"
// @Failure 401 {object} Response "邮箱或密码错误"
// @Failure 403 {object} Response "账户已被禁用"
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, MsgInvalidCredentials)
		case auth.ErrUserInactive:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to login", zap.Error(err))
			InternalError(c, "登录失败，请稍后重试")
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, "生成令牌失败")
		return
	}

	h.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
	)

	Success(c, authResponse{
		User:         newUserResponse(user),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
	})
}

// Refresh 刷新访问令牌
// @Summary 刷新访问令牌
// @Description 使用刷新令牌获取新的访问令牌，避免重新登录
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body refreshRequest true "包含刷新令牌的请求"
// @Success 200 {object} object{accessToken=string,expiresIn=int} "新的访问令牌"
// @Failure 401 {object} Response "刷新令牌无效或已过期"
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch err {
		case jwtpkg.ErrExpiredToken:
			Unauthorized(c, MsgTokenExpired)
		case jwtpkg.ErrInvalidToken:
			Unauthorized(c, "刷新令牌无效")
		default:
			h.log.Error("failed to refresh token", zap.Error(err))
			InternalError(c, "刷新令牌失败")
		}
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int64(15 * 60), // 15 分钟
	})
}

// Me 获取当前用户信息
// @Summary 获取当前用户信息
// @Description 获取已认证用户的详细信息，需要有效的访问令牌
// @Tags 认证
// @Produce json
// @Security BearerAuth
// @Success 200 {object} userResponse "用户信息"
// @Failure 401 {object} Response "未认证或令牌无效"
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(userID.(string))
	if err != nil {
		if err == auth.ErrUserNotFound {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, newUserResponse(user))
}

// ChangePassword 修改密码
// @Summary 修改密码
// @Description 验证旧密码后更新为新密码
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body changePasswordRequest true "新旧密码"
// @Success 200 {object} Response "修改成功"
// @Failure 401 {object} Response "旧密码错误"
// @Router /v1/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID := c.GetString("userID")

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ChangePassword(userID, req.OldPassword, req.NewPassword); err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, "旧密码错误")
		case auth.ErrInvalidPassword:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to change password", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	SuccessWithMsg(c, "密码修改成功", nil)
}

// UpdateNotify 开关首次打开邮件通知
// @Summary 更新通知偏好
// @Description 开启或关闭邮件首次被打开时的邮件通知
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body notifyRequest true "通知开关"
// @Success 200 {object} Response "更新成功"
// @Router /v1/auth/notify [put]
func (h *AuthHandler) UpdateNotify(c *gin.Context) {
	userID := c.GetString("userID")

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.UpdateNotifyOnOpen(userID, *req.NotifyOnOpen); err != nil {
		h.log.Error("failed to update notify preference", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	SuccessWithMsg(c, "通知设置已更新", gin.H{"notifyOnOpen": *req.NotifyOnOpen})
}

// DeleteAccount 注销账户
// @Summary 注销账户
// @Description 验证密码后删除账户及其所有追踪数据
// @Tags 认证
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body deleteAccountRequest true "密码确认"
// @Success 204 {object} Response "注销成功"
// @Failure 401 {object} Response "密码错误"
// @Router /v1/auth/account [delete]
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID := c.GetString("userID")

	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.DeleteAccount(userID, req.Password); err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, "密码错误")
		default:
			h.log.Error("failed to delete account", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}

	h.log.Info("account deleted", zap.String("user_id", userID))
	NoContent(c)
}
