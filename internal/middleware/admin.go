package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailsight/backend/internal/auth"
)

// AdminAuth 管理员权限中间件
type AdminAuth struct {
	authService *auth.Service
}

// NewAdminAuth 创建管理员权限中间件
func NewAdminAuth(authService *auth.Service) *AdminAuth {
	return &AdminAuth{
		authService: authService,
	}
}

// RequireAdmin 要求管理员权限（Admin或Super）
func (a *AdminAuth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从上下文获取用户ID（由JWT中间件设置）
		userIDVal, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		userID, ok := userIDVal.(string)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user context"})
			c.Abort()
			return
		}

		user, err := a.authService.GetUserByID(userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			c.Abort()
			return
		}

		if !user.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		// 将用户信息存入上下文
		c.Set("user", user)
		c.Set("role", user.Role)
		c.Next()
	}
}

// RequireSuper 要求超级管理员权限
func (a *AdminAuth) RequireSuper() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		userID, ok := userIDVal.(string)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user context"})
			c.Abort()
			return
		}

		user, err := a.authService.GetUserByID(userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			c.Abort()
			return
		}

		if !user.IsSuper() {
			c.JSON(http.StatusForbidden, gin.H{"error": "super admin access required"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("role", user.Role)
		c.Next()
	}
}
