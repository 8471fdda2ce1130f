package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsight/backend/internal/service"
)

// AdminHandler 处理管理后台相关的 HTTP 请求
type AdminHandler struct {
	admin *service.AdminService
	log   *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(admin *service.AdminService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{admin: admin, log: logger}
}

type setActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// ListUsers 分页列出用户
// @Summary 用户列表
// @Description 分页返回用户，支持按邮箱/用户名模糊搜索
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 20"
// @Param search query string false "搜索关键字"
// @Success 200 {object} service.ListUsersOutput "用户列表"
// @Failure 403 {object} Response "权限不足"
// @Router /v1/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	out, err := h.admin.ListUsers(service.ListUsersInput{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
	})
	if err != nil {
		h.log.Error("failed to list users", zap.Error(err))
		InternalError(c, MsgUserListFailed)
		return
	}

	Success(c, out)
}

// GetUser 获取用户详情
// @Summary 用户详情
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "用户 ID"
// @Success 200 {object} domain.User "用户信息"
// @Failure 404 {object} Response "用户不存在"
// @Router /v1/admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.admin.GetUser(c.Param("id"))
	if err != nil {
		if err == service.ErrAdminUserNotFound {
			NotFound(c, MsgUserNotFound)
			return
		}
		h.log.Error("failed to get user", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, user)
}

// SetUserActive 启用或停用用户
// @Summary 启用/停用用户
// @Description 停用的用户无法登录，但其像素回调仍然计入
// @Tags 管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "用户 ID"
// @Param request body setActiveRequest true "启用状态"
// @Success 200 {object} domain.User "更新后的用户"
// @Failure 403 {object} Response "不能修改自己或超级管理员"
// @Router /v1/admin/users/{id}/active [patch]
func (h *AdminHandler) SetUserActive(c *gin.Context) {
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.admin.SetUserActive(c.GetString("userID"), c.Param("id"), *req.IsActive)
	if err != nil {
		switch err {
		case service.ErrAdminUserNotFound:
			NotFound(c, MsgUserNotFound)
		case service.ErrCannotModifySelf, service.ErrCannotModifySuper:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to set user active", zap.Error(err))
			InternalError(c, MsgUserUpdateFailed)
		}
		return
	}

	Success(c, user)
}

// DeleteUser 删除用户及其全部追踪数据
// @Summary 删除用户
// @Description 级联删除该用户的邮件、像素、打开记录和 Webhook
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Param id path string true "用户 ID"
// @Success 204 {object} Response "删除成功"
// @Failure 403 {object} Response "不能删除自己或超级管理员"
// @Router /v1/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.GetString("userID"), c.Param("id")); err != nil {
		switch err {
		case service.ErrAdminUserNotFound:
			NotFound(c, MsgUserNotFound)
		case service.ErrCannotModifySelf, service.ErrCannotModifySuper:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to delete user", zap.Error(err))
			InternalError(c, MsgUserDeleteFailed)
		}
		return
	}

	NoContent(c)
}

// GetStatistics 系统级统计
// @Summary 系统统计
// @Description 返回用户数、活跃用户数、邮件数和打开记录总数
// @Tags 管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.SystemStatistics "统计数据"
// @Router /v1/admin/statistics [get]
func (h *AdminHandler) GetStatistics(c *gin.Context) {
	stats, err := h.admin.GetSystemStatistics()
	if err != nil {
		h.log.Error("failed to get system statistics", zap.Error(err))
		InternalError(c, MsgStatisticsGetFailed)
		return
	}

	Success(c, stats)
}
