package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsight/backend/internal/service"
	"mailsight/backend/internal/storage"
)

// WebhookHandler 处理 Webhook 管理相关的 HTTP 请求
type WebhookHandler struct {
	webhooks *service.WebhookService
	log      *zap.Logger
}

// NewWebhookHandler 创建 Webhook 处理器
func NewWebhookHandler(webhooks *service.WebhookService, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{webhooks: webhooks, log: logger}
}

// ownedWebhook 加载 Webhook 并校验归属，未通过时直接写出响应。
func (h *WebhookHandler) ownedWebhook(c *gin.Context) (string, bool) {
	id := c.Param("id")
	webhook, err := h.webhooks.GetWebhook(id)
	if err != nil {
		if err == storage.ErrWebhookNotFound {
			NotFound(c, MsgWebhookNotFound)
		} else {
			h.log.Error("failed to load webhook", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return "", false
	}
	if webhook.UserID != c.GetString("userID") {
		// 对外表现为不存在，避免探测他人资源
		NotFound(c, MsgWebhookNotFound)
		return "", false
	}
	return id, true
}

// CreateWebhook 创建 Webhook
// @Summary 创建 Webhook
// @Description 注册一个回调地址，订阅邮件打开等事件
// @Tags Webhook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateWebhookInput true "Webhook 信息"
// @Success 201 {object} domain.Webhook "创建成功"
// @Failure 403 {object} Response "配额已满"
// @Router /v1/webhooks [post]
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var input service.CreateWebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.UserID = c.GetString("userID")

	webhook, err := h.webhooks.CreateWebhook(input)
	if err != nil {
		switch err {
		case service.ErrQuotaExceeded:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create webhook", zap.Error(err))
			InternalError(c, MsgWebhookCreateFailed)
		}
		return
	}

	Created(c, webhook)
}

// ListWebhooks 列出当前用户的 Webhook
// @Summary Webhook 列表
// @Tags Webhook
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Webhook "Webhook 列表"
// @Router /v1/webhooks [get]
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.webhooks.ListWebhooks(c.GetString("userID"))
	if err != nil {
		h.log.Error("failed to list webhooks", zap.Error(err))
		InternalError(c, MsgWebhookListFailed)
		return
	}

	Success(c, gin.H{
		"items": webhooks,
		"total": len(webhooks),
	})
}

// GetWebhook 获取 Webhook 详情
// @Summary Webhook 详情
// @Tags Webhook
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 200 {object} domain.Webhook "Webhook 详情"
// @Failure 404 {object} Response "Webhook 不存在"
// @Router /v1/webhooks/{id} [get]
func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	id, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	webhook, err := h.webhooks.GetWebhook(id)
	if err != nil {
		h.log.Error("failed to get webhook", zap.Error(err))
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, webhook)
}

// UpdateWebhook 更新 Webhook
// @Summary 更新 Webhook
// @Description 修改回调地址、订阅事件或启用状态
// @Tags Webhook
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Param request body service.UpdateWebhookInput true "更新内容"
// @Success 200 {object} domain.Webhook "更新成功"
// @Failure 404 {object} Response "Webhook 不存在"
// @Router /v1/webhooks/{id} [patch]
func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	id, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	var input service.UpdateWebhookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	webhook, err := h.webhooks.UpdateWebhook(id, input)
	if err != nil {
		h.log.Error("failed to update webhook", zap.Error(err))
		InternalError(c, MsgWebhookUpdateFailed)
		return
	}

	Success(c, webhook)
}

// DeleteWebhook 删除 Webhook
// @Summary 删除 Webhook
// @Tags Webhook
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 204 {object} Response "删除成功"
// @Failure 404 {object} Response "Webhook 不存在"
// @Router /v1/webhooks/{id} [delete]
func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	if err := h.webhooks.DeleteWebhook(id); err != nil {
		h.log.Error("failed to delete webhook", zap.Error(err))
		InternalError(c, MsgWebhookDeleteFailed)
		return
	}

	NoContent(c)
}

// GetDeliveries 获取 Webhook 投递记录
// @Summary 投递记录
// @Description 按时间倒序返回最近的投递尝试
// @Tags Webhook
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Param limit query int false "条数上限，默认 50"
// @Success 200 {array} domain.WebhookDelivery "投递记录"
// @Failure 404 {object} Response "Webhook 不存在"
// @Router /v1/webhooks/{id}/deliveries [get]
func (h *WebhookHandler) GetDeliveries(c *gin.Context) {
	id, ok := h.ownedWebhook(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	deliveries, err := h.webhooks.GetDeliveries(id, limit)
	if err != nil {
		h.log.Error("failed to list deliveries", zap.Error(err))
		InternalError(c, MsgDeliveryListFailed)
		return
	}

	Success(c, gin.H{
		"items": deliveries,
		"total": len(deliveries),
	})
}
