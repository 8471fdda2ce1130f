package httptransport

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/service"
	"mailsight/backend/internal/storage"
)

// MailHandler 处理追踪邮件相关的 HTTP 请求
type MailHandler struct {
	mails *service.MailService
	stats *service.StatsService
	log   *zap.Logger
}

// NewMailHandler 创建追踪邮件处理器
func NewMailHandler(mails *service.MailService, stats *service.StatsService, logger *zap.Logger) *MailHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailHandler{mails: mails, stats: stats, log: logger}
}

// CreateMail 创建追踪邮件
// @Summary 创建追踪邮件
// @Description 创建一条追踪邮件记录，同时生成专属像素链接
// @Tags 追踪邮件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateMailInput true "邮件信息"
// @Success 201 {object} domain.MailItem "创建成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 403 {object} Response "配额已满"
// @Router /v1/mails [post]
func (h *MailHandler) CreateMail(c *gin.Context) {
	var input service.CreateMailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	input.UserID = c.GetString("userID")

	mail, err := h.mails.Create(input)
	if err != nil {
		switch err {
		case service.ErrTitleRequired:
			BadRequest(c, GetErrorMessage(err))
		case service.ErrQuotaExceeded:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create mail item", zap.Error(err))
			InternalError(c, MsgMailCreateFailed)
		}
		return
	}

	Created(c, mail)
}

// ListMails 列出当前用户的追踪邮件
// @Summary 追踪邮件列表
// @Tags 追踪邮件
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.MailItem "邮件列表"
// @Router /v1/mails [get]
func (h *MailHandler) ListMails(c *gin.Context) {
	userID := c.GetString("userID")

	mails, err := h.mails.List(userID)
	if err != nil {
		h.log.Error("failed to list mail items", zap.Error(err))
		InternalError(c, MsgMailListFailed)
		return
	}

	Success(c, gin.H{
		"items": mails,
		"total": len(mails),
	})
}

// GetMail 获取单条追踪邮件详情
// @Summary 追踪邮件详情
// @Tags 追踪邮件
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Success 200 {object} domain.MailItem "邮件详情"
// @Failure 404 {object} Response "邮件不存在"
// @Router /v1/mails/{id} [get]
func (h *MailHandler) GetMail(c *gin.Context) {
	userID := c.GetString("userID")

	mail, err := h.mails.Get(userID, c.Param("id"))
	if err != nil {
		h.respondMailError(c, err, MsgInternalError)
		return
	}

	Success(c, mail)
}

// UpdateMail 更新追踪邮件的元数据
// @Summary 更新追踪邮件
// @Description 更新标题、描述、收件人等元数据，像素与打开统计不受影响
// @Tags 追踪邮件
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Param request body service.UpdateMailInput true "要更新的字段"
// @Success 200 {object} domain.MailItem "更新后的邮件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 404 {object} Response "邮件不存在"
// @Router /v1/mails/{id} [patch]
func (h *MailHandler) UpdateMail(c *gin.Context) {
	var input service.UpdateMailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	userID := c.GetString("userID")

	mail, err := h.mails.Update(userID, c.Param("id"), input)
	if err != nil {
		if err == service.ErrTitleRequired {
			BadRequest(c, GetErrorMessage(err))
			return
		}
		h.respondMailError(c, err, MsgMailUpdateFailed)
		return
	}

	Success(c, mail)
}

// DeleteMail 删除追踪邮件及其像素和打开记录
// @Summary 删除追踪邮件
// @Tags 追踪邮件
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Success 204 {object} Response "删除成功"
// @Failure 404 {object} Response "邮件不存在"
// @Router /v1/mails/{id} [delete]
func (h *MailHandler) DeleteMail(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.mails.Delete(userID, c.Param("id")); err != nil {
		h.respondMailError(c, err, MsgMailDeleteFailed)
		return
	}

	NoContent(c)
}

// GetMailStats 获取单条邮件的打开统计
// @Summary 邮件打开统计
// @Description 返回总打开次数、去重读者数和最近打开时间
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Success 200 {object} domain.MailStats "统计数据"
// @Failure 404 {object} Response "邮件不存在"
// @Router /v1/mails/{id}/stats [get]
func (h *MailHandler) GetMailStats(c *gin.Context) {
	userID := c.GetString("userID")

	stats, err := h.stats.GetMailStats(userID, c.Param("id"))
	if err != nil {
		h.respondMailError(c, err, MsgStatsGetFailed)
		return
	}

	Success(c, stats)
}

// ListReadLogs 分页获取邮件的打开记录
// @Summary 邮件打开记录
// @Description 按时间倒序分页返回每次像素命中的明细
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param id path string true "邮件 ID"
// @Param page query int false "页码，默认 1"
// @Param pageSize query int false "每页条数，默认 20，最大 100"
// @Success 200 {object} domain.ReadLogPage "打开记录"
// @Failure 404 {object} Response "邮件不存在"
// @Router /v1/mails/{id}/logs [get]
func (h *MailHandler) ListReadLogs(c *gin.Context) {
	userID := c.GetString("userID")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	logs, err := h.stats.ListReadLogs(userID, domain.ReadLogQuery{
		MailID:   c.Param("id"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.respondMailError(c, err, MsgReadLogListFailed)
		return
	}

	Success(c, logs)
}

// GetDashboard 获取当前用户的仪表盘汇总
// @Summary 仪表盘统计
// @Description 返回用户的邮件总数、已打开数、待打开数与总打开次数
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.DashboardStats "汇总数据"
// @Router /v1/dashboard [get]
func (h *MailHandler) GetDashboard(c *gin.Context) {
	userID := c.GetString("userID")

	stats, err := h.stats.GetDashboardStats(userID)
	if err != nil {
		h.log.Error("failed to get dashboard stats", zap.Error(err))
		InternalError(c, MsgDashboardGetFailed)
		return
	}

	Success(c, stats)
}

// respondMailError 将邮件查询类错误映射为统一响应。
func (h *MailHandler) respondMailError(c *gin.Context, err error, fallback string) {
	switch err {
	case storage.ErrMailNotFound:
		NotFound(c, MsgMailNotFound)
	case service.ErrNotOwner:
		// 对外表现为不存在，避免泄露他人资源
		NotFound(c, MsgMailNotFound)
	default:
		h.log.Error("mail request failed", zap.Error(err))
		InternalError(c, fallback)
	}
}
