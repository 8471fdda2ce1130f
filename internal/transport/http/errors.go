package httptransport

import (
	"mailsight/backend/internal/auth"
	"mailsight/backend/internal/service"
	"mailsight/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// Mail 错误
	service.ErrTitleRequired: "邮件标题不能为空",
	service.ErrQuotaExceeded: "已达到配额上限",
	service.ErrNotOwner:      "您不是该资源的所有者",
	storage.ErrMailNotFound:  "追踪邮件不存在",
	storage.ErrPixelNotFound: "追踪像素不存在",

	// Webhook 错误
	storage.ErrWebhookNotFound: "Webhook不存在",

	// Auth 错误
	auth.ErrInvalidEmail:       "邮箱格式无效",
	auth.ErrInvalidPassword:    "密码不符合要求",
	auth.ErrEmailExists:        "该邮箱已被注册",
	auth.ErrUserNotFound:       "用户不存在",
	auth.ErrInvalidCredentials: "邮箱或密码错误",
	auth.ErrUserInactive:       "账户已被停用",

	// Admin 错误
	service.ErrAdminUserNotFound: "用户不存在",
	service.ErrCannotModifySelf:  "不能修改自己的账户",
	service.ErrCannotModifySuper: "不能修改超级管理员账户",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest = "请求参数格式错误"
	MsgInvalidJSON    = "JSON格式错误"
	MsgInvalidPage    = "分页参数无效"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "邮箱或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"
	MsgPermissionDenied   = "权限不足"

	// 追踪邮件相关
	MsgMailCreateFailed = "创建追踪邮件失败"
	MsgMailNotFound     = "追踪邮件不存在"
	MsgMailListFailed   = "获取追踪邮件列表失败"
	MsgMailUpdateFailed = "更新追踪邮件失败"
	MsgMailDeleteFailed = "删除追踪邮件失败"

	// 统计相关
	MsgStatsGetFailed     = "获取统计数据失败"
	MsgReadLogListFailed  = "获取打开记录失败"
	MsgDashboardGetFailed = "获取仪表盘数据失败"

	// Webhook 相关
	MsgWebhookCreateFailed   = "创建Webhook失败"
	MsgWebhookNotFound       = "Webhook不存在"
	MsgWebhookListFailed     = "获取Webhook列表失败"
	MsgWebhookUpdateFailed   = "更新Webhook失败"
	MsgWebhookDeleteFailed   = "删除Webhook失败"
	MsgDeliveryListFailed    = "获取投递记录失败"

	// 管理员相关
	MsgUserListFailed      = "获取用户列表失败"
	MsgUserNotFound        = "用户不存在"
	MsgUserUpdateFailed    = "更新用户信息失败"
	MsgUserDeleteFailed    = "删除用户失败"
	MsgStatisticsGetFailed = "获取统计数据失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
