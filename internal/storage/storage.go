package storage

import (
	"errors"
	"time"

	"mailsight/backend/internal/domain"
)

var (
	// ErrMailNotFound 追踪邮件未找到错误
	ErrMailNotFound = errors.New("mail item not found")
	// ErrPixelNotFound 像素未找到错误
	ErrPixelNotFound = errors.New("pixel not found")
	// ErrUserNotFound 用户未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists 邮箱已存在错误
	ErrEmailExists = errors.New("email already exists")
	// ErrWebhookNotFound Webhook 未找到错误
	ErrWebhookNotFound = errors.New("webhook not found")
	// ErrPixelCodeConflict 像素代码冲突错误
	ErrPixelCodeConflict = errors.New("pixel code already exists")
)

// MailRepository 定义追踪邮件数据存取操作。
type MailRepository interface {
	SaveMailItem(mail *domain.MailItem) error
	GetMailItem(id string) (*domain.MailItem, error)
	ListMailItemsByUserID(userID string) ([]domain.MailItem, error)
	CountMailItemsByUserID(userID string) (int, error)
	DeleteMailItem(id string) error
	RecordOpen(mailID string, openedAt time.Time) (bool, error)
}

// PixelRepository 定义追踪像素数据存取操作。
type PixelRepository interface {
	SavePixel(pixel *domain.TrackingPixel) error
	GetPixelByCode(code string) (*domain.TrackingPixel, error)
	GetPixelByMailID(mailID string) (*domain.TrackingPixel, error)
}

// ReadLogRepository 定义打开记录数据存取操作。
type ReadLogRepository interface {
	SaveReadLog(log *domain.ReadLog) error
	ListReadLogs(query domain.ReadLogQuery) (*domain.ReadLogPage, error)
	GetMailStats(mailID string) (*domain.MailStats, error)
	GetDashboardStats(userID string) (*domain.DashboardStats, error)
}

// UserRepository 定义用户数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByEmail(email string) (*domain.User, error)
	GetUserByUsername(username string) (*domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
	DeleteUser(userID string) error
}

// AdminRepository 定义管理员数据存取操作。
type AdminRepository interface {
	ListUsers(page, pageSize int, search string) ([]domain.User, int, error)
	GetSystemStatistics() (*domain.SystemStatistics, error)
}

// WebhookRepository 定义 Webhook 数据存取操作。
type WebhookRepository interface {
	CreateWebhook(webhook *domain.Webhook) error
	GetWebhook(id string) (*domain.Webhook, error)
	ListWebhooks(userID string) ([]domain.Webhook, error)
	UpdateWebhook(webhook *domain.Webhook) error
	DeleteWebhook(id string) error
	RecordDelivery(delivery *domain.WebhookDelivery) error
	GetDeliveries(webhookID string, limit int) ([]domain.WebhookDelivery, error)
	GetPendingDeliveries(limit int) ([]domain.WebhookDelivery, error)
}

// PixelCache 定义像素代码的缓存操作（热路径点查询加速）。
type PixelCache interface {
	CachePixel(pixel *domain.TrackingPixel, ttl time.Duration) error
	GetCachedPixel(code string) (*domain.TrackingPixel, error)
	InvalidatePixel(code string) error
}

// PubSubRepository 定义打开事件的发布订阅操作。
type PubSubRepository interface {
	PublishReadEvent(userID string, log *domain.ReadLog) error
}
