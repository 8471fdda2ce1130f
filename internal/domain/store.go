package domain

import "time"

// Store 聚合所有存储接口
type Store interface {
	// ========== Mail Repository ==========
	SaveMailItem(mail *MailItem) error
	// UpdateMailItem 只更新可编辑的元数据字段，
	// 打开计数类字段不受影响。
	UpdateMailItem(mail *MailItem) error
	GetMailItem(id string) (*MailItem, error)
	ListMailItemsByUserID(userID string) ([]MailItem, error)
	CountMailItemsByUserID(userID string) (int, error)
	DeleteMailItem(id string) error
	// RecordOpen 原子地为指定邮件累加 open_count，并在
	// first_opened_at 为空时一次性写入（first write wins）。
	// 返回本次是否为首次打开。
	RecordOpen(mailID string, openedAt time.Time) (firstOpen bool, err error)

	// ========== Pixel Repository ==========
	SavePixel(pixel *TrackingPixel) error
	GetPixelByCode(code string) (*TrackingPixel, error)
	GetPixelByMailID(mailID string) (*TrackingPixel, error)

	// ========== Read Log Repository ==========
	SaveReadLog(log *ReadLog) error
	ListReadLogs(query ReadLogQuery) (*ReadLogPage, error)
	GetMailStats(mailID string) (*MailStats, error)
	GetDashboardStats(userID string) (*DashboardStats, error)

	// ========== User Repository ==========
	CreateUser(user *User) error
	GetUserByID(id string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByUsername(username string) (*User, error)
	UpdateUser(user *User) error
	UpdateLastLogin(userID string) error
	DeleteUser(userID string) error

	// ========== Admin Repository ==========
	ListUsers(page, pageSize int, search string) ([]User, int, error)
	GetSystemStatistics() (*SystemStatistics, error)

	// ========== Webhook Repository ==========
	CreateWebhook(webhook *Webhook) error
	GetWebhook(id string) (*Webhook, error)
	ListWebhooks(userID string) ([]Webhook, error)
	UpdateWebhook(webhook *Webhook) error
	DeleteWebhook(id string) error
	RecordDelivery(delivery *WebhookDelivery) error
	GetDeliveries(webhookID string, limit int) ([]WebhookDelivery, error)
	GetPendingDeliveries(limit int) ([]WebhookDelivery, error)

	// ========== Lifecycle ==========
	Health() error
	Close() error
}
