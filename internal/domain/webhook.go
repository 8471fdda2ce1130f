package domain

import "time"

// WebhookEventType Webhook 事件类型
type WebhookEventType string

const (
	WebhookEventMailOpened  WebhookEventType = "mail.opened"  // 邮件被打开
	WebhookEventMailCreated WebhookEventType = "mail.created" // 追踪邮件创建
	WebhookEventMailDeleted WebhookEventType = "mail.deleted" // 追踪邮件删除
)

// Webhook 用户配置的事件回调
type Webhook struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	URL         string     `json:"url" gorm:"type:varchar(500);not null"`
	Events      []string   `json:"events" gorm:"serializer:json;type:json"`
	Secret      string     `json:"secret" gorm:"type:varchar(255)"`
	IsActive    bool       `json:"isActive" gorm:"default:true"`
	LastError   string     `json:"lastError" gorm:"type:text"`
	LastSuccess *time.Time `json:"lastSuccess"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// SubscribesTo 判断 Webhook 是否订阅了指定事件
func (w *Webhook) SubscribesTo(event WebhookEventType) bool {
	for _, e := range w.Events {
		if e == string(event) {
			return true
		}
	}
	return false
}

// WebhookEvent Webhook 事件数据
type WebhookEvent struct {
	ID        string           `json:"id"`
	Event     WebhookEventType `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
	Data      interface{}      `json:"data"`
}

// WebhookDelivery Webhook 投递记录
type WebhookDelivery struct {
	ID         string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	WebhookID  string           `json:"webhookId" gorm:"type:varchar(36);index;not null"`
	Event      WebhookEventType `json:"event" gorm:"type:varchar(32)"`
	Payload    string           `json:"payload" gorm:"type:text"`
	StatusCode int              `json:"statusCode"`
	Response   string           `json:"response" gorm:"type:text"`
	Duration   int64            `json:"duration"` // 请求耗时（毫秒）
	Success    bool             `json:"success"`
	Error      string           `json:"error" gorm:"type:text"`
	Attempts   int              `json:"attempts"`
	NextRetry  *time.Time       `json:"nextRetry" gorm:"index"`
	CreatedAt  time.Time        `json:"createdAt"`
}
