package domain

import "time"

// MailStatus 追踪邮件的生命周期状态
type MailStatus string

const (
	// MailStatusPending 尚未检测到任何打开
	MailStatusPending MailStatus = "pending"
	// MailStatusOpened 已检测到至少一次打开（终态，不会回退）
	MailStatusOpened MailStatus = "opened"
)

// MailItem 表示一封用户希望追踪的外发邮件。
//
// OpenCount 与 FirstOpenedAt 只能由存储层的 RecordOpen 原子更新，
// 像素处理流程不会直接修改标题、描述等字段。
type MailItem struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID         string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	Title          string     `json:"title" gorm:"type:varchar(255);not null"`
	Description    string     `json:"description,omitempty" gorm:"type:text"`
	RecipientEmail string     `json:"recipientEmail,omitempty" gorm:"type:varchar(255)"`
	RecipientName  string     `json:"recipientName,omitempty" gorm:"type:varchar(255)"`
	MailSubject    string     `json:"mailSubject,omitempty" gorm:"type:varchar(500)"`
	Notes          string     `json:"notes,omitempty" gorm:"type:text"`
	Status         MailStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	OpenCount      int        `json:"openCount" gorm:"default:0"`
	FirstOpenedAt  *time.Time `json:"firstOpenedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	// 关联的追踪像素（查询时按需加载，不落库）
	Pixel *TrackingPixel `json:"pixel,omitempty" gorm:"-"`
}

// IsOpened 判断邮件是否已被打开过
func (m *MailItem) IsOpened() bool {
	return m.Status == MailStatusOpened
}
