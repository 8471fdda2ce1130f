package domain

import "time"

// PixelCodeLength 像素代码的固定长度（与原始前端保持一致）
const PixelCodeLength = 12

// TrackingPixel 表示嵌入单封邮件的追踪像素。
//
// 当前设计下每封邮件恰好对应一个像素（1:1）。
// PixelCode 是对外公开的不透明标识，创建后不可变，
// 全局唯一且需要建立索引以支持按代码的点查询。
type TrackingPixel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailID    string    `json:"mailId" gorm:"type:varchar(36);uniqueIndex;not null"`
	PixelCode string    `json:"pixelCode" gorm:"type:varchar(32);uniqueIndex;not null"`
	PixelURL  string    `json:"pixelUrl" gorm:"type:varchar(500)"`
	CreatedAt time.Time `json:"createdAt"`
}
