package domain

import "time"

// DeviceType 设备类型（封闭枚举）
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// Browser 浏览器家族（封闭枚举）
type Browser string

const (
	BrowserChrome  Browser = "Chrome"
	BrowserFirefox Browser = "Firefox"
	BrowserSafari  Browser = "Safari"
	BrowserEdge    Browser = "Edge"
	BrowserOpera   Browser = "Opera"
	BrowserUnknown Browser = "Unknown"
)

// OS 操作系统家族（封闭枚举）
type OS string

const (
	OSWindows OS = "Windows"
	OSMacOS   OS = "macOS"
	OSLinux   OS = "Linux"
	OSAndroid OS = "Android"
	OSIOS     OS = "iOS"
	OSUnknown OS = "Unknown"
)

// ReadLog 表示一次像素抓取，即一次邮件打开事件。
//
// 只追加不修改：核心流程只会创建 ReadLog，绝不更新或删除。
// MailID 与 UserID 为冗余字段，便于按邮件/按用户的查询与实时推送过滤。
// IP 与 User-Agent 按传输层提供的原值存储，仅作展示用途。
type ReadLog struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PixelID    string     `json:"pixelId" gorm:"type:varchar(36);index;not null"`
	MailID     string     `json:"mailId" gorm:"type:varchar(36);index;not null"`
	UserID     string     `json:"userId" gorm:"type:varchar(36);index;not null"`
	ReadAt     time.Time  `json:"readAt" gorm:"index"`
	IPAddress  string     `json:"ipAddress" gorm:"type:varchar(64)"`
	UserAgent  string     `json:"userAgent" gorm:"type:varchar(500)"`
	DeviceType DeviceType `json:"deviceType" gorm:"type:varchar(16)"`
	Browser    Browser    `json:"browser" gorm:"type:varchar(16)"`
	OS         OS         `json:"os" gorm:"type:varchar(16)"`
	Referer    *string    `json:"referer,omitempty" gorm:"type:varchar(500)"`
}
