package domain

import "time"

// MailStats 单封追踪邮件的打开统计（对应只读视图）
type MailStats struct {
	MailID        string     `json:"mailId"`
	TotalReads    int        `json:"totalReads"`
	UniqueReaders int        `json:"uniqueReaders"` // 按 IP 去重
	LastReadAt    *time.Time `json:"lastReadAt,omitempty"`
}

// DashboardStats 用户维度的汇总统计
type DashboardStats struct {
	UserID       string `json:"userId"`
	TotalMails   int    `json:"totalMails"`
	OpenedMails  int    `json:"openedMails"`
	PendingMails int    `json:"pendingMails"`
	TotalOpens   int    `json:"totalOpens"`
}

// SystemStatistics 系统级统计（管理后台）
type SystemStatistics struct {
	TotalUsers    int `json:"totalUsers"`
	ActiveUsers   int `json:"activeUsers"`
	TotalMails    int `json:"totalMails"`
	TotalReadLogs int `json:"totalReadLogs"`
}

// ReadLogQuery 读取记录查询条件
type ReadLogQuery struct {
	MailID   string
	Page     int
	PageSize int
}

// ReadLogPage 分页的读取记录结果
type ReadLogPage struct {
	Items    []ReadLog `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}
