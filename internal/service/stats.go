package service

import (
	"mailsight/backend/internal/domain"
)

// StatsService 提供打开记录与统计的只读查询。
type StatsService struct {
	store domain.Store
}

// NewStatsService 创建统计查询服务。
func NewStatsService(store domain.Store) *StatsService {
	return &StatsService{store: store}
}

// GetMailStats 返回单封追踪邮件的打开统计，校验归属。
func (s *StatsService) GetMailStats(userID, mailID string) (*domain.MailStats, error) {
	mail, err := s.store.GetMailItem(mailID)
	if err != nil {
		return nil, err
	}
	if mail.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.store.GetMailStats(mailID)
}

// ListReadLogs 分页返回单封追踪邮件的打开记录，校验归属。
func (s *StatsService) ListReadLogs(userID string, query domain.ReadLogQuery) (*domain.ReadLogPage, error) {
	mail, err := s.store.GetMailItem(query.MailID)
	if err != nil {
		return nil, err
	}
	if mail.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.store.ListReadLogs(query)
}

// GetDashboardStats 返回用户维度的汇总统计。
func (s *StatsService) GetDashboardStats(userID string) (*domain.DashboardStats, error) {
	return s.store.GetDashboardStats(userID)
}
