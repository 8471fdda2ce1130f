package hybrid

import (
	"fmt"
	"time"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage/redis"
	"mailsight/backend/internal/storage/sql"
)

// Store 混合存储实现，结合 SQL 数据库和 Redis。
//
// SQL 始终是真实数据源；Redis 负责像素代码的热路径缓存、
// 仪表盘统计缓存以及打开事件的发布订阅。缓存写入失败不会
// 影响主流程。
type Store struct {
	db       *sql.Store
	redis    *redis.Cache
	pixelTTL time.Duration
}

// NewStore 创建混合存储实例
func NewStore(dbType, dsn string, dbOpts sql.Options, redisAddr, redisPassword string, redisDB int, pixelTTL time.Duration) (*Store, error) {
	dbStore, err := sql.NewStore(dbType, dsn, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisCache, err := redis.NewCache(redisAddr, redisPassword, redisDB)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if pixelTTL <= 0 {
		pixelTTL = 5 * time.Minute
	}

	return &Store{
		db:       dbStore,
		redis:    redisCache,
		pixelTTL: pixelTTL,
	}, nil
}

// Redis 返回底层缓存客户端（供 WebSocket 订阅使用）
func (s *Store) Redis() *redis.Cache {
	return s.redis
}

// ========== Mail Repository ==========

// SaveMailItem 保存追踪邮件
func (s *Store) SaveMailItem(mail *domain.MailItem) error {
	if err := s.db.SaveMailItem(mail); err != nil {
		return err
	}
	// 统计已变化，使缓存失效
	s.redis.InvalidateDashboardStats(mail.UserID)
	return nil
}

// UpdateMailItem 更新追踪邮件的可编辑字段
func (s *Store) UpdateMailItem(mail *domain.MailItem) error {
	// 元数据不影响统计缓存
	return s.db.UpdateMailItem(mail)
}

// GetMailItem 根据 ID 获取追踪邮件
func (s *Store) GetMailItem(id string) (*domain.MailItem, error) {
	return s.db.GetMailItem(id)
}

// ListMailItemsByUserID 返回指定用户的全部追踪邮件
func (s *Store) ListMailItemsByUserID(userID string) ([]domain.MailItem, error) {
	// 列表查询不缓存
	return s.db.ListMailItemsByUserID(userID)
}

// CountMailItemsByUserID 统计用户的追踪邮件数量
func (s *Store) CountMailItemsByUserID(userID string) (int, error) {
	return s.db.CountMailItemsByUserID(userID)
}

// DeleteMailItem 删除追踪邮件
func (s *Store) DeleteMailItem(id string) error {
	// 先取像素以便删除其缓存
	pixel, pixelErr := s.db.GetPixelByMailID(id)
	mail, mailErr := s.db.GetMailItem(id)

	if err := s.db.DeleteMailItem(id); err != nil {
		return err
	}

	if pixelErr == nil {
		s.redis.InvalidatePixel(pixel.PixelCode)
	}
	if mailErr == nil {
		s.redis.InvalidateDashboardStats(mail.UserID)
	}
	return nil
}

// RecordOpen 原子地累加打开计数并登记首次打开时间
func (s *Store) RecordOpen(mailID string, openedAt time.Time) (bool, error) {
	return s.db.RecordOpen(mailID, openedAt)
}

// ========== Pixel Repository ==========

// SavePixel 保存追踪像素
func (s *Store) SavePixel(pixel *domain.TrackingPixel) error {
	if err := s.db.SavePixel(pixel); err != nil {
		return err
	}
	// 预热缓存，失败不影响主流程
	s.redis.CachePixel(pixel, s.pixelTTL)
	return nil
}

// GetPixelByCode 根据像素代码获取像素（缓存优先）
func (s *Store) GetPixelByCode(code string) (*domain.TrackingPixel, error) {
	if pixel, err := s.redis.GetCachedPixel(code); err == nil {
		return pixel, nil
	}

	pixel, err := s.db.GetPixelByCode(code)
	if err != nil {
		return nil, err
	}

	s.redis.CachePixel(pixel, s.pixelTTL)
	return pixel, nil
}

// GetPixelByMailID 根据邮件 ID 获取像素
func (s *Store) GetPixelByMailID(mailID string) (*domain.TrackingPixel, error) {
	return s.db.GetPixelByMailID(mailID)
}

// ========== Read Log Repository ==========

// SaveReadLog 追加一条打开记录并发布实时通知
func (s *Store) SaveReadLog(log *domain.ReadLog) error {
	if err := s.db.SaveReadLog(log); err != nil {
		return err
	}

	// 统计已变化，使缓存失效
	s.redis.InvalidateDashboardStats(log.UserID)

	// 发布打开事件通知，失败不影响主流程
	s.redis.PublishReadEvent(log.UserID, log)
	return nil
}

// ListReadLogs 分页查询打开记录
func (s *Store) ListReadLogs(query domain.ReadLogQuery) (*domain.ReadLogPage, error) {
	return s.db.ListReadLogs(query)
}

// GetMailStats 聚合单封邮件的打开统计
func (s *Store) GetMailStats(mailID string) (*domain.MailStats, error) {
	return s.db.GetMailStats(mailID)
}

// GetDashboardStats 聚合用户维度的汇总统计（缓存优先）
func (s *Store) GetDashboardStats(userID string) (*domain.DashboardStats, error) {
	if stats, err := s.redis.GetCachedDashboardStats(userID); err == nil {
		return stats, nil
	}

	stats, err := s.db.GetDashboardStats(userID)
	if err != nil {
		return nil, err
	}

	s.redis.CacheDashboardStats(stats, time.Minute)
	return stats, nil
}

// ========== User Repository ==========

// CreateUser 创建用户
func (s *Store) CreateUser(user *domain.User) error {
	return s.db.CreateUser(user)
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.db.GetUserByID(id)
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	return s.db.GetUserByEmail(email)
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	return s.db.GetUserByUsername(username)
}

// UpdateUser 更新用户
func (s *Store) UpdateUser(user *domain.User) error {
	return s.db.UpdateUser(user)
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.UpdateLastLogin(userID)
}

// DeleteUser 删除用户及其全部追踪数据
func (s *Store) DeleteUser(userID string) error {
	// 先收集该用户的像素代码以便清理缓存
	mails, _ := s.db.ListMailItemsByUserID(userID)
	codes := make([]string, 0, len(mails))
	for _, mail := range mails {
		if pixel, err := s.db.GetPixelByMailID(mail.ID); err == nil {
			codes = append(codes, pixel.PixelCode)
		}
	}

	if err := s.db.DeleteUser(userID); err != nil {
		return err
	}

	for _, code := range codes {
		s.redis.InvalidatePixel(code)
	}
	s.redis.InvalidateDashboardStats(userID)
	return nil
}

// ========== Admin Repository ==========

// ListUsers 分页查询用户
func (s *Store) ListUsers(page, pageSize int, search string) ([]domain.User, int, error) {
	return s.db.ListUsers(page, pageSize, search)
}

// GetSystemStatistics 返回系统级统计
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	return s.db.GetSystemStatistics()
}

// ========== Webhook Repository ==========

// CreateWebhook 创建 Webhook
func (s *Store) CreateWebhook(webhook *domain.Webhook) error {
	return s.db.CreateWebhook(webhook)
}

// GetWebhook 获取 Webhook
func (s *Store) GetWebhook(id string) (*domain.Webhook, error) {
	return s.db.GetWebhook(id)
}

// ListWebhooks 列出用户的 Webhooks
func (s *Store) ListWebhooks(userID string) ([]domain.Webhook, error) {
	return s.db.ListWebhooks(userID)
}

// UpdateWebhook 更新 Webhook
func (s *Store) UpdateWebhook(webhook *domain.Webhook) error {
	return s.db.UpdateWebhook(webhook)
}

// DeleteWebhook 删除 Webhook
func (s *Store) DeleteWebhook(id string) error {
	return s.db.DeleteWebhook(id)
}

// RecordDelivery 记录投递结果
func (s *Store) RecordDelivery(delivery *domain.WebhookDelivery) error {
	return s.db.RecordDelivery(delivery)
}

// GetDeliveries 获取投递记录
func (s *Store) GetDeliveries(webhookID string, limit int) ([]domain.WebhookDelivery, error) {
	return s.db.GetDeliveries(webhookID, limit)
}

// GetPendingDeliveries 获取待重试的投递
func (s *Store) GetPendingDeliveries(limit int) ([]domain.WebhookDelivery, error) {
	return s.db.GetPendingDeliveries(limit)
}

// ========== Lifecycle ==========

// Health 检查数据库与 Redis 的健康状态
func (s *Store) Health() error {
	if err := s.db.Health(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.redis.Health(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close 关闭全部底层连接
func (s *Store) Close() error {
	dbErr := s.db.Close()
	redisErr := s.redis.Close()
	if dbErr != nil {
		return dbErr
	}
	return redisErr
}
