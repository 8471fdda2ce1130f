package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

// Store 使用内存保存追踪邮件数据，主要用于开发验证和单元测试。
type Store struct {
	mu        sync.RWMutex
	mails     map[string]*domain.MailItem      // mailID -> mail
	pixels    map[string]*domain.TrackingPixel // pixelID -> pixel
	byCode    map[string]string                // pixelCode -> pixelID
	byMailID  map[string]string                // mailID -> pixelID
	readLogs  map[string][]*domain.ReadLog     // mailID -> logs（按时间倒序）
	users     map[string]*domain.User          // userID -> user
	byEmail   map[string]string                // email -> userID
	byName    map[string]string                // username -> userID

	// Webhook 存储
	webhooks       map[string]*domain.Webhook            // 按 ID 索引
	webhooksByUser map[string]map[string]*domain.Webhook // 按用户 ID 索引
	deliveries     map[string][]*domain.WebhookDelivery  // 投递记录（按 webhook ID）
	retryQueue     []*domain.WebhookDelivery             // 重试队列
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mails:          make(map[string]*domain.MailItem),
		pixels:         make(map[string]*domain.TrackingPixel),
		byCode:         make(map[string]string),
		byMailID:       make(map[string]string),
		readLogs:       make(map[string][]*domain.ReadLog),
		users:          make(map[string]*domain.User),
		byEmail:        make(map[string]string),
		byName:         make(map[string]string),
		webhooks:       make(map[string]*domain.Webhook),
		webhooksByUser: make(map[string]map[string]*domain.Webhook),
		deliveries:     make(map[string][]*domain.WebhookDelivery),
		retryQueue:     make([]*domain.WebhookDelivery, 0),
	}
}

// ========== Mail Repository ==========

// SaveMailItem 保存追踪邮件。
func (s *Store) SaveMailItem(mail *domain.MailItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *mail
	s.mails[mail.ID] = &copied
	return nil
}

// UpdateMailItem 更新追踪邮件的可编辑字段，打开计数类字段保持不变。
func (s *Store) UpdateMailItem(mail *domain.MailItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.mails[mail.ID]
	if !ok {
		return storage.ErrMailNotFound
	}
	existing.Title = mail.Title
	existing.Description = mail.Description
	existing.RecipientEmail = mail.RecipientEmail
	existing.RecipientName = mail.RecipientName
	existing.MailSubject = mail.MailSubject
	existing.Notes = mail.Notes
	existing.UpdatedAt = mail.UpdatedAt
	return nil
}

// GetMailItem 根据 ID 获取追踪邮件。
func (s *Store) GetMailItem(id string) (*domain.MailItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mail, ok := s.mails[id]
	if !ok {
		return nil, storage.ErrMailNotFound
	}
	copied := *mail
	return &copied, nil
}

// ListMailItemsByUserID 按用户 ID 查询追踪邮件，按创建时间倒序。
func (s *Store) ListMailItemsByUserID(userID string) ([]domain.MailItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.MailItem, 0)
	for _, mail := range s.mails {
		if mail.UserID == userID {
			items = append(items, *mail)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

// CountMailItemsByUserID 统计用户的追踪邮件数量。
func (s *Store) CountMailItemsByUserID(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, mail := range s.mails {
		if mail.UserID == userID {
			count++
		}
	}
	return count, nil
}

// DeleteMailItem 删除追踪邮件及其关联的像素和打开记录。
func (s *Store) DeleteMailItem(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mails[id]; !ok {
		return storage.ErrMailNotFound
	}
	delete(s.mails, id)

	if pixelID, ok := s.byMailID[id]; ok {
		if pixel, ok := s.pixels[pixelID]; ok {
			delete(s.byCode, pixel.PixelCode)
		}
		delete(s.pixels, pixelID)
		delete(s.byMailID, id)
	}
	delete(s.readLogs, id)
	return nil
}

// RecordOpen 原子地累加打开计数并登记首次打开时间。
//
// 整个读-改-写在同一把写锁内完成，与 SQL 实现的单条
// UPDATE 语义等价：并发抓取同一像素时恰有一次返回 firstOpen=true。
func (s *Store) RecordOpen(mailID string, openedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mail, ok := s.mails[mailID]
	if !ok {
		return false, storage.ErrMailNotFound
	}

	firstOpen := mail.FirstOpenedAt == nil
	if firstOpen {
		ts := openedAt
		mail.FirstOpenedAt = &ts
	}
	mail.OpenCount++
	mail.Status = domain.MailStatusOpened
	mail.UpdatedAt = time.Now()
	return firstOpen, nil
}

// ========== Pixel Repository ==========

// SavePixel 保存追踪像素。
func (s *Store) SavePixel(pixel *domain.TrackingPixel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existingID, ok := s.byCode[pixel.PixelCode]; ok && existingID != pixel.ID {
		return storage.ErrPixelCodeConflict
	}

	copied := *pixel
	s.pixels[pixel.ID] = &copied
	s.byCode[pixel.PixelCode] = pixel.ID
	s.byMailID[pixel.MailID] = pixel.ID
	return nil
}

// GetPixelByCode 根据像素代码获取像素。
func (s *Store) GetPixelByCode(code string) (*domain.TrackingPixel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pixelID, ok := s.byCode[code]
	if !ok {
		return nil, storage.ErrPixelNotFound
	}
	copied := *s.pixels[pixelID]
	return &copied, nil
}

// GetPixelByMailID 根据邮件 ID 获取像素。
func (s *Store) GetPixelByMailID(mailID string) (*domain.TrackingPixel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pixelID, ok := s.byMailID[mailID]
	if !ok {
		return nil, storage.ErrPixelNotFound
	}
	copied := *s.pixels[pixelID]
	return &copied, nil
}

// ========== Read Log Repository ==========

// SaveReadLog 追加一条打开记录。
func (s *Store) SaveReadLog(log *domain.ReadLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *log
	// 新记录插入头部，保持时间倒序
	s.readLogs[log.MailID] = append([]*domain.ReadLog{&copied}, s.readLogs[log.MailID]...)
	return nil
}

// ListReadLogs 分页查询打开记录，按时间倒序。
func (s *Store) ListReadLogs(query domain.ReadLogQuery) (*domain.ReadLogPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := s.readLogs[query.MailID]
	total := len(logs)

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]domain.ReadLog, 0, end-start)
	for _, log := range logs[start:end] {
		items = append(items, *log)
	}

	return &domain.ReadLogPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetMailStats 聚合单封邮件的打开统计。
func (s *Store) GetMailStats(mailID string) (*domain.MailStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mails[mailID]; !ok {
		return nil, storage.ErrMailNotFound
	}

	logs := s.readLogs[mailID]
	stats := &domain.MailStats{
		MailID:     mailID,
		TotalReads: len(logs),
	}

	seen := make(map[string]struct{})
	for _, log := range logs {
		seen[log.IPAddress] = struct{}{}
		if stats.LastReadAt == nil || log.ReadAt.After(*stats.LastReadAt) {
			ts := log.ReadAt
			stats.LastReadAt = &ts
		}
	}
	stats.UniqueReaders = len(seen)
	return stats, nil
}

// GetDashboardStats 聚合用户维度的汇总统计。
func (s *Store) GetDashboardStats(userID string) (*domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.DashboardStats{UserID: userID}
	for _, mail := range s.mails {
		if mail.UserID != userID {
			continue
		}
		stats.TotalMails++
		if mail.IsOpened() {
			stats.OpenedMails++
		} else {
			stats.PendingMails++
		}
		stats.TotalOpens += mail.OpenCount
	}
	return stats, nil
}

// ========== User Repository ==========

// CreateUser 创建用户。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, ok := s.byEmail[email]; ok {
		return storage.ErrEmailExists
	}

	copied := *user
	s.users[user.ID] = &copied
	s.byEmail[email] = user.ID
	if user.Username != "" {
		s.byName[strings.ToLower(user.Username)] = user.ID
	}
	return nil
}

// GetUserByID 根据 ID 获取用户。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// GetUserByEmail 根据邮箱获取用户。
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

// GetUserByUsername 根据用户名获取用户。
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	copied := *s.users[userID]
	return &copied, nil
}

// UpdateUser 更新用户。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}

	// 邮箱变化时同步索引
	oldEmail := strings.ToLower(existing.Email)
	newEmail := strings.ToLower(user.Email)
	if oldEmail != newEmail {
		delete(s.byEmail, oldEmail)
		s.byEmail[newEmail] = user.ID
	}

	copied := *user
	copied.UpdatedAt = time.Now()
	s.users[user.ID] = &copied
	return nil
}

// UpdateLastLogin 更新最后登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now()
	user.LastLoginAt = &now
	return nil
}

// DeleteUser 删除用户及其全部追踪数据。
func (s *Store) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	delete(s.byEmail, strings.ToLower(user.Email))
	if user.Username != "" {
		delete(s.byName, strings.ToLower(user.Username))
	}
	delete(s.users, userID)

	// 级联删除用户的邮件、像素、打开记录与 Webhook
	for id, mail := range s.mails {
		if mail.UserID != userID {
			continue
		}
		if pixelID, ok := s.byMailID[id]; ok {
			if pixel, ok := s.pixels[pixelID]; ok {
				delete(s.byCode, pixel.PixelCode)
			}
			delete(s.pixels, pixelID)
			delete(s.byMailID, id)
		}
		delete(s.readLogs, id)
		delete(s.mails, id)
	}
	for id := range s.webhooksByUser[userID] {
		delete(s.webhooks, id)
		delete(s.deliveries, id)
	}
	delete(s.webhooksByUser, userID)
	return nil
}

// ========== Admin Repository ==========

// ListUsers 分页查询用户，支持按邮箱或用户名模糊搜索。
func (s *Store) ListUsers(page, pageSize int, search string) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(strings.TrimSpace(search))
	matched := make([]domain.User, 0)
	for _, user := range s.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(user.Email), search) &&
			!strings.Contains(strings.ToLower(user.Username), search) {
			continue
		}
		matched = append(matched, *user)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// GetSystemStatistics 返回系统级统计。
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.SystemStatistics{
		TotalUsers: len(s.users),
		TotalMails: len(s.mails),
	}
	for _, user := range s.users {
		if user.IsActive {
			stats.ActiveUsers++
		}
	}
	for _, logs := range s.readLogs {
		stats.TotalReadLogs += len(logs)
	}
	return stats, nil
}

// ========== Lifecycle ==========

// Health 检查存储健康状态（内存存储永远健康）。
func (s *Store) Health() error {
	return nil
}

// Close 关闭存储。
func (s *Store) Close() error {
	return nil
}
