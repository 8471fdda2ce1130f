package sql

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

// ========== User Repository ==========

// CreateUser 创建新用户
func (s *Store) CreateUser(user *domain.User) error {
	err := s.db.Create(user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrEmailExists
	}
	return err
}

// GetUserByID 根据 ID 获取用户
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail 根据邮箱获取用户
func (s *Store) GetUserByEmail(email string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("lower(email) = lower(?)", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func (s *Store) GetUserByUsername(username string) (*domain.User, error) {
	var user domain.User
	err := s.db.Where("lower(username) = lower(?)", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户
func (s *Store) UpdateUser(user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	result := s.db.Model(&domain.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"email":          user.Email,
		"username":       user.Username,
		"password_hash":  user.PasswordHash,
		"role":           user.Role,
		"tier":           user.Tier,
		"is_active":      user.IsActive,
		"notify_on_open": user.NotifyOnOpen,
		"updated_at":     user.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// UpdateLastLogin 更新最后登录时间
func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("last_login_at", time.Now().UTC()).Error
}

// DeleteUser 删除用户及其全部追踪数据
func (s *Store) DeleteUser(userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var mailIDs []string
		if err := tx.Model(&domain.MailItem{}).Where("user_id = ?", userID).Pluck("id", &mailIDs).Error; err != nil {
			return err
		}
		if len(mailIDs) > 0 {
			if err := tx.Where("mail_id IN ?", mailIDs).Delete(&domain.ReadLog{}).Error; err != nil {
				return err
			}
			if err := tx.Where("mail_id IN ?", mailIDs).Delete(&domain.TrackingPixel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", userID).Delete(&domain.MailItem{}).Error; err != nil {
				return err
			}
		}

		var webhookIDs []string
		if err := tx.Model(&domain.Webhook{}).Where("user_id = ?", userID).Pluck("id", &webhookIDs).Error; err != nil {
			return err
		}
		if len(webhookIDs) > 0 {
			if err := tx.Where("webhook_id IN ?", webhookIDs).Delete(&domain.WebhookDelivery{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", userID).Delete(&domain.Webhook{}).Error; err != nil {
				return err
			}
		}

		result := tx.Where("id = ?", userID).Delete(&domain.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrUserNotFound
		}
		return nil
	})
}

// ========== Admin Repository ==========

// ListUsers 分页查询用户，支持按邮箱或用户名模糊搜索
func (s *Store) ListUsers(page, pageSize int, search string) ([]domain.User, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := s.db.Model(&domain.User{})
	search = strings.TrimSpace(search)
	if search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("lower(email) LIKE ? OR lower(username) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []domain.User
	err := query.Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, int(total), nil
}

// GetSystemStatistics 返回系统级统计
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	stats := &domain.SystemStatistics{}

	var totalUsers, activeUsers, totalMails, totalReadLogs int64
	if err := s.db.Model(&domain.User{}).Count(&totalUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.User{}).Where("is_active = ?", true).Count(&activeUsers).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.MailItem{}).Count(&totalMails).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&domain.ReadLog{}).Count(&totalReadLogs).Error; err != nil {
		return nil, err
	}

	stats.TotalUsers = int(totalUsers)
	stats.ActiveUsers = int(activeUsers)
	stats.TotalMails = int(totalMails)
	stats.TotalReadLogs = int(totalReadLogs)
	return stats, nil
}
