package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

// ========== Webhook Repository ==========

// CreateWebhook 创建 Webhook
func (s *Store) CreateWebhook(webhook *domain.Webhook) error {
	now := time.Now().UTC()
	webhook.CreatedAt = now
	webhook.UpdatedAt = now
	return s.db.Create(webhook).Error
}

// GetWebhook 获取 Webhook
func (s *Store) GetWebhook(id string) (*domain.Webhook, error) {
	var webhook domain.Webhook
	err := s.db.Where("id = ?", id).First(&webhook).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrWebhookNotFound
		}
		return nil, err
	}
	return &webhook, nil
}

// ListWebhooks 列出用户的 Webhooks
func (s *Store) ListWebhooks(userID string) ([]domain.Webhook, error) {
	var webhooks []domain.Webhook
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&webhooks).Error
	return webhooks, err
}

// UpdateWebhook 更新 Webhook
func (s *Store) UpdateWebhook(webhook *domain.Webhook) error {
	existing, err := s.GetWebhook(webhook.ID)
	if err != nil {
		return err
	}
	webhook.CreatedAt = existing.CreatedAt
	webhook.UpdatedAt = time.Now().UTC()
	// Save 走结构体路径，events 字段经 JSON 序列化器落库
	return s.db.Save(webhook).Error
}

// DeleteWebhook 删除 Webhook 及其投递记录
func (s *Store) DeleteWebhook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("webhook_id = ?", id).Delete(&domain.WebhookDelivery{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Webhook{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrWebhookNotFound
		}
		return nil
	})
}

// RecordDelivery 记录投递结果并同步 Webhook 状态
func (s *Store) RecordDelivery(delivery *domain.WebhookDelivery) error {
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(delivery).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"updated_at": time.Now().UTC()}
		if delivery.Success {
			updates["last_success"] = time.Now().UTC()
			updates["last_error"] = ""
		} else {
			updates["last_error"] = delivery.Error
		}
		return tx.Model(&domain.Webhook{}).Where("id = ?", delivery.WebhookID).Updates(updates).Error
	})
}

// GetDeliveries 获取最近的投递记录
func (s *Store) GetDeliveries(webhookID string, limit int) ([]domain.WebhookDelivery, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var deliveries []domain.WebhookDelivery
	err := s.db.Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	return deliveries, err
}

// GetPendingDeliveries 获取已到重试时间的投递，并清除其重试标记
//
// 清除 next_retry 保证同一条投递不会被多个重试轮次重复取出；
// 若重试仍然失败，投递结果会以新记录重新入队。
func (s *Store) GetPendingDeliveries(limit int) ([]domain.WebhookDelivery, error) {
	if limit < 1 {
		limit = 10
	}

	var deliveries []domain.WebhookDelivery
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("success = ? AND next_retry IS NOT NULL AND next_retry < ?", false, time.Now().UTC()).
			Order("next_retry ASC").
			Limit(limit).
			Find(&deliveries).Error
		if err != nil {
			return err
		}
		if len(deliveries) == 0 {
			return nil
		}

		ids := make([]string, 0, len(deliveries))
		for _, d := range deliveries {
			ids = append(ids, d.ID)
		}
		return tx.Model(&domain.WebhookDelivery{}).
			Where("id IN ?", ids).
			Update("next_retry", nil).Error
	})
	return deliveries, err
}
