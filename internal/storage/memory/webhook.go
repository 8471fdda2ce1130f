package memory

import (
	"time"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

// CreateWebhook 创建 Webhook
func (s *Store) CreateWebhook(webhook *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	webhook.CreatedAt = time.Now()
	webhook.UpdatedAt = time.Now()
	copied := *webhook
	s.webhooks[webhook.ID] = &copied

	// 按用户ID索引
	if s.webhooksByUser[webhook.UserID] == nil {
		s.webhooksByUser[webhook.UserID] = make(map[string]*domain.Webhook)
	}
	s.webhooksByUser[webhook.UserID][webhook.ID] = &copied

	return nil
}

// GetWebhook 获取 Webhook
func (s *Store) GetWebhook(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	webhook, exists := s.webhooks[id]
	if !exists {
		return nil, storage.ErrWebhookNotFound
	}

	copied := *webhook
	return &copied, nil
}

// ListWebhooks 列出用户的 Webhooks
func (s *Store) ListWebhooks(userID string) ([]domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userWebhooks := s.webhooksByUser[userID]
	result := make([]domain.Webhook, 0, len(userWebhooks))
	for _, webhook := range userWebhooks {
		result = append(result, *webhook)
	}

	return result, nil
}

// UpdateWebhook 更新 Webhook
func (s *Store) UpdateWebhook(webhook *domain.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.webhooks[webhook.ID]
	if !exists {
		return storage.ErrWebhookNotFound
	}

	webhook.UpdatedAt = time.Now()
	webhook.CreatedAt = existing.CreatedAt
	copied := *webhook
	s.webhooks[webhook.ID] = &copied
	s.webhooksByUser[webhook.UserID][webhook.ID] = &copied

	return nil
}

// DeleteWebhook 删除 Webhook
func (s *Store) DeleteWebhook(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	webhook, exists := s.webhooks[id]
	if !exists {
		return storage.ErrWebhookNotFound
	}

	delete(s.webhooks, id)
	delete(s.webhooksByUser[webhook.UserID], id)
	delete(s.deliveries, id)

	return nil
}

// RecordDelivery 记录投递结果
func (s *Store) RecordDelivery(delivery *domain.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now()
	}

	copied := *delivery
	s.deliveries[delivery.WebhookID] = append(s.deliveries[delivery.WebhookID], &copied)

	// 限制每个 Webhook 最多保存 100 条投递记录
	if len(s.deliveries[delivery.WebhookID]) > 100 {
		s.deliveries[delivery.WebhookID] = s.deliveries[delivery.WebhookID][1:]
	}

	// 如果需要重试，加入重试队列
	if !delivery.Success && delivery.NextRetry != nil {
		s.retryQueue = append(s.retryQueue, &copied)
	}

	// 同步 Webhook 自身的状态字段
	webhook := s.webhooks[delivery.WebhookID]
	if webhook != nil {
		if delivery.Success {
			now := time.Now()
			webhook.LastSuccess = &now
			webhook.LastError = ""
		} else {
			webhook.LastError = delivery.Error
		}
		webhook.UpdatedAt = time.Now()
	}

	return nil
}

// GetDeliveries 获取最近的投递记录
func (s *Store) GetDeliveries(webhookID string, limit int) ([]domain.WebhookDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deliveries := s.deliveries[webhookID]
	start := 0
	if len(deliveries) > limit {
		start = len(deliveries) - limit
	}

	result := make([]domain.WebhookDelivery, 0, len(deliveries)-start)
	for i := len(deliveries) - 1; i >= start; i-- {
		result = append(result, *deliveries[i])
	}

	return result, nil
}

// GetPendingDeliveries 获取已到重试时间的投递
func (s *Store) GetPendingDeliveries(limit int) ([]domain.WebhookDelivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	result := make([]domain.WebhookDelivery, 0)
	newQueue := make([]*domain.WebhookDelivery, 0)

	for _, delivery := range s.retryQueue {
		if delivery.NextRetry != nil && delivery.NextRetry.Before(now) && len(result) < limit {
			result = append(result, *delivery)
		} else {
			newQueue = append(newQueue, delivery)
		}
	}

	s.retryQueue = newQueue
	return result, nil
}
