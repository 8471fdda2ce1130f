package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailsight/backend/internal/domain"
)

// WebhookService Webhook 服务
type WebhookService struct {
	store      domain.Store
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhookService 创建 Webhook 服务
func NewWebhookService(store domain.Store, logger *zap.Logger) *WebhookService {
	return &WebhookService{
		store: store,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// CreateWebhookInput 创建 Webhook 输入
type CreateWebhookInput struct {
	UserID string   `json:"-"` // 从JWT中获取，不需要客户端提供
	URL    string   `json:"url" binding:"required,url"`
	Events []string `json:"events" binding:"required,min=1"`
}

// UpdateWebhookInput 更新 Webhook 输入
type UpdateWebhookInput struct {
	URL      string   `json:"url" binding:"omitempty,url"`
	Events   []string `json:"events" binding:"omitempty,min=1"`
	IsActive *bool    `json:"isActive"`
}

// CreateWebhook 创建 Webhook
func (s *WebhookService) CreateWebhook(input CreateWebhookInput) (*domain.Webhook, error) {
	// 校验配额
	existing, err := s.store.ListWebhooks(input.UserID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(input.UserID)
	if err != nil {
		return nil, err
	}
	quota := domain.DefaultQuotas(user.Tier)
	if quota.MaxWebhooks >= 0 && len(existing) >= quota.MaxWebhooks {
		return nil, ErrQuotaExceeded
	}

	webhook := &domain.Webhook{
		ID:       uuid.New().String(),
		UserID:   input.UserID,
		URL:      input.URL,
		Events:   input.Events,
		Secret:   generateSecret(),
		IsActive: true,
	}

	if err := s.store.CreateWebhook(webhook); err != nil {
		return nil, err
	}

	return webhook, nil
}

// GetWebhook 获取 Webhook
func (s *WebhookService) GetWebhook(id string) (*domain.Webhook, error) {
	return s.store.GetWebhook(id)
}

// ListWebhooks 列出用户的 Webhooks
func (s *WebhookService) ListWebhooks(userID string) ([]domain.Webhook, error) {
	return s.store.ListWebhooks(userID)
}

// UpdateWebhook 更新 Webhook
func (s *WebhookService) UpdateWebhook(id string, input UpdateWebhookInput) (*domain.Webhook, error) {
	webhook, err := s.store.GetWebhook(id)
	if err != nil {
		return nil, err
	}

	if input.URL != "" {
		webhook.URL = input.URL
	}
	if len(input.Events) > 0 {
		webhook.Events = input.Events
	}
	if input.IsActive != nil {
		webhook.IsActive = *input.IsActive
	}

	if err := s.store.UpdateWebhook(webhook); err != nil {
		return nil, err
	}

	return webhook, nil
}

// DeleteWebhook 删除 Webhook
func (s *WebhookService) DeleteWebhook(id string) error {
	return s.store.DeleteWebhook(id)
}

// TriggerEvent 触发 Webhook 事件
func (s *WebhookService) TriggerEvent(userID string, eventType domain.WebhookEventType, data interface{}) error {
	webhooks, err := s.store.ListWebhooks(userID)
	if err != nil {
		return err
	}

	event := domain.WebhookEvent{
		ID:        uuid.New().String(),
		Event:     eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	for _, webhook := range webhooks {
		if !webhook.IsActive {
			continue
		}
		if !webhook.SubscribesTo(eventType) {
			continue
		}

		// 异步投递
		go s.deliverWebhook(&webhook, event, 1)
	}

	return nil
}

// deliverWebhook 投递 Webhook
func (s *WebhookService) deliverWebhook(webhook *domain.Webhook, event domain.WebhookEvent, attempt int) {
	delivery := &domain.WebhookDelivery{
		ID:        uuid.New().String(),
		WebhookID: webhook.ID,
		Event:     event.Event,
		Attempts:  attempt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		delivery.Error = fmt.Sprintf("failed to marshal payload: %v", err)
		s.recordDelivery(delivery)
		return
	}
	delivery.Payload = string(payload)

	signature := generateSignature(payload, webhook.Secret)

	startTime := time.Now()
	req, err := http.NewRequest(http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		delivery.Error = fmt.Sprintf("failed to create request: %v", err)
		delivery.Duration = time.Since(startTime).Milliseconds()
		s.recordDelivery(delivery)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Event", string(event.Event))
	req.Header.Set("X-Webhook-ID", delivery.ID)

	resp, err := s.httpClient.Do(req)
	delivery.Duration = time.Since(startTime).Milliseconds()

	if err != nil {
		delivery.Error = fmt.Sprintf("failed to send request: %v", err)
		delivery.NextRetry = calculateNextRetry(delivery.Attempts)
		s.recordDelivery(delivery)
		return
	}
	defer resp.Body.Close()

	delivery.StatusCode = resp.StatusCode

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	delivery.Response = string(body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		delivery.Success = true
	} else {
		delivery.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, delivery.Response)
		delivery.NextRetry = calculateNextRetry(delivery.Attempts)
	}

	s.recordDelivery(delivery)
}

// recordDelivery 落库投递记录，失败只记日志
func (s *WebhookService) recordDelivery(delivery *domain.WebhookDelivery) {
	if err := s.store.RecordDelivery(delivery); err != nil && s.logger != nil {
		s.logger.Warn("记录 Webhook 投递失败",
			zap.String("webhook_id", delivery.WebhookID),
			zap.Error(err))
	}
}

// GetDeliveries 获取投递记录
func (s *WebhookService) GetDeliveries(webhookID string, limit int) ([]domain.WebhookDelivery, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.store.GetDeliveries(webhookID, limit)
}

// RetryFailedDeliveries 重试失败的投递
func (s *WebhookService) RetryFailedDeliveries() error {
	deliveries, err := s.store.GetPendingDeliveries(10)
	if err != nil {
		return err
	}

	for _, delivery := range deliveries {
		webhook, err := s.store.GetWebhook(delivery.WebhookID)
		if err != nil {
			continue
		}
		if !webhook.IsActive {
			continue
		}

		var event domain.WebhookEvent
		if err := json.Unmarshal([]byte(delivery.Payload), &event); err != nil {
			continue
		}

		// 异步重试，尝试次数递增
		go s.deliverWebhook(webhook, event, delivery.Attempts+1)
	}

	return nil
}

// generateSecret 生成 Webhook 密钥
func generateSecret() string {
	return uuid.New().String()
}

// generateSignature 生成 HMAC-SHA256 签名
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// calculateNextRetry 计算下次重试时间（指数退避）
func calculateNextRetry(attempts int) *time.Time {
	// 重试间隔：1分钟、5分钟、15分钟、1小时、6小时
	intervals := []time.Duration{
		1 * time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		6 * time.Hour,
	}

	index := attempts - 1
	if index >= len(intervals) {
		return nil // 不再重试
	}

	nextRetry := time.Now().Add(intervals[index])
	return &nextRetry
}
