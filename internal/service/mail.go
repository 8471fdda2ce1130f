package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailsight/backend/internal/config"
	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

var (
	// ErrQuotaExceeded 超出配额
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrNotOwner 资源不属于当前用户
	ErrNotOwner = errors.New("resource does not belong to user")
	// ErrTitleRequired 标题不能为空
	ErrTitleRequired = errors.New("title is required")
)

// pixelAlphabet 像素代码字符集（小写字母 + 数字，与前端生成保持一致）
const pixelAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MailService 封装追踪邮件相关业务操作。
type MailService struct {
	store domain.Store
	cfg   *config.Config

	webhookService *WebhookService // 可选：事件回调
}

// NewMailService 创建追踪邮件业务服务。
func NewMailService(store domain.Store, cfg *config.Config) *MailService {
	return &MailService{
		store: store,
		cfg:   cfg,
	}
}

// SetWebhookService 设置 Webhook 服务（避免循环依赖）
func (s *MailService) SetWebhookService(service *WebhookService) {
	s.webhookService = service
}

// CreateMailInput 定义创建追踪邮件所需的输入。
type CreateMailInput struct {
	UserID         string `json:"-"`
	Title          string `json:"title" binding:"required,max=255"`
	Description    string `json:"description" binding:"omitempty,max=2000"`
	RecipientEmail string `json:"recipientEmail" binding:"omitempty,email"`
	RecipientName  string `json:"recipientName" binding:"omitempty,max=255"`
	MailSubject    string `json:"mailSubject" binding:"omitempty,max=500"`
	Notes          string `json:"notes" binding:"omitempty,max=2000"`
}

// Create 创建新的追踪邮件并为其生成专属像素。
func (s *MailService) Create(input CreateMailInput) (*domain.MailItem, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	// 检查配额
	user, err := s.store.GetUserByID(input.UserID)
	if err != nil {
		return nil, err
	}
	quota := domain.DefaultQuotas(user.Tier)
	if quota.MaxMailItems >= 0 {
		count, err := s.store.CountMailItemsByUserID(input.UserID)
		if err != nil {
			return nil, err
		}
		if count >= quota.MaxMailItems {
			return nil, ErrQuotaExceeded
		}
	}

	now := time.Now().UTC()
	mail := &domain.MailItem{
		ID:             uuid.NewString(),
		UserID:         input.UserID,
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		RecipientEmail: strings.TrimSpace(input.RecipientEmail),
		RecipientName:  strings.TrimSpace(input.RecipientName),
		MailSubject:    strings.TrimSpace(input.MailSubject),
		Notes:          strings.TrimSpace(input.Notes),
		Status:         domain.MailStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.SaveMailItem(mail); err != nil {
		return nil, fmt.Errorf("failed to save mail item: %w", err)
	}

	pixel, err := s.createPixel(mail.ID)
	if err != nil {
		// 像素创建失败时回滚邮件，避免出现无像素的追踪邮件
		_ = s.store.DeleteMailItem(mail.ID)
		return nil, err
	}
	mail.Pixel = pixel

	if s.webhookService != nil {
		_ = s.webhookService.TriggerEvent(input.UserID, domain.WebhookEventMailCreated, mail)
	}

	return mail, nil
}

// createPixel 为邮件生成追踪像素，像素代码冲突时重试。
func (s *MailService) createPixel(mailID string) (*domain.TrackingPixel, error) {
	const maxAttempts = 5

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := generateCode(s.cfg.Tracking.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate pixel code: %w", err)
		}
		pixel := &domain.TrackingPixel{
			ID:        uuid.NewString(),
			MailID:    mailID,
			PixelCode: code,
			PixelURL:  fmt.Sprintf("%s/api/pixel/%s", s.cfg.Tracking.BaseURL, code),
			CreatedAt: time.Now().UTC(),
		}

		err = s.store.SavePixel(pixel)
		if err == nil {
			return pixel, nil
		}
		if !errors.Is(err, storage.ErrPixelCodeConflict) {
			return nil, fmt.Errorf("failed to save pixel: %w", err)
		}
		// 代码撞车，换一个再试
	}

	return nil, fmt.Errorf("failed to generate unique pixel code after %d attempts", maxAttempts)
}

// generateCode 生成指定长度的像素代码，随机源为 crypto/rand。
func generateCode(length int) (string, error) {
	if length <= 0 {
		length = domain.PixelCodeLength
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i := range b {
		b[i] = pixelAlphabet[int(b[i])%len(pixelAlphabet)]
	}
	return string(b), nil
}

// Get 获取单封追踪邮件（带像素信息），校验归属。
func (s *MailService) Get(userID, mailID string) (*domain.MailItem, error) {
	mail, err := s.store.GetMailItem(mailID)
	if err != nil {
		return nil, err
	}
	if mail.UserID != userID {
		return nil, ErrNotOwner
	}

	if pixel, err := s.store.GetPixelByMailID(mailID); err == nil {
		mail.Pixel = pixel
	}
	return mail, nil
}

// UpdateMailInput 更新追踪邮件的输入，nil 字段保持原值。
type UpdateMailInput struct {
	Title          *string `json:"title" binding:"omitempty,max=255"`
	Description    *string `json:"description" binding:"omitempty,max=2000"`
	RecipientEmail *string `json:"recipientEmail" binding:"omitempty,email"`
	RecipientName  *string `json:"recipientName" binding:"omitempty,max=255"`
	MailSubject    *string `json:"mailSubject" binding:"omitempty,max=500"`
	Notes          *string `json:"notes" binding:"omitempty,max=2000"`
}

// Update 更新追踪邮件的元数据，校验归属。
// 像素与打开统计不属于可编辑字段，不受影响。
func (s *MailService) Update(userID, mailID string, input UpdateMailInput) (*domain.MailItem, error) {
	mail, err := s.store.GetMailItem(mailID)
	if err != nil {
		return nil, err
	}
	if mail.UserID != userID {
		return nil, ErrNotOwner
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		mail.Title = title
	}
	if input.Description != nil {
		mail.Description = strings.TrimSpace(*input.Description)
	}
	if input.RecipientEmail != nil {
		mail.RecipientEmail = strings.TrimSpace(*input.RecipientEmail)
	}
	if input.RecipientName != nil {
		mail.RecipientName = strings.TrimSpace(*input.RecipientName)
	}
	if input.MailSubject != nil {
		mail.MailSubject = strings.TrimSpace(*input.MailSubject)
	}
	if input.Notes != nil {
		mail.Notes = strings.TrimSpace(*input.Notes)
	}
	mail.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateMailItem(mail); err != nil {
		return nil, err
	}

	if pixel, err := s.store.GetPixelByMailID(mailID); err == nil {
		mail.Pixel = pixel
	}
	return mail, nil
}

// List 返回用户的全部追踪邮件，每封带像素信息。
func (s *MailService) List(userID string) ([]domain.MailItem, error) {
	mails, err := s.store.ListMailItemsByUserID(userID)
	if err != nil {
		return nil, err
	}

	for i := range mails {
		if pixel, err := s.store.GetPixelByMailID(mails[i].ID); err == nil {
			mails[i].Pixel = pixel
		}
	}
	return mails, nil
}

// Delete 删除追踪邮件及其关联数据，校验归属。
func (s *MailService) Delete(userID, mailID string) error {
	mail, err := s.store.GetMailItem(mailID)
	if err != nil {
		return err
	}
	if mail.UserID != userID {
		return ErrNotOwner
	}

	if err := s.store.DeleteMailItem(mailID); err != nil {
		return err
	}

	if s.webhookService != nil {
		_ = s.webhookService.TriggerEvent(userID, domain.WebhookEventMailDeleted, mail)
	}
	return nil
}
