package service

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/monitoring"
	"mailsight/backend/internal/useragent"
)

// ReadEventNotifier 向在线客户端推送打开事件（WebSocket 集线器实现）。
type ReadEventNotifier interface {
	NotifyReadEvent(userID string, log *domain.ReadLog)
}

// FirstOpenMailer 在邮件首次被打开时向拥有者发送通知邮件。
type FirstOpenMailer interface {
	SendFirstOpenNotification(user *domain.User, mail *domain.MailItem, log *domain.ReadLog) error
}

// TrackingService 处理像素抓取的全部副作用。
//
// 像素端点无论内部发生什么都必须返回图片，因此这里的
// 每一步失败都只记日志和指标，绝不向调用方传播错误。
type TrackingService struct {
	store   domain.Store
	logger  *zap.Logger
	metrics *monitoring.Metrics

	notifier       ReadEventNotifier
	mailer         FirstOpenMailer
	webhookService *WebhookService
}

// NewTrackingService 创建像素追踪服务。
func NewTrackingService(store domain.Store, logger *zap.Logger, metrics *monitoring.Metrics) *TrackingService {
	return &TrackingService{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// SetNotifier 设置实时推送组件。
func (s *TrackingService) SetNotifier(notifier ReadEventNotifier) {
	s.notifier = notifier
}

// SetMailer 设置首次打开邮件通知组件。
func (s *TrackingService) SetMailer(mailer FirstOpenMailer) {
	s.mailer = mailer
}

// SetWebhookService 设置 Webhook 服务。
func (s *TrackingService) SetWebhookService(service *WebhookService) {
	s.webhookService = service
}

// HitContext 一次像素抓取的请求上下文。
type HitContext struct {
	IPAddress string
	UserAgent string
	Referer   string
}

// ProcessHit 处理一次像素抓取。
//
// 代码未解析到像素、存储失败等情况全部吞掉：调用方（HTTP 层）
// 不关心结果，1x1 GIF 在任何情况下照常返回。
func (s *TrackingService) ProcessHit(code string, hit HitContext) {
	s.metrics.RecordPixelHit()

	pixel, err := s.store.GetPixelByCode(code)
	if err != nil {
		// 未知代码不产生任何记录
		s.metrics.RecordPixelMiss()
		s.logger.Debug("像素代码未命中", zap.String("code", code))
		return
	}

	mail, err := s.store.GetMailItem(pixel.MailID)
	if err != nil {
		s.metrics.RecordStorageFailure("get_mail_item")
		s.logger.Warn("像素对应的邮件读取失败",
			zap.String("code", code),
			zap.String("mail_id", pixel.MailID),
			zap.Error(err))
		return
	}

	now := time.Now().UTC()
	cls := useragent.Classify(hit.UserAgent)

	readLog := &domain.ReadLog{
		ID:         uuid.NewString(),
		PixelID:    pixel.ID,
		MailID:     mail.ID,
		UserID:     mail.UserID,
		ReadAt:     now,
		IPAddress:  hit.IPAddress,
		UserAgent:  hit.UserAgent,
		DeviceType: cls.Device,
		Browser:    cls.Browser,
		OS:         cls.OS,
	}
	if hit.Referer != "" {
		readLog.Referer = &hit.Referer
	}

	// 打开记录与打开计数是两个独立的写入：任一失败都不影响另一个
	if err := s.store.SaveReadLog(readLog); err != nil {
		s.metrics.RecordStorageFailure("save_read_log")
		s.logger.Error("打开记录写入失败",
			zap.String("mail_id", mail.ID),
			zap.Error(err))
	} else {
		s.metrics.RecordReadLog(string(cls.Device))
		if s.notifier != nil {
			s.notifier.NotifyReadEvent(mail.UserID, readLog)
		}
	}

	firstOpen, err := s.store.RecordOpen(mail.ID, now)
	if err != nil {
		s.metrics.RecordStorageFailure("record_open")
		s.logger.Error("打开计数更新失败",
			zap.String("mail_id", mail.ID),
			zap.Error(err))
		return
	}

	if firstOpen {
		s.metrics.RecordFirstOpen()
		s.logger.Info("邮件首次被打开",
			zap.String("mail_id", mail.ID),
			zap.String("user_id", mail.UserID),
			zap.String("device", string(cls.Device)))
		s.sendFirstOpenNotification(mail, readLog)
	}

	if s.webhookService != nil {
		_ = s.webhookService.TriggerEvent(mail.UserID, domain.WebhookEventMailOpened, map[string]interface{}{
			"mailId":    mail.ID,
			"title":     mail.Title,
			"firstOpen": firstOpen,
			"readLog":   readLog,
		})
	}
}

// sendFirstOpenNotification 异步发送首次打开通知邮件。
func (s *TrackingService) sendFirstOpenNotification(mail *domain.MailItem, log *domain.ReadLog) {
	if s.mailer == nil {
		return
	}

	user, err := s.store.GetUserByID(mail.UserID)
	if err != nil {
		s.logger.Warn("通知收件人读取失败",
			zap.String("user_id", mail.UserID),
			zap.Error(err))
		return
	}
	if !user.NotifyOnOpen {
		return
	}

	go func() {
		if err := s.mailer.SendFirstOpenNotification(user, mail, log); err != nil {
			s.metrics.NotificationsFailed.Inc()
			s.logger.Warn("首次打开通知邮件发送失败",
				zap.String("mail_id", mail.ID),
				zap.Error(err))
			return
		}
		s.metrics.NotificationsSent.Inc()
	}()
}
