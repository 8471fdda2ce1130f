package sql

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mailsight/backend/internal/domain"
	"mailsight/backend/internal/storage"
)

// Options 数据库连接池参数
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store SQL 数据库存储实现（支持 PostgreSQL 和 MySQL 5.7+）
type Store struct {
	db *gorm.DB
}

// NewStore 根据数据库类型创建存储实例
func NewStore(driverName, dsn string, opts Options) (*Store, error) {
	var dialector gorm.Dialector
	switch driverName {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}
	return NewStoreWithDialector(dialector, opts)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent), // 静默模式
		TranslateError: true,                                  // 唯一键冲突翻译为 gorm.ErrDuplicatedKey
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 25
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	store := &Store{db: db}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.User{},
		&domain.MailItem{},
		&domain.TrackingPixel{},
		&domain.ReadLog{},
		&domain.Webhook{},
		&domain.WebhookDelivery{},
	)
}

// ========== Mail Repository ==========

// SaveMailItem 保存追踪邮件
func (s *Store) SaveMailItem(mail *domain.MailItem) error {
	return s.db.Save(mail).Error
}

// UpdateMailItem 更新追踪邮件的可编辑字段。
// 限定列更新，避免覆盖并发进行中的打开计数。
func (s *Store) UpdateMailItem(mail *domain.MailItem) error {
	result := s.db.Model(&domain.MailItem{}).Where("id = ?", mail.ID).Updates(map[string]interface{}{
		"title":           mail.Title,
		"description":     mail.Description,
		"recipient_email": mail.RecipientEmail,
		"recipient_name":  mail.RecipientName,
		"mail_subject":    mail.MailSubject,
		"notes":           mail.Notes,
		"updated_at":      mail.UpdatedAt,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrMailNotFound
	}
	return nil
}

// GetMailItem 根据 ID 获取追踪邮件
func (s *Store) GetMailItem(id string) (*domain.MailItem, error) {
	var mail domain.MailItem
	err := s.db.Where("id = ?", id).First(&mail).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrMailNotFound
		}
		return nil, err
	}
	return &mail, nil
}

// ListMailItemsByUserID 返回指定用户的全部追踪邮件，按创建时间倒序
func (s *Store) ListMailItemsByUserID(userID string) ([]domain.MailItem, error) {
	var mails []domain.MailItem
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&mails).Error
	return mails, err
}

// CountMailItemsByUserID 统计用户的追踪邮件数量
func (s *Store) CountMailItemsByUserID(userID string) (int, error) {
	var count int64
	err := s.db.Model(&domain.MailItem{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}

// DeleteMailItem 删除追踪邮件及其关联数据
func (s *Store) DeleteMailItem(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mail_id = ?", id).Delete(&domain.ReadLog{}).Error; err != nil {
			return err
		}
		if err := tx.Where("mail_id = ?", id).Delete(&domain.TrackingPixel{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.MailItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrMailNotFound
		}
		return nil
	})
}

// RecordOpen 原子地累加打开计数并登记首次打开时间。
//
// 单条 UPDATE 在数据库内完成全部状态变更：COALESCE 保证
// first_opened_at 只会被最先到达的那次打开写入，并发抓取下
// 不存在读-改-写竞争。是否首次打开通过比较更新前后的
// first_opened_at 判定。
func (s *Store) RecordOpen(mailID string, openedAt time.Time) (bool, error) {
	var firstOpen bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var before struct {
			FirstOpenedAt *time.Time
		}
		// SELECT ... FOR UPDATE 锁住该行直到事务结束
		err := tx.Model(&domain.MailItem{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("first_opened_at").
			Where("id = ?", mailID).
			Take(&before).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return storage.ErrMailNotFound
			}
			return err
		}
		firstOpen = before.FirstOpenedAt == nil

		result := tx.Exec(`
			UPDATE mail_items
			SET open_count = open_count + 1,
			    status = ?,
			    first_opened_at = COALESCE(first_opened_at, ?),
			    updated_at = ?
			WHERE id = ?`,
			domain.MailStatusOpened, openedAt.UTC(), time.Now().UTC(), mailID,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrMailNotFound
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return firstOpen, nil
}

// ========== Pixel Repository ==========

// SavePixel 保存追踪像素
func (s *Store) SavePixel(pixel *domain.TrackingPixel) error {
	err := s.db.Create(pixel).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrPixelCodeConflict
	}
	return err
}

// GetPixelByCode 根据像素代码获取像素
func (s *Store) GetPixelByCode(code string) (*domain.TrackingPixel, error) {
	var pixel domain.TrackingPixel
	err := s.db.Where("pixel_code = ?", code).First(&pixel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrPixelNotFound
		}
		return nil, err
	}
	return &pixel, nil
}

// GetPixelByMailID 根据邮件 ID 获取像素
func (s *Store) GetPixelByMailID(mailID string) (*domain.TrackingPixel, error) {
	var pixel domain.TrackingPixel
	err := s.db.Where("mail_id = ?", mailID).First(&pixel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrPixelNotFound
		}
		return nil, err
	}
	return &pixel, nil
}

// ========== Read Log Repository ==========

// SaveReadLog 追加一条打开记录
func (s *Store) SaveReadLog(log *domain.ReadLog) error {
	return s.db.Create(log).Error
}

// ListReadLogs 分页查询打开记录，按时间倒序
func (s *Store) ListReadLogs(query domain.ReadLogQuery) (*domain.ReadLogPage, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := s.db.Model(&domain.ReadLog{}).Where("mail_id = ?", query.MailID).Count(&total).Error; err != nil {
		return nil, err
	}

	var logs []domain.ReadLog
	err := s.db.Where("mail_id = ?", query.MailID).
		Order("read_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}

	return &domain.ReadLogPage{
		Items:    logs,
		Total:    int(total),
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetMailStats 聚合单封邮件的打开统计
func (s *Store) GetMailStats(mailID string) (*domain.MailStats, error) {
	if _, err := s.GetMailItem(mailID); err != nil {
		return nil, err
	}

	var row struct {
		TotalReads    int
		UniqueReaders int
		LastReadAt    *time.Time
	}
	err := s.db.Model(&domain.ReadLog{}).
		Select("COUNT(*) AS total_reads, COUNT(DISTINCT ip_address) AS unique_readers, MAX(read_at) AS last_read_at").
		Where("mail_id = ?", mailID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}

	return &domain.MailStats{
		MailID:        mailID,
		TotalReads:    row.TotalReads,
		UniqueReaders: row.UniqueReaders,
		LastReadAt:    row.LastReadAt,
	}, nil
}

// GetDashboardStats 聚合用户维度的汇总统计
func (s *Store) GetDashboardStats(userID string) (*domain.DashboardStats, error) {
	var row struct {
		TotalMails   int
		OpenedMails  int
		PendingMails int
		TotalOpens   int
	}
	err := s.db.Model(&domain.MailItem{}).
		Select(`COUNT(*) AS total_mails,
			COALESCE(SUM(CASE WHEN status = 'opened' THEN 1 ELSE 0 END), 0) AS opened_mails,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_mails,
			COALESCE(SUM(open_count), 0) AS total_opens`).
		Where("user_id = ?", userID).
		Take(&row).Error
	if err != nil {
		return nil, err
	}

	return &domain.DashboardStats{
		UserID:       userID,
		TotalMails:   row.TotalMails,
		OpenedMails:  row.OpenedMails,
		PendingMails: row.PendingMails,
		TotalOpens:   row.TotalOpens,
	}, nil
}

// ========== Lifecycle ==========

// Health 检查数据库健康状态
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
